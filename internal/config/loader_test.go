package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const globalYAML = `
http:
  listen_addr: ":8080"
submit:
  delay: 1s
  success_linger: 3s
store:
  driver: sqlite3
  dsn: "file:{password}.db"
  password: "vault:kv/formlab/store#password"
forms:
  collect_all: true
`

type fakeSecrets map[string]string

func (f fakeSecrets) Resolve(_ context.Context, ref string) (string, error) {
	if v, ok := f[ref]; ok {
		return v, nil
	}
	return "", errors.New("no such secret")
}

func writeRoot(t *testing.T, body string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "conf"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "conf", "global.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestLoadFrom(t *testing.T) {
	root := writeRoot(t, globalYAML)
	t.Setenv("FORMLAB_HTTP__LISTEN_ADDR", "127.0.0.1:9000")

	cfg, err := LoadFrom(context.Background(), root, fakeSecrets{
		"vault:kv/formlab/store#password": "s3cret",
	})
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.HTTP.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("listen_addr = %q, want env override", cfg.HTTP.ListenAddr)
	}
	if cfg.Submit.Delay != time.Second || cfg.Submit.SuccessLinger != 3*time.Second {
		t.Errorf("submit = %+v", cfg.Submit)
	}
	if cfg.Store.Password != "s3cret" {
		t.Errorf("password = %q, want resolved secret", cfg.Store.Password)
	}
	if !cfg.Forms.CollectAll {
		t.Error("collect_all not loaded")
	}
	if cfg.Store.Table != "form_submission" || cfg.HTTP.ReadTimeout != 10*time.Second {
		t.Errorf("defaults not applied: table=%q read=%v", cfg.Store.Table, cfg.HTTP.ReadTimeout)
	}
	if cfg.Paths.Root != root {
		t.Errorf("root = %q", cfg.Paths.Root)
	}
}

func TestLoadFrom_VaultRefWithoutResolver(t *testing.T) {
	root := writeRoot(t, globalYAML)
	_, err := LoadFrom(context.Background(), root, nil)
	if !errors.Is(err, ErrNoResolver) {
		t.Fatalf("err = %v, want ErrNoResolver", err)
	}
}

func TestLoadFrom_ValidationFailures(t *testing.T) {
	cases := map[string]string{
		"missing listen": "http: {}\n",
		"bad driver":     "http: {listen_addr: ':80'}\nstore: {driver: postgres, dsn: x}\n",
		"driver no dsn":  "http: {listen_addr: ':80'}\nstore: {driver: mysql}\n",
		"bad table":      "http: {listen_addr: ':80'}\nstore: {table: 'x; DROP TABLE y'}\n",
		"bad level":      "http: {listen_addr: ':80'}\nlog: {level: loud}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(context.Background(), writeRoot(t, body), nil)
			if err == nil || !strings.Contains(err.Error(), "invalid config") {
				t.Fatalf("err = %v, want validation failure", err)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	if got := envKey("FORMLAB_SUBMIT__SUCCESS_LINGER"); got != "submit.success_linger" {
		t.Fatalf("envKey = %q", got)
	}
}
