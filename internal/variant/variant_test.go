package variant

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yanizio/formlab/internal/validate"
)

var fixed = validate.Options{Now: func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }}

func valid() map[string]any {
	return map[string]any{
		"firstName":       "Ada",
		"lastName":        "Lovelace",
		"email":           "ada@example.com",
		"password":        "longenough1",
		"confirmPassword": "longenough1",
		"dateOfBirth":     "1990-12-10",
		"gender":          "female",
		"occupation":      "self-employed",
		"phoneNumber":     "+4420790000",
		"terms":           "true",
	}
}

func TestLoad_AllVariants(t *testing.T) {
	if err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, v := range All() {
		s, ok := v.Schema()
		if !ok {
			t.Fatalf("%s not registered", v.Slug)
		}
		if !strings.Contains(v.Source(), "id: "+v.Slug) {
			t.Fatalf("%s source missing id line", v.Slug)
		}

		want := map[string]any{
			"firstName": "", "lastName": "", "email": "", "password": "",
			"confirmPassword": "", "dateOfBirth": "", "gender": "",
			"occupation": "", "phoneNumber": "", "terms": false,
		}
		if diff := cmp.Diff(want, s.Defaults()); diff != "" {
			t.Fatalf("%s defaults (-want +got):\n%s", v.Slug, diff)
		}

		if res := validate.Validate(s, valid(), fixed); !res.Accepted() {
			t.Fatalf("%s rejected a valid record: %v", v.Slug, res.Errors)
		}
	}
}

func TestVariants_OwnMessages(t *testing.T) {
	if err := Load(); err != nil {
		t.Fatal(err)
	}
	cases := map[string]struct{ mismatch, terms string }{
		"formik-yup": {"Passwords must match", "You must accept the terms and conditions"},
		"rhf-yup":    {"Passwords must match", "You must accept the terms and conditions"},
		"rhf-zod":    {"Passwords don't match", "You must accept the terms"},
	}
	for slug, want := range cases {
		v, ok := Get(slug)
		if !ok {
			t.Fatalf("variant %s missing", slug)
		}
		s, _ := v.Schema()

		rec := valid()
		rec["firstName"] = "Al"
		rec["confirmPassword"] = "mismatch"
		delete(rec, "terms")

		res := validate.Validate(s, rec, fixed)
		got := map[string]string{"confirmPassword": res.First("confirmPassword"), "terms": res.First("terms")}
		if diff := cmp.Diff(map[string]string{"confirmPassword": want.mismatch, "terms": want.terms}, got); diff != "" {
			t.Errorf("%s (-want +got):\n%s", slug, diff)
		}
		if len(res.Errors) != 2 {
			t.Errorf("%s errors = %v", slug, res.Errors)
		}
	}
}

func TestGet_Unknown(t *testing.T) {
	if _, ok := Get("angular"); ok {
		t.Fatal("unknown variant found")
	}
}

func TestOverrideDir_ReplacesSchemaAndSnippet(t *testing.T) {
	if err := Load(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = Load() })

	v, _ := Get("rhf-yup")
	raw := strings.Replace(v.Source(), "Passwords must match", "Passwords differ", 1)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rhf-yup.yaml"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := OverrideDir(dir)
	if err != nil || n != 1 {
		t.Fatalf("OverrideDir: n=%d err=%v", n, err)
	}
	if !strings.Contains(v.Source(), "Passwords differ") {
		t.Fatal("snippet not replaced")
	}
	s, _ := v.Schema()
	rec := valid()
	rec["confirmPassword"] = "mismatch1"
	if got := validate.Validate(s, rec, fixed).First("confirmPassword"); got != "Passwords differ" {
		t.Fatalf("confirmPassword = %q", got)
	}

	if n, err := OverrideDir(filepath.Join(dir, "missing")); err != nil || n != 0 {
		t.Fatalf("missing dir: n=%d err=%v", n, err)
	}
}
