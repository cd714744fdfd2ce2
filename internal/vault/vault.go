// internal/vault/vault.go
//
// formlab – Vault secret references.
//
// Context
// -------
//   Configuration values of the form `vault:<path>#<key>` (store password,
//   CSRF key) are resolved here so secrets never live in YAML or git.  The
//   Client wraps the HashiCorp Vault SDK: KV-v2 reads, a small TTL cache
//   keyed by reference, and background token renewal.
//
// Workflow
// --------
//  1. cli, err := vault.New(ctx, vault.Options{})     // during boot, when
//                                                     // VAULT_ADDR is set.
//  2. config.Load(ctx, cli)                           // cli is a SecretResolver.
//  3. pw, err := cli.Resolve(ctx, "vault:kv/db#pass") // anywhere else.
//
// Environment
// -----------
//   VAULT_ADDR and VAULT_TOKEN are read by the SDK (token falls back to
//   ~/.vault-token).
//
//------------------------------------------------------------------------------

package vault

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// RefPrefix marks a configuration value that must be fetched from Vault.
const RefPrefix = "vault:"

// DefaultTTL is how long a resolved reference is served from cache.
const DefaultTTL = 5 * time.Minute

// Options tunes the client.  Zero values select defaults.
type Options struct {
	TTL     time.Duration
	NoRenew bool // skip the token renewal goroutine
}

// kvReader reads one KV-v2 secret.  The SDK-backed implementation is
// replaced in tests.
type kvReader interface {
	read(ctx context.Context, mount, rel string) (map[string]any, error)
}

// Client resolves references.  Safe for concurrent use.
type Client struct {
	kv  kvReader
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	cache map[string]entry
}

type entry struct {
	val string
	exp time.Time
}

// New constructs a Client from the SDK environment and, unless disabled,
// starts token renewal bound to ctx.
func New(ctx context.Context, o Options) (*Client, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env: %w", err)
	}
	api, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	if !o.NoRenew {
		go renewLoop(ctx, api)
	}
	return newClient(sdkReader{api}, o), nil
}

func newClient(kv kvReader, o Options) *Client {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	return &Client{kv: kv, ttl: o.TTL, now: time.Now, cache: make(map[string]entry)}
}

// IsRef reports whether s is a `vault:<path>#<key>` reference.
func IsRef(s string) bool { return strings.HasPrefix(s, RefPrefix) }

// ParseRef splits `vault:<path>#<key>` into its parts.  The key follows the
// last "#".
func ParseRef(ref string) (path, key string, err error) {
	if !IsRef(ref) {
		return "", "", fmt.Errorf("not a vault reference: %q", ref)
	}
	body := strings.TrimPrefix(ref, RefPrefix)
	i := strings.LastIndexByte(body, '#')
	if i <= 0 || i == len(body)-1 {
		return "", "", fmt.Errorf("vault reference %q must look like vault:<path>#<key>", ref)
	}
	return body[:i], body[i+1:], nil
}

// Resolve returns the string stored under ref.
func (c *Client) Resolve(ctx context.Context, ref string) (string, error) {
	c.mu.Lock()
	if e, ok := c.cache[ref]; ok && c.now().Before(e.exp) {
		c.mu.Unlock()
		return e.val, nil
	}
	c.mu.Unlock()

	path, key, err := ParseRef(ref)
	if err != nil {
		return "", err
	}
	mount, rel := splitMount(path)
	data, err := c.kv.read(ctx, mount, rel)
	if err != nil {
		return "", fmt.Errorf("vault read %s: %w", path, err)
	}
	raw, ok := data[key]
	if !ok {
		return "", fmt.Errorf("vault %s: key %q not found", path, key)
	}
	val, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("vault %s#%s: value is %T, want string", path, key, raw)
	}

	c.mu.Lock()
	c.cache[ref] = entry{val: val, exp: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return val, nil
}

// Forget drops cached values so the next Resolve reads Vault again.
func (c *Client) Forget() {
	c.mu.Lock()
	c.cache = make(map[string]entry)
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------
// SDK glue
// -----------------------------------------------------------------------------

type sdkReader struct{ api *vault.Client }

func (r sdkReader) read(ctx context.Context, mount, rel string) (map[string]any, error) {
	sec, err := r.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return nil, err
	}
	if sec == nil || sec.Data == nil {
		return nil, fmt.Errorf("secret %s/%s is empty", mount, rel)
	}
	return sec.Data, nil
}

// renewLoop keeps the token alive until ctx ends.  A non-renewable token
// is re-probed hourly; failures back off for thirty seconds.
func renewLoop(ctx context.Context, api *vault.Client) {
	log := zap.S().With("component", "vault")
	for ctx.Err() == nil {
		sec, err := api.Auth().Token().RenewSelfWithContext(ctx, 0)
		if err != nil {
			log.Warnw("token renew failed", "err", err)
			sleep(ctx, 30*time.Second)
			continue
		}
		if sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
			log.Infow("token not renewable")
			sleep(ctx, time.Hour)
			continue
		}

		w, err := api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{Secret: sec})
		if err != nil {
			log.Warnw("lifetime watcher", "err", err)
			sleep(ctx, 30*time.Second)
			continue
		}
		watch(ctx, w, log)
		sleep(ctx, 15*time.Second)
	}
}

// watch runs w until it stops or ctx ends.
func watch(ctx context.Context, w *vault.LifetimeWatcher, log *zap.SugaredLogger) {
	go w.Start()
	defer w.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-w.DoneCh():
			if err != nil {
				log.Warnw("token renewal stopped", "err", err)
			}
			return
		case ev := <-w.RenewCh():
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				log.Debugw("token renewed", "ttl_s", ev.Secret.Auth.LeaseDuration)
			}
		}
	}
}

// splitMount cuts "kv/formlab/db" into mount "kv" and path "formlab/db".
func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return mount, rel
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
