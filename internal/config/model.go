// internal/config/model.go
//
// Typed configuration model for formlab.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                           – dotenv values,
//   • `conf/global.yaml`                        – primary static file,
//   • `FORMLAB_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with `vault:` is resolved through the Vault
// client *before* unmarshalling, so the model never stores Vault URIs, only
// plain strings.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • Durations accept Go syntax ("1s", "250ms").
//   • The `Paths` block is filled at runtime; YAML must not try to set it.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr   string        `koanf:"listen_addr"   validate:"required,hostname_port"`
	ForceHTTPS   bool          `koanf:"force_https"`
	ReadTimeout  time.Duration `koanf:"read_timeout"  validate:"gte=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gte=0"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"  validate:"gte=0"`
}

//
// Log section
//

// Log selects the zap level.
type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

//
// Submit section
//

// Submit tunes the simulated submission collaborator.
type Submit struct {
	// Delay is the simulated network latency before a submission settles.
	Delay time.Duration `koanf:"delay" validate:"gte=0"`
	// SuccessLinger is how long the success banner stays up.
	SuccessLinger time.Duration `koanf:"success_linger" validate:"gte=0"`
	// QueueSize bounds the notification queue.
	QueueSize int `koanf:"queue_size" validate:"gte=0"`
	// Notify enqueues a welcome notification for each accepted record.
	Notify bool `koanf:"notify"`
}

//
// Store section
//

// Store enables the optional database stage.  An empty Driver disables it.
//
// The *template* (`DSN`) is kept in YAML so operators can tweak host, port,
// or flags without touching Vault.  The *secret* (`Password`) normally comes
// from Vault and is spliced into the DSN at runtime via the `{password}`
// placeholder.
type Store struct {
	Driver   string `koanf:"driver"   validate:"omitempty,oneof=mysql sqlite3"`
	DSN      string `koanf:"dsn"      validate:"required_with=Driver"`
	Password string `koanf:"password"`
	Table    string `koanf:"table"    validate:"omitempty,sqlident"`
	Migrate  bool   `koanf:"migrate"`
}

//
// Forms section
//

// Forms controls schema loading and validation behaviour.
type Forms struct {
	// Dir is an optional directory of YAML overrides, watched for changes.
	Dir        string `koanf:"dir"`
	CollectAll bool   `koanf:"collect_all"`
}

//
// Security section
//

// Security holds the CSRF key (base64, ≥32 bytes once decoded).  Empty
// means an ephemeral key generated at startup.
type Security struct {
	CSRFKey string `koanf:"csrf_key" validate:"omitempty,base64url|base64|base64rawurl"`
}

//
// Geo section
//

// Geo points at an optional GeoLite2-City database.
type Geo struct {
	DBPath string `koanf:"db_path"`
}

//
// Session section
//

// Session bounds the per-visitor controller cache.
type Session struct {
	CacheSize int `koanf:"cache_size" validate:"gte=0"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // FORMLAB_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Log      Log      `koanf:"log"`
	Submit   Submit   `koanf:"submit"`
	Store    Store    `koanf:"store"`
	Forms    Forms    `koanf:"forms"`
	Security Security `koanf:"security"`
	Geo      Geo      `koanf:"geo"`
	Session  Session  `koanf:"session"`
	Paths    Paths    `koanf:"-"`
}

// applyDefaults fills zero values that have a sensible non-zero default.
func (c *Config) applyDefaults() {
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.Submit.QueueSize == 0 {
		c.Submit.QueueSize = 64
	}
	if c.Store.Table == "" {
		c.Store.Table = "form_submission"
	}
	if c.Session.CacheSize == 0 {
		c.Session.CacheSize = 4096
	}
}
