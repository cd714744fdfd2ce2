// cmd/web/main.go
//
// formlab – HTTP entry point.
//
// Start-up sequence
// -----------------
//
//  1. Load env vars (system-wide file → .env fallback).
//
//  2. Resolve config (koanf: YAML + FORMLAB_ env), with vault: references
//     resolved when VAULT_ADDR is set.
//
//  3. Start daily rotating logger (tees to console when running in a TTY).
//
//  4. Optional GeoIP database, CSRF signer, template overrides.
//
//  5. Register the embedded variant schemas, then any operator overrides
//     from forms.dir (watched for edits).
//
//  6. Optional submission store (MySQL or SQLite) and its migrations.
//
//  7. Build the chi router:
//
//     • /metrics, /healthz, /static/*   – no session
//     • component routes                 – request info + visitor session
//
//     and wrap it with Security headers and ForceHTTPS.
//
//  8. Run server, notification queue, and schema watcher under one
//     errgroup; SIGINT/SIGTERM shuts all three down, SIGHUP reloads config.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/formlab/internal/component"
	"github.com/yanizio/formlab/internal/config"
	"github.com/yanizio/formlab/internal/csrf"
	"github.com/yanizio/formlab/internal/database"
	"github.com/yanizio/formlab/internal/logger"
	"github.com/yanizio/formlab/internal/message"
	"github.com/yanizio/formlab/internal/metrics"
	"github.com/yanizio/formlab/internal/middleware"
	"github.com/yanizio/formlab/internal/requestinfo"
	"github.com/yanizio/formlab/internal/schema"
	"github.com/yanizio/formlab/internal/server"
	"github.com/yanizio/formlab/internal/session"
	"github.com/yanizio/formlab/internal/variant"
	"github.com/yanizio/formlab/internal/vault"
	"github.com/yanizio/formlab/internal/view"

	_ "github.com/yanizio/formlab/components/registration"
)

const (
	serverEnvPath   = "/usr/local/etc/formlab/global.env"
	shutdownTimeout = 10 * time.Second
)

// loadEnv prefers the system-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	loadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("formlab: %v", err)
	}
}

func run(ctx context.Context) error {
	//
	// ── 1.  Config + logger ─────────────────────────────────────────────
	//
	var secrets config.SecretResolver
	if os.Getenv("VAULT_ADDR") != "" {
		vc, err := vault.New(ctx, vault.Options{})
		if err != nil {
			return err
		}
		secrets = vc
	}
	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		return err
	}

	lg, err := logger.New(cfg.Paths.Root, cfg.Log.Level, runningInTTY())
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	//
	// ── 2.  Request enrichment, CSRF, templates ─────────────────────────
	//
	if err := requestinfo.InitGeo(cfg.Geo.DBPath); err != nil {
		lg.Warnw("geoip disabled", "path", cfg.Geo.DBPath, "err", err)
	}
	defer requestinfo.CloseGeo()

	signer, err := newSigner(cfg.Security.CSRFKey)
	if err != nil {
		return err
	}
	if cfg.Security.CSRFKey == "" {
		lg.Warnw("security.csrf_key not set; tokens will not survive a restart")
	}

	configureViews(cfg)

	//
	// ── 3.  Schemas ─────────────────────────────────────────────────────
	//
	if err := variant.Load(); err != nil {
		return err
	}
	if cfg.Forms.Dir != "" {
		n, err := variant.OverrideDir(cfg.Forms.Dir)
		if err != nil {
			return err
		}
		lg.Infow("schema overrides loaded", "dir", cfg.Forms.Dir, "count", n)
	}

	//
	// ── 4.  Store + notification queue ──────────────────────────────────
	//
	db, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	queue := message.NewQueue(cfg.Submit.QueueSize, message.LogSender{})

	//
	// ── 5.  Components ──────────────────────────────────────────────────
	//
	deps := component.Deps{Config: cfg, DB: db, Queue: queue, CSRF: signer}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(lg))
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if db != nil {
			if err := db.PingContext(req.Context()); err != nil {
				http.Error(w, "store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/static/*", http.StripPrefix("/static/", view.Static()))

	comps := component.All()
	r.Group(func(r chi.Router) {
		r.Use(requestinfo.Enrich)
		r.Use(session.Middleware)
		for _, c := range comps {
			if err = c.Init(deps); err != nil {
				return
			}
			if db != nil && cfg.Store.Migrate {
				if err = database.Migrate(ctx, db, c.Migrations()); err != nil {
					return
				}
			}
			r.Mount("/", c.Routes())
			lg.Infow("component mounted", "name", c.Name())
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range comps {
			if cl, ok := c.(component.Closer); ok {
				cl.Close()
			}
		}
	}()

	handler := middleware.ForceHTTPS(cfg.HTTP.ForceHTTPS, middleware.Security(r))
	srv := server.New(cfg.HTTP, handler)

	//
	// ── 6.  Run ─────────────────────────────────────────────────────────
	//
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return queue.Run(gctx) })

	g.Go(func() error {
		lg.Infow("listening", "addr", cfg.HTTP.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		lg.Infow("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		queue.Close()
		return err
	})

	if cfg.Forms.Dir != "" {
		g.Go(func() error {
			return schema.Watch(gctx, cfg.Forms.Dir,
				func(s *schema.FormSchema, path string) {
					variant.Override(s, path)
					metrics.SchemaReloadsTotal.WithLabelValues("ok").Inc()
				},
				func(error) { metrics.SchemaReloadsTotal.WithLabelValues("error").Inc() },
			)
		})
	}

	g.Go(func() error { return reloadOnHUP(gctx) })

	return g.Wait()
}

// newSigner builds the CSRF signer from a base64 key, or a random one.
func newSigner(key string) (*csrf.Signer, error) {
	if key == "" {
		return csrf.NewSigner(nil)
	}
	raw, err := csrf.DecodeKey(key)
	if err != nil {
		return nil, err
	}
	return csrf.NewSigner(raw)
}

// openStore returns nil when no driver is configured.
func openStore(ctx context.Context, st config.Store) (*sqlx.DB, error) {
	if st.Driver == "" {
		return nil, nil
	}
	return database.Open(ctx, st.Driver, database.ExpandDSN(st.DSN, st.Password))
}

// configureViews serves template overrides from <root>/templates when the
// directory exists; debug logging disables the parsed-template cache.
func configureViews(cfg *config.Config) {
	opts := view.Options{}
	dir := filepath.Join(cfg.Paths.Root, "templates")
	if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
		opts.Dir = dir
	}
	if cfg.Log.Level == "debug" {
		opts.Policy = view.CacheSkip
	}
	view.Configure(opts)
}

// requestLogger places a request-scoped logger carrying the chi request id
// in the context.
func requestLogger(base *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base.With("req", chimw.GetReqID(r.Context()))
			next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), l)))
		})
	}
}

// reloadOnHUP re-reads configuration on SIGHUP.  New controllers and views
// pick up the reloaded values.
func reloadOnHUP(ctx context.Context) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if err := config.Reload(ctx); err != nil {
				zap.S().Warnw("config reload failed", "err", err)
				continue
			}
			configureViews(config.Get())
			zap.S().Infow("config reloaded")
		}
	}
}
