// internal/server/timeouts.go
//
// HTTP server helper with robust timeouts.
//
// Production hardening recommends:
//
//   • ReadTimeout        – abort slow-loris bodies (default 10 s)
//   • ReadHeaderTimeout  – abort slow-loris headers (5 s)
//   • WriteTimeout       – cap total response time (default 15 s)
//   • IdleTimeout        – close keep-alives on idle clients (default 60 s)
//
// Values come from the `http` config block so cmd/web doesn’t repeat
// boilerplate.  WriteTimeout must exceed the simulated submission delay.
//

package server

import (
	"net/http"
	"time"

	"github.com/yanizio/formlab/internal/config"
)

const readHeaderTimeout = 5 * time.Second

// New constructs an *http.Server from cfg.
func New(cfg config.HTTP, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadTimeout:       orDefault(cfg.ReadTimeout, 10*time.Second),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      orDefault(cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       orDefault(cfg.IdleTimeout, 60*time.Second),
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
