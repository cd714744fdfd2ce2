// internal/component/registry.go
//
// Component registry (cycle-free).
//
// Each concrete component lives under components/<name> and calls
// component.Register() in an init() function.  cmd/web calls Init(deps) on
// every registered component, runs their migrations when the store is
// enabled, and mounts each component's Routes() at “/”.

package component

import (
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/formlab/internal/config"
	"github.com/yanizio/formlab/internal/csrf"
	"github.com/yanizio/formlab/internal/message"
)

// Deps exposes process-wide resources to Components during Init.
type Deps struct {
	Config *config.Config
	DB     *sqlx.DB // nil when the store stage is disabled
	Queue  *message.Queue
	CSRF   *csrf.Signer
}

// Component contract.
//
// Migrations() may return nil if the component has no schema changes; it is
// called after Init.  Routes() should mount BOTH page and API endpoints, e.g:
//
//	r := chi.NewRouter()
//	r.Get("/forms/{variant}", page)
//	r.Route("/api", func(api chi.Router) { ... })
//	return r
type Component interface {
	Name() string
	Init(Deps) error
	Routes() chi.Router
	Migrations() []string
}

// Closer is optional.  cmd/web calls Close during shutdown.
type Closer interface {
	Close()
}

var (
	mu       sync.RWMutex
	registry = map[string]Component{}
)

// Register is invoked from component init() functions.
func Register(c Component) {
	mu.Lock()
	registry[c.Name()] = c
	mu.Unlock()
}

// All returns every registered component sorted by name.
func All() []Component {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Component, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
