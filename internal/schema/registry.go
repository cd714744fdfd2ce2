// internal/schema/registry.go
//
// formlab – Schema: process-wide registries.
//
// Context
//   Two registries live here.  The schema registry maps an ID (“rhf-zod”)
//   to its *FormSchema so handlers fetch one source of truth.  The predicate
//   registry gives YAML definitions a way to reference Go predicates by
//   name, the escape hatch for rules a data description cannot express.
//
//------------------------------------------------------------------------------

package schema

import (
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*FormSchema)

	predMu         sync.RWMutex
	predicates     = make(map[string]func(any) bool)
	rulePredicates = make(map[string]func(map[string]any) bool)
)

// Register inserts or replaces s under its ID.
func Register(s *FormSchema) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.id] = s
}

// Get returns a schema by ID.  The boolean is false when the ID is unknown.
func Get(id string) (*FormSchema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[id]
	return s, ok
}

// All returns every registered schema sorted by ID.
func All() []*FormSchema {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]*FormSchema, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// RegisterPredicate makes fn available to `predicate` constraints by name.
// Call from init() before any schema referencing it is defined.
func RegisterPredicate(name string, fn func(any) bool) {
	predMu.Lock()
	predicates[name] = fn
	predMu.Unlock()
}

// RegisterRulePredicate makes fn available to `predicate` rules by name.
func RegisterRulePredicate(name string, fn func(map[string]any) bool) {
	predMu.Lock()
	rulePredicates[name] = fn
	predMu.Unlock()
}

func lookupPredicate(name string) (func(any) bool, bool) {
	predMu.RLock()
	defer predMu.RUnlock()
	fn, ok := predicates[name]
	return fn, ok
}

func lookupRulePredicate(name string) (func(map[string]any) bool, bool) {
	predMu.RLock()
	defer predMu.RUnlock()
	fn, ok := rulePredicates[name]
	return fn, ok
}
