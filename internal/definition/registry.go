// Package definition holds the switch point definitions resolved from
// configuration. Definitions are registered at startup or reload and read on
// every connection lookup.
package definition

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// Registry maps switch point names to their definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]types.Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]types.Definition)}
}

// Load creates a registry holding every switch point in config.
func Load(config types.Config) *Registry {
	r := NewRegistry()
	r.Replace(config.Definitions())
	return r
}

// Register stores def, replacing any definition with the same name.
func (r *Registry) Register(def types.Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
}

// Replace swaps the full set of definitions in one step.
func (r *Registry) Replace(defs []types.Definition) {
	next := make(map[string]types.Definition, len(defs))
	for _, def := range defs {
		next[def.Name] = def
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = next
}

// Resolve returns the definition registered under name.
// Returns an error wrapping ErrNotFound if name was never registered.
func (r *Registry) Resolve(name string) (types.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		return types.Definition{}, fmt.Errorf("switch point %q: %w", name, types.ErrNotFound)
	}
	return def, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[name]
	return ok
}

// Names returns the registered switch point names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
