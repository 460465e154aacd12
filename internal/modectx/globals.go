// Package modectx resolves the effective mode and name of a switch point.
//
// Two kinds of state feed the resolution. Scoped overrides are frames pushed
// onto a stack carried by a context.Context: they are visible only to code
// running with the derived context and vanish when the scope returns, on every
// exit path. Global overrides live in Globals and are shared by the whole
// process until cleared and are not scoped to a context.
package modectx

import (
	"fmt"
	"sync"

	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// Globals holds the process-wide default mode of each switch point.
type Globals struct {
	mu    sync.RWMutex
	modes map[string]types.Mode
}

// NewGlobals creates an empty set of global overrides.
func NewGlobals() *Globals {
	return &Globals{modes: make(map[string]types.Mode)}
}

// Set makes mode the default for switchPoint in every context without a
// scoped override. It fails with ErrInvalidMode for anything but Readonly or
// Writable, whether or not switchPoint is configured.
func (g *Globals) Set(switchPoint string, mode types.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %s", types.ErrInvalidMode, mode)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.modes[switchPoint] = mode
	return nil
}

// Clear removes the global override of switchPoint.
func (g *Globals) Clear(switchPoint string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.modes, switchPoint)
}

// Get returns the global override of switchPoint, if any.
func (g *Globals) Get(switchPoint string) (types.Mode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.modes[switchPoint]
	return m, ok
}
