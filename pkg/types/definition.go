package types

import "strings"

// PhysicalID identifies a physical database target. Two switch points that
// name the same PhysicalID share one connection pool.
type PhysicalID string

// Canonical returns the form used as the pool key.
func (id PhysicalID) Canonical() PhysicalID {
	return PhysicalID(strings.TrimSpace(string(id)))
}

// Definition is the resolved, immutable configuration of one switch point.
type Definition struct {
	Name     string     `json:"name"`
	Readonly PhysicalID `json:"readonly,omitempty"`
	Writable PhysicalID `json:"writable,omitempty"`
}

// Target returns the physical database for mode. A definition that only names
// one side uses it for both modes.
func (d Definition) Target(mode Mode) PhysicalID {
	if mode == Writable {
		if d.Writable != "" {
			return d.Writable
		}
		return d.Readonly
	}
	if d.Readonly != "" {
		return d.Readonly
	}
	return d.Writable
}
