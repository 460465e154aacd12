package types

import (
	"fmt"
	"strings"
)

// Mode selects which physical database a switch point resolves to.
type Mode int

// Supported modes. The zero value is not a valid mode.
const (
	Readonly Mode = iota + 1
	Writable
)

// DefaultMode applies when neither a scope nor a global override is active.
const DefaultMode = Readonly

// Mode tokens accepted by ParseMode.
const (
	ModeTokenReadonly = "readonly"
	ModeTokenWritable = "writable"
)

// ParseMode converts a mode token into a Mode. Tokens are matched
// case-insensitively after trimming. Anything else fails with ErrInvalidMode.
func ParseMode(token string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case ModeTokenReadonly:
		return Readonly, nil
	case ModeTokenWritable:
		return Writable, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, token)
	}
}

// Valid reports whether m is Readonly or Writable.
func (m Mode) Valid() bool {
	return m == Readonly || m == Writable
}

// String returns the mode token.
func (m Mode) String() string {
	switch m {
	case Readonly:
		return ModeTokenReadonly
	case Writable:
		return ModeTokenWritable
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}
