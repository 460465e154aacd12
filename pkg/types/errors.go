package types

import (
	"errors"
	"fmt"
)

// Routing errors.
var (
	ErrNotFound         = errors.New("switch point not found")
	ErrInvalidMode      = errors.New("invalid mode")
	ErrReadonly         = errors.New("write operation in readonly mode")
	ErrRepositoryClosed = errors.New("repository is closed")
)

// ConnectionError wraps a pool or driver failure raised while checking out a
// connection for Target. The underlying error is passed through unchanged.
type ConnectionError struct {
	Target PhysicalID
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %q: %v", e.Target, e.Err)
}

// Unwrap returns the driver error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}
