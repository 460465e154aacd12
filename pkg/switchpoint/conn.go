package switchpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mesh-intelligence/switchpoint/internal/pool"
	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// Conn is a connection checked out through a switch point. Statements run
// through Conn are classified so that a write on the writable side clears
// the readonly query cache when the Conn is closed.
type Conn struct {
	proxy *Proxy // nil for unmanaged connections
	def   types.Definition
	mode  types.Mode
	lease *pool.Lease

	mu       sync.Mutex
	wrote    bool
	closed   bool
	promoted *Conn // writable conn opened by auto_writable
}

// Mode returns the mode the connection was checked out in.
func (c *Conn) Mode() types.Mode { return c.mode }

// Target returns the physical database the connection belongs to.
func (c *Conn) Target() types.PhysicalID { return c.lease.Pool().ID() }

// Definition returns the definition the connection was resolved from. It is
// the zero Definition for unmanaged connections.
func (c *Conn) Definition() types.Definition { return c.def }

// Managed reports whether the connection belongs to a switch point.
func (c *Conn) Managed() bool { return c.proxy != nil }

// Raw returns the underlying *sql.Conn. Writes issued on it directly are not
// classified; call MarkWrite after them.
func (c *Conn) Raw() *sql.Conn { return c.lease.Conn() }

// MarkWrite records that a write was issued on the connection.
func (c *Conn) MarkWrite() {
	c.mu.Lock()
	c.wrote = true
	c.mu.Unlock()
}

// Wrote reports whether a write was recorded on the connection.
func (c *Conn) Wrote() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wrote
}

// ExecContext runs a statement that returns no rows.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	target, err := c.route(ctx, query)
	if err != nil {
		return nil, err
	}
	return target.lease.Conn().ExecContext(ctx, query, args...)
}

// QueryContext runs a query that returns rows. The caller must close the rows
// before closing the Conn.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	target, err := c.route(ctx, query)
	if err != nil {
		return nil, err
	}
	return target.lease.Conn().QueryContext(ctx, query, args...)
}

// Query runs a query, hands the rows to scan, and closes them.
func (c *Conn) Query(ctx context.Context, scan func(*sql.Rows) error, query string, args ...any) error {
	rows, err := c.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	if err := scan(rows); err != nil {
		return err
	}
	return rows.Err()
}

// QueryRow runs a query expected to return at most one row and hands the row
// to scan.
func (c *Conn) QueryRow(ctx context.Context, scan func(*sql.Row) error, query string, args ...any) error {
	target, err := c.route(ctx, query)
	if err != nil {
		return err
	}
	return scan(target.lease.Conn().QueryRowContext(ctx, query, args...))
}

// route picks the connection a statement runs on and records writes.
func (c *Conn) route(ctx context.Context, query string) (*Conn, error) {
	if c.proxy == nil {
		return c, nil
	}
	if !c.proxy.repo.classify(query) {
		return c, nil
	}
	if c.mode == types.Writable {
		c.MarkWrite()
		return c, nil
	}
	if !c.proxy.repo.autoWritable() {
		return nil, fmt.Errorf("switch point %q: %w", c.proxy.name, types.ErrReadonly)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.promoted == nil {
		c.proxy.repo.reload.RLock()
		w, err := c.proxy.checkout(ctx, c.def, types.Writable)
		c.proxy.repo.reload.RUnlock()
		if err != nil {
			return nil, err
		}
		c.proxy.logger.Debug().Str("target", string(w.Target())).Msg("promoted write to writable")
		c.promoted = w
	}
	c.promoted.MarkWrite()
	return c.promoted, nil
}

// Close returns the connection to its pool. When a write ran on the writable
// side, the readonly query cache of the definition is cleared before Close
// returns. Close is idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	promoted := c.promoted
	wrote := c.wrote
	c.mu.Unlock()

	var errs []error
	if promoted != nil {
		errs = append(errs, promoted.Close())
	}
	errs = append(errs, c.lease.Release())
	if wrote && c.mode == types.Writable && c.proxy != nil {
		c.proxy.repo.invalidate(context.Background(), c.proxy.name, c.def.Target(types.Readonly))
	}
	return errors.Join(errs...)
}
