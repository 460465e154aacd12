package switchpoint

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mesh-intelligence/switchpoint/pkg/querycache"
	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// ErrNoDefault is returned when an unmanaged binding asks for a connection
// but the configuration names no default database.
var ErrNoDefault = errors.New("no default database configured")

// Binding ties an entity to its switch point. An unmanaged binding has no
// proxy: it uses the default database and runs mode scopes unmodified.
type Binding struct {
	repo  *Repository
	proxy *Proxy
}

// Managed reports whether the binding has a switch point.
func (b *Binding) Managed() bool { return b.proxy != nil }

// Proxy returns the switch point proxy, or nil for an unmanaged binding.
func (b *Binding) Proxy() *Proxy { return b.proxy }

// Connection checks out a connection for ctx.
func (b *Binding) Connection(ctx context.Context) (*Conn, error) {
	if b.proxy != nil {
		return b.proxy.Connection(ctx)
	}
	b.repo.reload.RLock()
	defer b.repo.reload.RUnlock()
	if b.repo.isClosed() {
		return nil, types.ErrRepositoryClosed
	}
	target := b.repo.defaultTarget()
	if target == "" {
		return nil, ErrNoDefault
	}
	lease, err := b.repo.lease(ctx, target)
	if err != nil {
		return nil, err
	}
	return &Conn{mode: types.Writable, lease: lease}, nil
}

// WithWritable runs fn in writable mode. Unmanaged bindings run fn as is.
func (b *Binding) WithWritable(ctx context.Context, fn func(context.Context) error) error {
	if b.proxy == nil {
		return fn(ctx)
	}
	return b.proxy.WithWritable(ctx, fn)
}

// WithReadonly runs fn in readonly mode. Unmanaged bindings run fn as is.
func (b *Binding) WithReadonly(ctx context.Context, fn func(context.Context) error) error {
	if b.proxy == nil {
		return fn(ctx)
	}
	return b.proxy.WithReadonly(ctx, fn)
}

// Exec runs a statement on a connection checked out for ctx.
func (b *Binding) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	conn, err := b.Connection(ctx)
	if err != nil {
		return nil, err
	}
	res, err := conn.ExecContext(ctx, query, args...)
	if cerr := conn.Close(); err == nil {
		err = cerr
	}
	return res, err
}

// Query runs a query on a connection checked out for ctx.
func (b *Binding) Query(ctx context.Context, scan func(*sql.Rows) error, query string, args ...any) error {
	conn, err := b.Connection(ctx)
	if err != nil {
		return err
	}
	err = conn.Query(ctx, scan, query, args...)
	if cerr := conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// InWritable runs fn in writable mode on b and returns its result unchanged.
func InWritable[T any](ctx context.Context, b *Binding, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := b.WithWritable(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// InReadonly runs fn in readonly mode on b and returns its result unchanged.
func InReadonly[T any](ctx context.Context, b *Binding, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := b.WithReadonly(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// Cached runs load on a connection checked out through p. In readonly mode
// the result is cached under key in the query cache of the readonly
// database; in writable mode the cache is neither read nor written. Without a
// built-in cache, load always runs.
func Cached[T any](ctx context.Context, p *Proxy, key string, load func(context.Context, *Conn) (T, error)) (T, error) {
	run := func() (T, error) {
		var zero T
		conn, err := p.Connection(ctx)
		if err != nil {
			return zero, err
		}
		v, err := load(ctx, conn)
		if cerr := conn.Close(); err == nil {
			err = cerr
		}
		return v, err
	}

	store := p.repo.Cache()
	if store == nil || p.Mode(ctx) != types.Readonly {
		return run()
	}
	def, err := p.Definition(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return querycache.Fetch(store.For(def.Target(types.Readonly)), key, run)
}
