package switchpoint

import (
	"context"
	"database/sql"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/switchpoint/internal/modectx"
	"github.com/mesh-intelligence/switchpoint/internal/telemetry"
	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// Proxy is the per switch point facade. It resolves the effective mode and
// definition for the calling context and hands out connections from the
// matching pool.
type Proxy struct {
	name   string
	repo   *Repository
	logger zerolog.Logger

	mu         sync.RWMutex
	switchedTo string
}

func newProxy(name string, repo *Repository) *Proxy {
	return &Proxy{
		name:   name,
		repo:   repo,
		logger: repo.logger.With().Str("switch_point", name).Logger(),
	}
}

// Name returns the switch point name.
func (p *Proxy) Name() string { return p.name }

// Mode returns the effective mode in ctx.
func (p *Proxy) Mode(ctx context.Context) types.Mode {
	return modectx.Mode(ctx, p.name, p.repo.globals)
}

// CurrentName returns the name of the definition the proxy resolves in ctx.
func (p *Proxy) CurrentName(ctx context.Context) string {
	return modectx.Name(ctx, p.name, p.persistentName())
}

// Definition resolves the definition in effect for ctx.
func (p *Proxy) Definition(ctx context.Context) (types.Definition, error) {
	return p.repo.defs.Resolve(p.CurrentName(ctx))
}

// Connection checks out a connection to the database selected by the
// effective mode and definition. The caller must Close it.
func (p *Proxy) Connection(ctx context.Context) (*Conn, error) {
	p.repo.reload.RLock()
	defer p.repo.reload.RUnlock()
	def, err := p.Definition(ctx)
	if err != nil {
		return nil, err
	}
	return p.checkout(ctx, def, p.Mode(ctx))
}

// checkout leases a connection to def's target for mode. The caller holds
// the repository's reload lock for reading.
func (p *Proxy) checkout(ctx context.Context, def types.Definition, mode types.Mode) (*Conn, error) {
	if p.repo.isClosed() {
		return nil, types.ErrRepositoryClosed
	}
	target := def.Target(mode)
	attrs := telemetry.Attrs(p.name, mode.String(), string(target))
	spanCtx, span := p.repo.inst.StartCheckout(ctx, attrs...)

	lease, err := p.repo.lease(spanCtx, target)
	p.repo.inst.EndCheckout(spanCtx, span, err, attrs...)
	if err != nil {
		p.logger.Debug().Err(err).Stringer("mode", mode).Str("target", string(target)).Msg("checkout failed")
		return nil, err
	}
	return &Conn{proxy: p, def: def, mode: mode, lease: lease}, nil
}

// WithWritable runs fn with the switch point scoped to Writable. A switch
// point without a definition runs fn unscoped.
func (p *Proxy) WithWritable(ctx context.Context, fn func(context.Context) error) error {
	return p.withMode(ctx, types.Writable, fn)
}

// WithReadonly runs fn with the switch point scoped to Readonly.
func (p *Proxy) WithReadonly(ctx context.Context, fn func(context.Context) error) error {
	return p.withMode(ctx, types.Readonly, fn)
}

// WithMode runs fn with the switch point scoped to the mode named by token.
// Unknown tokens fail with ErrInvalidMode before fn runs.
func (p *Proxy) WithMode(ctx context.Context, token string, fn func(context.Context) error) error {
	mode, err := types.ParseMode(token)
	if err != nil {
		return err
	}
	return p.withMode(ctx, mode, fn)
}

func (p *Proxy) withMode(ctx context.Context, mode types.Mode, fn func(context.Context) error) error {
	if !p.repo.defs.Has(p.name) {
		return fn(ctx)
	}
	return modectx.WithMode(ctx, p.name, mode, fn)
}

// WithName runs fn with the switch point resolving the definition registered
// under name. Only code running with the derived context sees the switch.
func (p *Proxy) WithName(ctx context.Context, name string, fn func(context.Context) error) error {
	return modectx.WithName(ctx, p.name, name, fn)
}

// SwitchName makes the proxy resolve the definition registered under name
// until ResetName. The switch is process-wide: every context and every
// binding sharing this proxy sees it.
func (p *Proxy) SwitchName(name string) {
	p.mu.Lock()
	p.switchedTo = name
	p.mu.Unlock()
	p.logger.Info().Str("name", name).Msg("switched name")
}

// ResetName clears the override installed by SwitchName.
func (p *Proxy) ResetName() {
	p.mu.Lock()
	p.switchedTo = ""
	p.mu.Unlock()
	p.logger.Info().Msg("reset name")
}

func (p *Proxy) persistentName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.switchedTo
}

// SetGlobalMode sets the process-wide mode of the switch point.
func (p *Proxy) SetGlobalMode(mode types.Mode) error {
	return p.repo.setGlobal(p.name, mode)
}

// Writable sets the process-wide mode to Writable.
func (p *Proxy) Writable() error { return p.SetGlobalMode(types.Writable) }

// Readonly sets the process-wide mode to Readonly.
func (p *Proxy) Readonly() error { return p.SetGlobalMode(types.Readonly) }

// ClearGlobalMode removes the process-wide mode of the switch point.
func (p *Proxy) ClearGlobalMode() {
	p.repo.ClearGlobalMode(p.name)
}

// Exec runs a statement on a connection checked out for ctx.
func (p *Proxy) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	conn, err := p.Connection(ctx)
	if err != nil {
		return nil, err
	}
	res, err := conn.ExecContext(ctx, query, args...)
	if cerr := conn.Close(); err == nil {
		err = cerr
	}
	return res, err
}

// Query runs a query and hands the rows to scan. The rows are closed and the
// connection returned before Query returns.
func (p *Proxy) Query(ctx context.Context, scan func(*sql.Rows) error, query string, args ...any) error {
	conn, err := p.Connection(ctx)
	if err != nil {
		return err
	}
	err = conn.Query(ctx, scan, query, args...)
	if cerr := conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// QueryRow runs a single-row query and hands the row to scan.
func (p *Proxy) QueryRow(ctx context.Context, scan func(*sql.Row) error, query string, args ...any) error {
	conn, err := p.Connection(ctx)
	if err != nil {
		return err
	}
	err = conn.QueryRow(ctx, scan, query, args...)
	if cerr := conn.Close(); err == nil {
		err = cerr
	}
	return err
}
