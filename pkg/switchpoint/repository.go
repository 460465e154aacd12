package switchpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mesh-intelligence/switchpoint/internal/definition"
	"github.com/mesh-intelligence/switchpoint/internal/modectx"
	"github.com/mesh-intelligence/switchpoint/internal/pool"
	"github.com/mesh-intelligence/switchpoint/internal/sqlclass"
	"github.com/mesh-intelligence/switchpoint/internal/telemetry"
	"github.com/mesh-intelligence/switchpoint/pkg/querycache"
	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// Repository is the process-wide registry of switch point proxies. Proxies
// are created on first Checkout and live until Reload or Close.
type Repository struct {
	// reload is held for writing while Reload or Close swap the pools and
	// definitions, and for reading while a checkout resolves and leases.
	reload sync.RWMutex

	mu      sync.RWMutex
	config  types.Config
	proxies map[string]*Proxy
	closed  bool

	defs    *definition.Registry
	pools   *pool.Registry
	globals *modectx.Globals
	cache   *querycache.Store
	inst    *telemetry.Instruments

	invalidator    types.CacheInvalidator
	classify       types.WriteClassifier
	opener         pool.Opener
	logger         zerolog.Logger
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// New validates config and creates a repository. No database is opened
// until a connection is first requested.
func New(config types.Config, opts ...Option) (*Repository, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := &Repository{
		config:   config,
		proxies:  make(map[string]*Proxy),
		globals:  modectx.NewGlobals(),
		classify: sqlclass.IsWrite,
		logger:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}

	if r.invalidator == nil {
		r.cache = querycache.NewStore(config.CacheSize(), r.logger)
		r.invalidator = r.cache
	}

	poolOpts := []pool.Option{pool.WithLogger(r.logger)}
	if r.opener != nil {
		poolOpts = append(poolOpts, pool.WithOpener(r.opener))
	}
	r.defs = definition.Load(config)
	r.pools = pool.NewRegistry(config.Databases, poolOpts...)
	inst, err := telemetry.NewInstruments(r.meterProvider, r.tracerProvider)
	if err != nil {
		return nil, err
	}
	r.inst = inst

	r.logger.Debug().Strs("switch_points", r.defs.Names()).Msg("repository ready")
	return r, nil
}

// Checkout returns the proxy of the named switch point, creating it on first
// use. Every call with the same name returns the same *Proxy.
// Returns an error wrapping ErrNotFound if name is not configured.
func (r *Repository) Checkout(name string) (*Proxy, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, types.ErrRepositoryClosed
	}
	if p, ok := r.proxies[name]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	if !r.defs.Has(name) {
		return nil, fmt.Errorf("switch point %q: %w", name, types.ErrNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, types.ErrRepositoryClosed
	}
	if p, ok := r.proxies[name]; ok {
		return p, nil
	}
	p := newProxy(name, r)
	r.proxies[name] = p
	return p, nil
}

// Bind associates an entity with a switch point. An empty name yields an
// unmanaged binding on the default database. An unknown name fails here,
// not at the first query.
func (r *Repository) Bind(name string) (*Binding, error) {
	if name == "" {
		return &Binding{repo: r}, nil
	}
	p, err := r.Checkout(name)
	if err != nil {
		return nil, err
	}
	return &Binding{repo: r, proxy: p}, nil
}

// Reload replaces the configuration. Proxies and pools are discarded and
// rebuilt on next use; the query cache is cleared. Global modes are kept.
// Checkouts in flight finish against the old configuration; later ones see
// only the new one.
func (r *Repository) Reload(config types.Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	r.reload.Lock()
	defer r.reload.Unlock()
	if r.isClosed() {
		return types.ErrRepositoryClosed
	}

	resetErr := r.pools.Reset(config.Databases)
	r.mu.Lock()
	r.config = config
	r.proxies = make(map[string]*Proxy)
	r.defs.Replace(config.Definitions())
	r.mu.Unlock()
	if r.cache != nil {
		r.cache.Reset()
	}

	if resetErr != nil {
		return fmt.Errorf("reset pools: %w", resetErr)
	}
	r.logger.Info().Strs("switch_points", r.defs.Names()).Msg("reloaded configuration")
	return nil
}

// Close closes every pool. Later calls fail with ErrRepositoryClosed.
func (r *Repository) Close() error {
	r.reload.Lock()
	defer r.reload.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.proxies = make(map[string]*Proxy)
	r.mu.Unlock()

	return r.pools.Close()
}

// Names returns the configured switch point names, sorted.
func (r *Repository) Names() []string {
	return r.defs.Names()
}

// Definition returns the definition registered under name.
func (r *Repository) Definition(name string) (types.Definition, error) {
	return r.defs.Resolve(name)
}

// Config returns the active configuration.
func (r *Repository) Config() types.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// Cache returns the built-in query cache, or nil when WithInvalidator
// installed an external one.
func (r *Repository) Cache() *querycache.Store {
	return r.cache
}

// Pools returns the pool registry.
func (r *Repository) Pools() *pool.Registry {
	return r.pools
}

// SetGlobalMode sets the process-wide mode of the named switch point from a
// mode token. Unknown tokens fail with ErrInvalidMode whether or not the
// switch point is configured.
func (r *Repository) SetGlobalMode(name, token string) error {
	mode, err := types.ParseMode(token)
	if err != nil {
		return err
	}
	return r.setGlobal(name, mode)
}

// ClearGlobalMode removes the process-wide mode of the named switch point.
func (r *Repository) ClearGlobalMode(name string) {
	r.globals.Clear(name)
	r.logger.Info().Str("switch_point", name).Msg("cleared global mode")
}

func (r *Repository) setGlobal(name string, mode types.Mode) error {
	if err := r.globals.Set(name, mode); err != nil {
		return err
	}
	r.logger.Info().Str("switch_point", name).Stringer("mode", mode).Msg("set global mode")
	return nil
}

// WithWritable runs fn with every named switch point scoped to Writable.
func (r *Repository) WithWritable(ctx context.Context, names []string, fn func(context.Context) error) error {
	return r.withModes(ctx, names, types.Writable, fn)
}

// WithReadonly runs fn with every named switch point scoped to Readonly.
func (r *Repository) WithReadonly(ctx context.Context, names []string, fn func(context.Context) error) error {
	return r.withModes(ctx, names, types.Readonly, fn)
}

// WithWritableAll runs fn with every configured switch point scoped to Writable.
func (r *Repository) WithWritableAll(ctx context.Context, fn func(context.Context) error) error {
	return r.withModes(ctx, r.defs.Names(), types.Writable, fn)
}

// WithReadonlyAll runs fn with every configured switch point scoped to Readonly.
func (r *Repository) WithReadonlyAll(ctx context.Context, fn func(context.Context) error) error {
	return r.withModes(ctx, r.defs.Names(), types.Readonly, fn)
}

func (r *Repository) withModes(ctx context.Context, names []string, mode types.Mode, fn func(context.Context) error) error {
	scoped := ctx
	for _, name := range names {
		if !r.defs.Has(name) {
			return fmt.Errorf("switch point %q: %w", name, types.ErrNotFound)
		}
		var err error
		scoped, err = modectx.PushMode(scoped, name, mode)
		if err != nil {
			return err
		}
	}
	return fn(scoped)
}

func (r *Repository) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *Repository) autoWritable() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.AutoWritable
}

func (r *Repository) defaultTarget() types.PhysicalID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Default.Canonical()
}

func (r *Repository) lease(ctx context.Context, target types.PhysicalID) (*pool.Lease, error) {
	p, err := r.pools.PoolFor(ctx, target)
	if err != nil {
		return nil, err
	}
	return p.Checkout(ctx)
}

// invalidate clears the query cache of target after a write on switchPoint.
func (r *Repository) invalidate(ctx context.Context, switchPoint string, target types.PhysicalID) {
	r.invalidator.Invalidate(target)
	r.inst.Invalidated(ctx, telemetry.Attrs(switchPoint, types.Writable.String(), string(target))...)
	r.logger.Debug().Str("switch_point", switchPoint).Str("target", string(target)).Msg("invalidated readonly cache")
}
