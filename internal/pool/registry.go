// Package pool owns one database/sql pool per physical database. Pools are
// keyed by PhysicalID, so switch points that name the same database share a
// pool and switch points that name different databases never do.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// ErrRegistryClosed is returned by PoolFor after Close.
var ErrRegistryClosed = errors.New("pool registry is closed")

// errReset signals that the registry was reset while a pool was being opened.
var errReset = errors.New("pool registry reset during open")

// Registry lazily creates and caches pools.
type Registry struct {
	mu        sync.RWMutex
	databases map[string]types.Database
	pools     map[types.PhysicalID]*Pool
	gen       uint64
	closed    bool

	group  singleflight.Group
	opener Opener
	logger zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithOpener replaces the function used to open new pools.
func WithOpener(o Opener) Option {
	return func(r *Registry) {
		r.opener = o
	}
}

// WithLogger sets the registry logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates a registry for the given databases. No pool is opened
// until first use.
func NewRegistry(databases map[string]types.Database, opts ...Option) *Registry {
	r := &Registry{
		databases: copyDatabases(databases),
		pools:     make(map[types.PhysicalID]*Pool),
		opener:    OpenSQL,
		logger:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// PoolFor returns the pool for id, opening it on first use. Equal ids always
// yield the identical *Pool until the registry is reset.
func (r *Registry) PoolFor(ctx context.Context, id types.PhysicalID) (*Pool, error) {
	id = id.Canonical()
	for {
		p, err := r.poolFor(ctx, id)
		if errors.Is(err, errReset) {
			continue
		}
		return p, err
	}
}

func (r *Registry) poolFor(ctx context.Context, id types.PhysicalID) (*Pool, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrRegistryClosed
	}
	if p, ok := r.pools[id]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.group.Do(string(id), func() (any, error) {
		r.mu.RLock()
		if p, ok := r.pools[id]; ok {
			r.mu.RUnlock()
			return p, nil
		}
		config, ok := r.databases[string(id)]
		gen := r.gen
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w %q", types.ErrDatabaseUnknown, id)
		}

		db, err := r.opener(ctx, id, config)
		if err != nil {
			return nil, &types.ConnectionError{Target: id, Err: err}
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed || r.gen != gen {
			db.Close()
			if r.closed {
				return nil, ErrRegistryClosed
			}
			return nil, errReset
		}
		if p, ok := r.pools[id]; ok {
			db.Close()
			return p, nil
		}
		p := newPool(id, config.Driver, db, r.logger)
		r.pools[id] = p
		r.logger.Debug().Str("target", string(id)).Str("driver", config.Driver).Msg("opened pool")
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Pool), nil
}

// IDs returns every configured database id, sorted.
func (r *Registry) IDs() []types.PhysicalID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]types.PhysicalID, 0, len(r.databases))
	for name := range r.databases {
		ids = append(ids, types.PhysicalID(name))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Each calls fn for every open pool in id order.
func (r *Registry) Each(fn func(*Pool)) {
	r.mu.RLock()
	pools := make([]*Pool, 0, len(r.pools))
	for _, p := range r.pools {
		pools = append(pools, p)
	}
	r.mu.RUnlock()

	sort.Slice(pools, func(i, j int) bool { return pools[i].id < pools[j].id })
	for _, p := range pools {
		fn(p)
	}
}

// Reset closes every open pool and installs a new set of databases. Pools are
// reopened lazily on next use.
func (r *Registry) Reset(databases map[string]types.Database) error {
	r.mu.Lock()
	old := r.pools
	r.pools = make(map[types.PhysicalID]*Pool)
	r.databases = copyDatabases(databases)
	r.gen++
	r.mu.Unlock()

	r.logger.Debug().Int("pools", len(old)).Msg("reset pool registry")
	return closeAll(old)
}

// Close closes every pool. Subsequent PoolFor calls fail with ErrRegistryClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	old := r.pools
	r.pools = make(map[types.PhysicalID]*Pool)
	r.mu.Unlock()

	return closeAll(old)
}

func closeAll(pools map[types.PhysicalID]*Pool) error {
	var errs []error
	for _, p := range pools {
		if err := p.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.id, err))
		}
	}
	return errors.Join(errs...)
}

func copyDatabases(in map[string]types.Database) map[string]types.Database {
	out := make(map[string]types.Database, len(in))
	for name, db := range in {
		out[string(types.PhysicalID(name).Canonical())] = db
	}
	return out
}
