// Package querycache keeps query results read from readonly databases. There
// is one cache per physical database; a write routed through the writable
// side of a switch point clears the cache of its readonly side in full.
package querycache

import (
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// Cache holds the cached results of one physical database.
type Cache struct {
	id  types.PhysicalID
	lru *lru.Cache[string, any]
}

// ID returns the physical database the cache belongs to.
func (c *Cache) ID() types.PhysicalID { return c.id }

// Get returns the cached value for key.
func (c *Cache) Get(key string) (any, bool) { return c.lru.Get(key) }

// Add stores value under key, evicting the least recently used entry when full.
func (c *Cache) Add(key string, value any) { c.lru.Add(key, value) }

// Len returns the number of cached entries.
func (c *Cache) Len() int { return c.lru.Len() }

// Keys returns the cached keys, oldest first.
func (c *Cache) Keys() []string { return c.lru.Keys() }

// Purge drops every entry.
func (c *Cache) Purge() { c.lru.Purge() }

// Fetch returns the cached value for key, or calls load and caches its result.
// Errors from load are not cached.
func Fetch[T any](c *Cache, key string, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Add(key, v)
	return v, nil
}

// Key builds a cache key from a query and its arguments.
func Key(query string, args ...any) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(query))
	for _, a := range args {
		fmt.Fprintf(&b, "\x00%T:%v", a, a)
	}
	return b.String()
}

// Store owns the caches of every physical database and implements
// types.CacheInvalidator.
type Store struct {
	mu     sync.Mutex
	size   int
	caches map[types.PhysicalID]*Cache
	logger zerolog.Logger
}

// NewStore creates a store whose caches hold up to size entries each.
// A non-positive size selects types.DefaultCacheSize.
func NewStore(size int, logger zerolog.Logger) *Store {
	if size <= 0 {
		size = types.DefaultCacheSize
	}
	return &Store{
		size:   size,
		caches: make(map[types.PhysicalID]*Cache),
		logger: logger,
	}
}

// For returns the cache of id, creating it on first use.
func (s *Store) For(id types.PhysicalID) *Cache {
	id = id.Canonical()
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.caches[id]; ok {
		return c
	}
	l, err := lru.New[string, any](s.size)
	if err != nil {
		// lru.New only fails for a non-positive size, which NewStore rules out.
		panic(err)
	}
	c := &Cache{id: id, lru: l}
	s.caches[id] = c
	return c
}

// Invalidate clears the whole cache of id. Unknown ids are ignored.
func (s *Store) Invalidate(id types.PhysicalID) {
	id = id.Canonical()
	s.mu.Lock()
	c, ok := s.caches[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	n := c.Len()
	c.Purge()
	s.logger.Debug().Str("target", string(id)).Int("entries", n).Msg("invalidated query cache")
}

// Reset clears every cache.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.caches {
		c.Purge()
	}
}

var _ types.CacheInvalidator = (*Store)(nil)
