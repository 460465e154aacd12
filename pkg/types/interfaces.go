package types

// CacheInvalidator is implemented by the query-result cache layer. The router
// calls Invalidate with the readonly target of a switch point after a write
// issued in writable mode. Implementations must clear the whole cache for id.
type CacheInvalidator interface {
	Invalidate(id PhysicalID)
}

// InvalidatorFunc adapts a function to CacheInvalidator.
type InvalidatorFunc func(id PhysicalID)

// Invalidate calls f(id).
func (f InvalidatorFunc) Invalidate(id PhysicalID) {
	f(id)
}

// NopInvalidator ignores invalidation requests.
var NopInvalidator CacheInvalidator = InvalidatorFunc(func(PhysicalID) {})

// WriteClassifier reports whether a statement mutates data or schema.
type WriteClassifier func(query string) bool
