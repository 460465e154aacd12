package switchpoint

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mesh-intelligence/switchpoint/internal/pool"
	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the repository logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

// WithInvalidator replaces the built-in query cache with an external cache
// layer. Cached then serves every read from the database.
func WithInvalidator(inv types.CacheInvalidator) Option {
	return func(r *Repository) {
		r.invalidator = inv
	}
}

// WithClassifier replaces the SQL write classifier.
func WithClassifier(c types.WriteClassifier) Option {
	return func(r *Repository) {
		r.classify = c
	}
}

// WithOpener replaces the function that opens database pools.
func WithOpener(o pool.Opener) Option {
	return func(r *Repository) {
		r.opener = o
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *Repository) {
		r.meterProvider = mp
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Repository) {
		r.tracerProvider = tp
	}
}
