package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instruments records connection routing activity.
type Instruments struct {
	tracer        trace.Tracer
	checkouts     metric.Int64Counter
	errs          metric.Int64Counter
	invalidations metric.Int64Counter
}

// NewInstruments creates the instruments on the given providers. Nil
// providers fall back to the global ones.
func NewInstruments(mp metric.MeterProvider, tp trace.TracerProvider) (*Instruments, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	m := mp.Meter(ScopeName)
	checkouts, err1 := m.Int64Counter("switchpoint.checkouts",
		metric.WithDescription("Connections checked out through a switch point"),
	)
	errs, err2 := m.Int64Counter("switchpoint.checkout.errors",
		metric.WithDescription("Failed connection checkouts"),
	)
	invalidations, err3 := m.Int64Counter("switchpoint.cache.invalidations",
		metric.WithDescription("Readonly query caches cleared after a write"),
	)
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, fmt.Errorf("create instruments: %w", err)
	}
	return &Instruments{
		tracer:        tp.Tracer(ScopeName),
		checkouts:     checkouts,
		errs:          errs,
		invalidations: invalidations,
	}, nil
}

// Attrs returns the standard attributes of one routing decision.
func Attrs(switchPoint, mode, target string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("switchpoint.name", switchPoint),
		attribute.String("switchpoint.mode", mode),
		attribute.String("db.target", target),
	}
}

// StartCheckout opens a span for one checkout.
func (i *Instruments) StartCheckout(ctx context.Context, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, "switchpoint.checkout",
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndCheckout counts the checkout, records err on the span and ends it.
func (i *Instruments) EndCheckout(ctx context.Context, span trace.Span, err error, attrs ...attribute.KeyValue) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	} else {
		i.checkouts.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

// Invalidated counts one cache invalidation.
func (i *Instruments) Invalidated(ctx context.Context, attrs ...attribute.KeyValue) {
	i.invalidations.Add(ctx, 1, metric.WithAttributes(attrs...))
}
