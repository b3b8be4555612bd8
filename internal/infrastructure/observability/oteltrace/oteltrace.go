package oteltrace

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "clubshop"

var propagatorOnce sync.Once

// UsePropagation installs W3C trace context and baggage as the global
// propagator. The otel default is a no-op, which would drop every incoming
// traceparent.
func UsePropagation() {
	propagatorOnce.Do(func() {
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	})
}

type tracer struct{ t trace.Tracer }

// New resolves the named tracer from the global provider. Without an SDK
// provider installed spans are non-recording but still carry the remote parent.
func New(name string) observability.Tracer {
	if name == "" {
		name = defaultTracerName
	}
	return tracer{t: otel.Tracer(name)}
}

func (t tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
