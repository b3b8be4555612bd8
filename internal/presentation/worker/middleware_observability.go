// Package workerpresentation is the entry point for event handlers, the
// background counterpart of the HTTP layer.
package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/clubshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/Zhima-Mochi/clubshop/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// EventFields are the log fields of one handler run. Event, Subscribed and
// OrderID stay empty when unknown.
type EventFields struct {
	EventID    string
	Event      string
	Subscribed string
	OrderID    string
}

// WithEventContext puts an event-scoped logger on ctx. EventID is generated
// when empty; trace and span are taken from ctx when it carries a span.
func WithEventContext(ctx context.Context, base observability.Logger, ef EventFields) context.Context {
	if ef.EventID == "" {
		ef.EventID = uuid.NewString()
	}
	fields := []observability.Field{observability.F("event_id", ef.EventID)}
	for _, kv := range [][2]string{
		{"event", ef.Event},
		{"subscribed", ef.Subscribed},
		{"order_id", ef.OrderID},
	} {
		if kv[1] != "" {
			fields = append(fields, observability.F(kv[0], kv[1]))
		}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	ctx, _ = logctx.Enrich(ctx, base, fields...)
	return ctx
}

// Subscriber decorates a subscriber so every handler starts with an
// event-scoped logger in its context.
func Subscriber(next domoutbox.Subscriber, base observability.Logger, tel observability.Observability) domoutbox.Subscriber {
	if base == nil && tel != nil {
		base = tel.Logger()
	}
	if base == nil {
		base = observability.NopLogger()
	}
	return subscriber{next: next, base: base}
}

type subscriber struct {
	next domoutbox.Subscriber
	base observability.Logger
}

func (s subscriber) Subscribe(eventName string, h domoutbox.Handler) {
	s.next.Subscribe(eventName, func(ctx context.Context, e domoutbox.Event) error {
		ctx = WithEventContext(ctx, s.base, EventFields{
			Event:      e.EventName(),
			Subscribed: eventName,
			OrderID:    domoutbox.KeyOf(e),
		})
		return h(ctx, e)
	})
}
