package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	dominv "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/clubshop/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/clubshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/clubshop/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/Zhima-Mochi/clubshop/internal/observability/obstest"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestForwarderWritesEnvelopeKeyedByOrder(t *testing.T) {
	w := &fakeWriter{}
	rec := obstest.New()
	f := NewForwarder(w, "clubshop", rec)

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	evt := domorder.OrderCreatedEvent{
		OrderID:       "o1",
		CustomerEmail: "fan@club.test",
		Lines: []domorder.LineItem{
			{ProductID: "ball", Name: "Ball", UnitPrice: decimal.RequireFromString("99.90"), Quantity: 2},
		},
		Total:      decimal.RequireFromString("199.80"),
		OccurredAt: at,
	}
	require.NoError(t, f.Handle(context.Background(), evt))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "o1", string(msg.Key))
	assert.Contains(t, msg.Headers, kafka.Header{Key: "x-event-type", Value: []byte("order.created")})

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "order.created", env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "clubshop", env.Producer)
	assert.Equal(t, "o1", env.CorrelationID)
	assert.True(t, env.OccurredAt.Equal(at))

	var payload OrderCreatedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "fan@club.test", payload.CustomerEmail)
	require.Len(t, payload.Items, 1)
	assert.True(t, payload.Total.Equal(decimal.RequireFromString("199.80")))

	assert.Equal(t, float64(1), rec.CounterValue(observability.MExternalRequests,
		observability.L("peer", "kafka"), observability.L("outcome", "success")))
}

func TestForwarderReportsWriteFailures(t *testing.T) {
	down := errors.New("broker down")
	rec := obstest.New()
	f := NewForwarder(&fakeWriter{err: down}, "clubshop", rec)

	err := f.Handle(context.Background(), dominv.StockReleasedEvent{OrderID: "o1"})
	assert.ErrorIs(t, err, down)
	assert.Len(t, rec.Entries("kafka_forward_failed"), 1)
	assert.Equal(t, float64(1), rec.CounterValue(observability.MExternalRequests,
		observability.L("peer", "kafka"), observability.L("outcome", "error")))
}

type unknownEvent struct{}

func (unknownEvent) EventName() string { return "mystery" }

func TestForwarderRejectsUnmappedEvents(t *testing.T) {
	w := &fakeWriter{}
	f := NewForwarder(w, "clubshop", nil)

	assert.Error(t, f.Handle(context.Background(), unknownEvent{}))
	assert.Empty(t, w.msgs)
}

func TestForwarderReceivesEveryBusEvent(t *testing.T) {
	w := &fakeWriter{}
	bus := outbox.NewBus(nil, nil)
	f := NewForwarder(w, "clubshop", nil)
	f.Register(bus)

	ctx := context.Background()
	bus.Start(ctx)
	for _, e := range []domoutbox.Event{
		domorder.OrderPaidEvent{OrderID: "o1", Method: "pix"},
		domorder.OrderCancelledEvent{OrderID: "o2"},
		dominv.StockReservedEvent{OrderID: "o3", Lines: []dominv.StockLine{{ProductID: "ball", Quantity: 1}}},
	} {
		require.NoError(t, bus.Publish(ctx, e))
	}
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	bus.Stop(stopCtx)

	w.mu.Lock()
	defer w.mu.Unlock()
	keys := make([]string, 0, len(w.msgs))
	for _, m := range w.msgs {
		keys = append(keys, string(m.Key))
	}
	assert.ElementsMatch(t, []string{"o1", "o2", "o3"}, keys)

	require.NoError(t, f.Close())
	assert.True(t, w.closed)
}
