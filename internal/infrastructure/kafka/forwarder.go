package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	domoutbox "github.com/Zhima-Mochi/clubshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/clubshop/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/Zhima-Mochi/clubshop/internal/observability/logctx"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

const peerKafka = "kafka"

// MessageWriter is the part of *kafka.Writer the forwarder needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter builds a synchronous, key-hashed writer for topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// Forwarder writes every bus event to Kafka wrapped in an Envelope keyed by order ID.
type Forwarder struct {
	w        MessageWriter
	producer string
	now      func() time.Time
	log      observability.Logger
	requests observability.Counter
	duration observability.Histogram
}

func NewForwarder(w MessageWriter, producer string, tel observability.Observability) *Forwarder {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return &Forwarder{
		w:        w,
		producer: producer,
		now:      time.Now,
		log:      tel.Logger().With(observability.F("component", "kafka_forwarder")),
		requests: m.Counter(observability.MExternalRequests),
		duration: m.Histogram(observability.MExternalRequestDuration),
	}
}

// Register subscribes the forwarder to every event on sub.
func (f *Forwarder) Register(sub domoutbox.Subscriber) {
	sub.Subscribe(outbox.AllEvents, f.Handle)
}

func (f *Forwarder) Handle(ctx context.Context, e domoutbox.Event) error {
	msg, err := f.message(ctx, e)
	if err != nil {
		return err
	}

	start := f.now()
	err = f.w.WriteMessages(ctx, msg)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	f.requests.Add(1,
		observability.L("peer", peerKafka),
		observability.L("endpoint", e.EventName()),
		observability.L("outcome", outcome),
	)
	f.duration.Observe(time.Since(start).Seconds(),
		observability.L("peer", peerKafka),
		observability.L("endpoint", e.EventName()),
	)

	if err != nil {
		logctx.FromOr(ctx, f.log).Warn("kafka_forward_failed",
			observability.F("event", e.EventName()),
			observability.F("key", string(msg.Key)),
			observability.Err(err),
		)
		return fmt.Errorf("kafka forward %s: %w", e.EventName(), err)
	}
	return nil
}

func (f *Forwarder) message(ctx context.Context, e domoutbox.Event) (kafka.Message, error) {
	payload, at, err := payloadOf(e)
	if err != nil {
		return kafka.Message{}, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: encode %s payload: %w", e.EventName(), err)
	}
	if at.IsZero() {
		at = f.now().UTC()
	}
	key := domoutbox.KeyOf(e)

	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     e.EventName(),
		EventVersion:  EventVersion,
		OccurredAt:    at,
		Producer:      f.producer,
		CorrelationID: key,
		Payload:       raw,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	value, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: encode envelope: %w", err)
	}

	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  at,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(e.EventName())},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(EventVersion))},
		},
	}, nil
}

func (f *Forwarder) Close() error { return f.w.Close() }
