// Package kafka forwards domain events from the in-process bus to a Kafka topic.
package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	dominv "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/clubshop/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/clubshop/internal/domain/outbox"
	"github.com/shopspring/decimal"
)

const EventVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type LinePayload struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

type OrderCreatedPayload struct {
	OrderID       string          `json:"order_id"`
	CustomerEmail string          `json:"customer_email"`
	Items         []LinePayload   `json:"items"`
	Total         decimal.Decimal `json:"total"`
}

type OrderPaidPayload struct {
	OrderID       string          `json:"order_id"`
	PaymentMethod string          `json:"payment_method"`
	Total         decimal.Decimal `json:"total"`
}

type OrderCancelledPayload struct {
	OrderID string `json:"order_id"`
}

type StockLinePayload struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type StockMovedPayload struct {
	OrderID string             `json:"order_id"`
	Items   []StockLinePayload `json:"items"`
}

// payloadOf maps a domain event to its wire payload and the time it
// happened.
func payloadOf(e domoutbox.Event) (payload any, at time.Time, err error) {
	switch ev := e.(type) {
	case domorder.OrderCreatedEvent:
		items := make([]LinePayload, 0, len(ev.Lines))
		for _, l := range ev.Lines {
			items = append(items, LinePayload{ProductID: l.ProductID, Name: l.Name, UnitPrice: l.UnitPrice, Quantity: l.Quantity})
		}
		return OrderCreatedPayload{OrderID: ev.OrderID, CustomerEmail: ev.CustomerEmail, Items: items, Total: ev.Total}, ev.OccurredAt, nil
	case domorder.OrderPaidEvent:
		return OrderPaidPayload{OrderID: ev.OrderID, PaymentMethod: ev.Method, Total: ev.Total}, ev.OccurredAt, nil
	case domorder.OrderCancelledEvent:
		return OrderCancelledPayload{OrderID: ev.OrderID}, ev.OccurredAt, nil
	case dominv.StockReservedEvent:
		return StockMovedPayload{OrderID: ev.OrderID, Items: stockLines(ev.Lines)}, ev.OccurredAt, nil
	case dominv.StockReleasedEvent:
		return StockMovedPayload{OrderID: ev.OrderID, Items: stockLines(ev.Lines)}, ev.OccurredAt, nil
	default:
		return nil, time.Time{}, fmt.Errorf("kafka: no payload mapping for event %q", e.EventName())
	}
}

func stockLines(lines []dominv.StockLine) []StockLinePayload {
	out := make([]StockLinePayload, 0, len(lines))
	for _, l := range lines {
		out = append(out, StockLinePayload{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}
