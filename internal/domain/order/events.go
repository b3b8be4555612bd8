package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is emitted once an order was persisted with its stock reserved.
type OrderCreatedEvent struct {
	OrderID       string
	CustomerEmail string
	Lines         []LineItem
	Total         decimal.Decimal
	OccurredAt    time.Time
}

func (e OrderCreatedEvent) PartitionKey() string { return e.OrderID }

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:       o.ID,
		CustomerEmail: o.CustomerEmail,
		Lines:         append([]LineItem(nil), o.Lines...),
		Total:         o.Total,
		OccurredAt:    time.Now().UTC(),
	}
}

// OrderPaidEvent is emitted when a pending order was confirmed as paid.
type OrderPaidEvent struct {
	OrderID    string
	Method     string
	Total      decimal.Decimal
	OccurredAt time.Time
}

func (e OrderPaidEvent) PartitionKey() string { return e.OrderID }

func (OrderPaidEvent) EventName() string { return "order.paid" }

func NewOrderPaidEvent(o *Order) OrderPaidEvent {
	evt := OrderPaidEvent{
		OrderID:    o.ID,
		Total:      o.Total,
		OccurredAt: time.Now().UTC(),
	}
	if paid, ok := o.State.(Paid); ok {
		evt.Method = string(paid.Method)
	}
	return evt
}

// OrderCancelledEvent is emitted after a cancelled order released its stock.
type OrderCancelledEvent struct {
	OrderID    string
	OccurredAt time.Time
}

func (e OrderCancelledEvent) PartitionKey() string { return e.OrderID }

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func NewOrderCancelledEvent(o *Order) OrderCancelledEvent {
	return OrderCancelledEvent{
		OrderID:    o.ID,
		OccurredAt: time.Now().UTC(),
	}
}
