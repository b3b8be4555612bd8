package inventory

import "time"

// StockReservedEvent is emitted after an order's line items were decremented.
type StockReservedEvent struct {
	OrderID    string
	Lines      []StockLine
	OccurredAt time.Time
}

func (e StockReservedEvent) PartitionKey() string { return e.OrderID }

func (StockReservedEvent) EventName() string { return "inventory.stock_reserved" }

func NewStockReservedEvent(orderID string, lines []StockLine) StockReservedEvent {
	return StockReservedEvent{
		OrderID:    orderID,
		Lines:      lines,
		OccurredAt: time.Now().UTC(),
	}
}

// StockReleasedEvent is emitted when a cancelled order gave its stock back.
type StockReleasedEvent struct {
	OrderID    string
	Lines      []StockLine
	OccurredAt time.Time
}

func (e StockReleasedEvent) PartitionKey() string { return e.OrderID }

func (StockReleasedEvent) EventName() string { return "inventory.stock_released" }

func NewStockReleasedEvent(orderID string, lines []StockLine) StockReleasedEvent {
	return StockReleasedEvent{
		OrderID:    orderID,
		Lines:      lines,
		OccurredAt: time.Now().UTC(),
	}
}

type StockLine struct {
	ProductID string
	Quantity  int
}
