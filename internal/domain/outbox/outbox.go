package outbox

import "context"

// Event is a domain fact, named like "order.created".
type Event interface {
	EventName() string
}

// Keyed is an event that belongs to one aggregate. Downstream transports
// partition on the key so one order's events stay in sequence.
type Keyed interface {
	Event
	PartitionKey() string
}

// Handler reacts to one published event. Its error is logged by the bus and
// never reaches the publisher.
type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers by event name.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

// KeyOf returns the partition key of e, or "" for events without one.
func KeyOf(e Event) string {
	if k, ok := e.(Keyed); ok {
		return k.PartitionKey()
	}
	return ""
}
