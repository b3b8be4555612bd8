package order

import "context"

type Filter struct {
	CustomerEmail string
	Status        Status
}

// Repository persists orders. Update is a compare-and-set: it only writes
// when the stored order still has the expected status, otherwise it fails
// with ErrInvalidStateTransition.
type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, order *Order, expected Status) error
	List(ctx context.Context, filter Filter) ([]*Order, error)
}
