package customer

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("customer: not found")

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBlocked  Status = "blocked"
)

// Directory answers whether an email belongs to a customer allowed to place orders.
// Unknown emails yield ErrNotFound rather than false.
type Directory interface {
	IsActiveCustomer(ctx context.Context, email string) (bool, error)
}
