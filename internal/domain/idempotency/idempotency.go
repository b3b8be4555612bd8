package idempotency

import (
	"context"
	"errors"
)

// ErrInFlight means another request holds the key and has not finished yet.
var ErrInFlight = errors.New("idempotency: request with this key is still in progress")

// Store remembers which order a client-supplied key produced.
//
// Claim returns ("", nil) when the caller now owns key and must either
// Complete or Release it. It returns the order ID when an earlier request
// with the same key already completed, and ErrInFlight while one is running.
type Store interface {
	Claim(ctx context.Context, key string) (string, error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

// Scoped ties a client-supplied key to the customer that sent it, so two
// customers picking the same key never see each other's orders.
func Scoped(customerEmail, key string) string {
	return customerEmail + ":" + key
}
