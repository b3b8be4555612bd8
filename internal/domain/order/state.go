package order

import (
	"fmt"
	"time"

	"github.com/Zhima-Mochi/clubshop/internal/domain/payment"
)

// State is the closed set of order lifecycles: Pending, Paid or Cancelled.
// Payment details only exist on Paid, so a pending order with a payment
// method cannot be expressed.
type State interface {
	Status() Status
	pay(method payment.Method, at time.Time) (State, error)
	cancel(at time.Time) (State, error)
}

type Pending struct{}

func (Pending) Status() Status { return StatusPending }

func (Pending) pay(method payment.Method, at time.Time) (State, error) {
	if _, err := payment.ParseMethod(string(method)); err != nil {
		return nil, err
	}
	return Paid{Method: method, At: at}, nil
}

func (Pending) cancel(at time.Time) (State, error) {
	return Cancelled{At: at}, nil
}

// Paid is terminal.
type Paid struct {
	Method payment.Method
	At     time.Time
}

func (Paid) Status() Status { return StatusPaid }

func (Paid) pay(payment.Method, time.Time) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (Paid) cancel(time.Time) (State, error) {
	return nil, ErrInvalidStateTransition
}

// Cancelled is terminal.
type Cancelled struct {
	At time.Time
}

func (Cancelled) Status() Status { return StatusCancelled }

func (Cancelled) pay(payment.Method, time.Time) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (Cancelled) cancel(time.Time) (State, error) {
	return nil, ErrInvalidStateTransition
}

// RestoreState rebuilds a State from its flattened storage form.
func RestoreState(status Status, method payment.Method, paidAt, cancelledAt time.Time) (State, error) {
	switch status {
	case StatusPending, "":
		return Pending{}, nil
	case StatusPaid:
		if _, err := payment.ParseMethod(string(method)); err != nil {
			return nil, fmt.Errorf("order: restore paid state: %w", err)
		}
		return Paid{Method: method, At: paidAt.UTC()}, nil
	case StatusCancelled:
		return Cancelled{At: cancelledAt.UTC()}, nil
	default:
		return nil, fmt.Errorf("order: restore state: unknown status %q", status)
	}
}
