package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/clubshop/internal/domain/payment"
	"github.com/Zhima-Mochi/clubshop/internal/domain/validation"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: already exists")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrConsistency            = errors.New("order: total does not match line items")
)

// TotalTolerance is the largest accepted drift between a stored total and its line items.
var TotalTolerance = decimal.RequireFromString("0.01")

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusPaid, StatusCancelled:
		return st, nil
	default:
		return "", validation.New("status", "unknown status %q", s)
	}
}

// LineItem snapshots the product at order time; it is never re-read from the catalog.
type LineItem struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID             string
	CustomerEmail  string
	IdempotencyKey string
	Lines          []LineItem
	Total          decimal.Decimal
	State          State
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func New(id, customerEmail, idempotencyKey string, lines []LineItem, total decimal.Decimal) (*Order, error) {
	if len(lines) == 0 {
		return nil, validation.New("items", "order must contain at least one item")
	}
	for i, l := range lines {
		if l.Quantity <= 0 {
			return nil, validation.New(fmt.Sprintf("items[%d].quantity", i), "must be greater than zero")
		}
	}
	if err := CheckTotal(lines, total); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Order{
		ID:             id,
		CustomerEmail:  customerEmail,
		IdempotencyKey: idempotencyKey,
		Lines:          append([]LineItem(nil), lines...),
		Total:          total,
		State:          Pending{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// SumLines returns the exact sum of unit price times quantity over lines.
func SumLines(lines []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

// CheckTotal fails with ErrConsistency when total drifts from the line sum by more than TotalTolerance.
func CheckTotal(lines []LineItem, total decimal.Decimal) error {
	sum := SumLines(lines)
	if sum.Sub(total).Abs().GreaterThan(TotalTolerance) {
		return fmt.Errorf("%w: total %s, line items %s", ErrConsistency, total.StringFixed(2), sum.StringFixed(2))
	}
	return nil
}

func (o *Order) Status() Status {
	if o.State == nil {
		return StatusPending
	}
	return o.State.Status()
}

// MarkPaid moves a pending order to Paid. Terminal orders are left untouched.
func (o *Order) MarkPaid(method payment.Method, at time.Time) error {
	next, err := o.state().pay(method, at.UTC())
	if err != nil {
		return o.transitionError("pay", err)
	}
	o.State = next
	o.touch(at)
	return nil
}

// Cancel moves a pending order to Cancelled. Terminal orders are left untouched.
func (o *Order) Cancel(at time.Time) error {
	next, err := o.state().cancel(at.UTC())
	if err != nil {
		return o.transitionError("cancel", err)
	}
	o.State = next
	o.touch(at)
	return nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Lines = append([]LineItem(nil), o.Lines...)
	return &clone
}

func (o *Order) state() State {
	if o.State == nil {
		return Pending{}
	}
	return o.State
}

func (o *Order) transitionError(action string, cause error) error {
	if !errors.Is(cause, ErrInvalidStateTransition) {
		return cause
	}
	return &StateTransitionError{OrderID: o.ID, From: o.Status(), Action: action}
}

func (o *Order) touch(at time.Time) {
	o.UpdatedAt = at.UTC()
}

// StateTransitionError names the order, its current status and the refused action.
type StateTransitionError struct {
	OrderID string
	From    Status
	Action  string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("order: cannot %s order %s in status %s", e.Action, e.OrderID, e.From)
}

func (e *StateTransitionError) Unwrap() error { return ErrInvalidStateTransition }
