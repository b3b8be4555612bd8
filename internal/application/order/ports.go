package order

import (
	"context"

	"github.com/Zhima-Mochi/clubshop/internal/application/cart"
	"github.com/shopspring/decimal"
)

type IDGenerator interface {
	NewID() string
}

// Pricer prices a cart strictly: any unknown or short item fails the whole call.
type Pricer interface {
	Price(ctx context.Context, items []cart.Item) ([]cart.Line, decimal.Decimal, error)
}

// Limits caps what a single order may contain.
type Limits struct {
	MaxLineItems  int
	MaxOrderTotal decimal.Decimal
}

func DefaultLimits() Limits {
	return Limits{
		MaxLineItems:  50,
		MaxOrderTotal: decimal.NewFromInt(100000),
	}
}
