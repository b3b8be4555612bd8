package inventory

import (
	"context"
	"strings"
)

// Store owns stock counts. Decrement must be a single atomic conditional
// operation so that concurrent reservations can never oversell.
type Store interface {
	GetStock(ctx context.Context, productID string) (int, error)
	Decrement(ctx context.Context, productID string, amount int) (int, error)
	Increment(ctx context.Context, productID string, amount int) (int, error)
}

// Filter narrows catalog listings. Zero values mean "no constraint".
type Filter struct {
	Category      Category
	Query         string
	AvailableOnly bool
	// MaxStock selects products whose stock is at most this value; nil disables it.
	MaxStock *int
}

// Catalog is the metadata side of the product collection. Update never
// writes StockQuantity; stock only moves through Store.
type Catalog interface {
	Get(ctx context.Context, productID string) (*Product, error)
	List(ctx context.Context, filter Filter) ([]*Product, error)
	Create(ctx context.Context, product *Product) error
	Update(ctx context.Context, product *Product) error
	Delete(ctx context.Context, productID string) error
}

// Repository is what a single backing collection provides.
type Repository interface {
	Store
	Catalog
}

// Match reports whether p passes every constraint of f. Query is a
// case-insensitive substring match on name, description and category.
func (f Filter) Match(p *Product) bool {
	if p == nil {
		return false
	}
	if f.Category != "" && !strings.EqualFold(string(p.Category), string(f.Category)) {
		return false
	}
	if f.AvailableOnly && p.StockQuantity <= 0 {
		return false
	}
	if f.MaxStock != nil && p.StockQuantity > *f.MaxStock {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) &&
			!strings.Contains(string(p.Category), q) {
			return false
		}
	}
	return true
}
