package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
)

// InventoryRepository keeps products and their stock in one map. Every stock
// mutation happens under the write lock, which makes Decrement's
// check-and-subtract atomic across goroutines.
type InventoryRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{
		products: make(map[string]*domain.Product),
	}
}

func (r *InventoryRepository) GetStock(ctx context.Context, productID string) (int, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[productID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrNotFound, productID)
	}
	return p.StockQuantity, nil
}

func (r *InventoryRepository) Decrement(ctx context.Context, productID string, amount int) (int, error) {
	_ = ctx
	if amount <= 0 {
		return 0, domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrNotFound, productID)
	}
	if err := p.Deduct(amount); err != nil {
		return p.StockQuantity, err
	}
	return p.StockQuantity, nil
}

func (r *InventoryRepository) Increment(ctx context.Context, productID string, amount int) (int, error) {
	_ = ctx
	if amount <= 0 {
		return 0, domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrNotFound, productID)
	}
	if err := p.Restock(amount); err != nil {
		return p.StockQuantity, err
	}
	return p.StockQuantity, nil
}

func (r *InventoryRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, productID)
	}
	return p.Clone(), nil
}

// List returns matching products ordered by name, then ID.
func (r *InventoryRepository) List(ctx context.Context, filter domain.Filter) ([]*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	out := make([]*domain.Product, 0, len(r.products))
	for _, p := range r.products {
		if filter.Match(p) {
			out = append(out, p.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *InventoryRepository) Create(ctx context.Context, product *domain.Product) error {
	_ = ctx
	if product == nil || product.ID == "" {
		return fmt.Errorf("inventory repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[product.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrConflict, product.ID)
	}
	r.products[product.ID] = product.Clone()
	return nil
}

// Update replaces catalog fields and keeps the stored stock count.
func (r *InventoryRepository) Update(ctx context.Context, product *domain.Product) error {
	_ = ctx
	if product == nil || product.ID == "" {
		return fmt.Errorf("inventory repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.products[product.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, product.ID)
	}
	next := product.Clone()
	next.StockQuantity = current.StockQuantity
	next.CreatedAt = current.CreatedAt
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}
	r.products[product.ID] = next
	return nil
}

func (r *InventoryRepository) Delete(ctx context.Context, productID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[productID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, productID)
	}
	delete(r.products, productID)
	return nil
}
