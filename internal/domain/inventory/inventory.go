package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/clubshop/internal/domain/validation"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrConflict          = errors.New("inventory: product already exists")
)

const (
	MaxInitialStock = 10000
)

var (
	MinUnitPrice = decimal.RequireFromString("0.01")
	MaxUnitPrice = decimal.NewFromInt(50000)
)

// InsufficientStockError reports the product and counts that made a reservation impossible.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	label := e.ProductID
	if e.Name != "" {
		label = fmt.Sprintf("%s (%s)", e.Name, e.ProductID)
	}
	return fmt.Sprintf("inventory: insufficient stock for %s: requested %d, available %d", label, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type Category string

const (
	CategoryUniform    Category = "uniform"
	CategoryEquipment  Category = "equipment"
	CategoryAccessory  Category = "accessory"
	CategorySupplement Category = "supplement"
	CategoryOther      Category = "other"
)

var categories = []Category{CategoryUniform, CategoryEquipment, CategoryAccessory, CategorySupplement, CategoryOther}

// ParseCategory accepts any casing of a known category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range categories {
		if c == known {
			return c, nil
		}
	}
	names := make([]string, 0, len(categories))
	for _, known := range categories {
		names = append(names, string(known))
	}
	return "", validation.New("category", "must be one of %s", strings.Join(names, ", "))
}

type Product struct {
	ID            string
	Name          string
	Description   string
	Category      Category
	UnitPrice     decimal.Decimal
	StockQuantity int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewProduct(id, name, description string, category Category, unitPrice decimal.Decimal, stock int) (*Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validation.New("id", "is required")
	}
	p := &Product{
		ID:            id,
		Name:          strings.TrimSpace(name),
		Description:   description,
		Category:      category,
		UnitPrice:     unitPrice,
		StockQuantity: stock,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if stock > MaxInitialStock {
		return nil, validation.New("stockQuantity", "initial stock cannot exceed %d units", MaxInitialStock)
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

// Validate checks the catalog rules that hold for every stored product.
func (p *Product) Validate() error {
	if p.Name == "" {
		return validation.New("name", "is required")
	}
	if _, err := ParseCategory(string(p.Category)); err != nil {
		return err
	}
	if p.UnitPrice.LessThan(MinUnitPrice) {
		return validation.New("unitPrice", "must be at least %s", MinUnitPrice.StringFixed(2))
	}
	if p.UnitPrice.GreaterThan(MaxUnitPrice) {
		return validation.New("unitPrice", "cannot exceed %s", MaxUnitPrice.StringFixed(2))
	}
	if p.StockQuantity < 0 {
		return validation.New("stockQuantity", "cannot be negative")
	}
	return nil
}

// Deduct subtracts quantity in place, refusing to go below zero.
func (p *Product) Deduct(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > p.StockQuantity {
		return &InsufficientStockError{
			ProductID: p.ID,
			Name:      p.Name,
			Requested: quantity,
			Available: p.StockQuantity,
		}
	}
	p.StockQuantity -= quantity
	p.touch()
	return nil
}

func (p *Product) Restock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p.StockQuantity += quantity
	p.touch()
	return nil
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}
