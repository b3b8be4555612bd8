package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/clubshop/internal/application"
	dominv "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	"github.com/Zhima-Mochi/clubshop/internal/domain/validation"
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
)

const (
	inventoryService = "inventory-service"

	useCaseProductCreate = "inventory.product_create"
	useCaseProductUpdate = "inventory.product_update"
	useCaseProductDelete = "inventory.product_delete"
	useCaseProductGet    = "inventory.product_get"
	useCaseProductList   = "inventory.product_list"
	useCaseStockAdjust   = "inventory.stock_adjust"
)

var ErrRepository = errors.New("inventory: repository failure")

type IDGenerator interface {
	NewID() string
}

// Catalog manages products and administrative stock corrections. Order
// reservations never go through here; they use the Store directly.
type Catalog struct {
	repo        dominv.Repository
	idGenerator IDGenerator
	in          application.Instruments
}

func NewCatalog(repo dominv.Repository, idGen IDGenerator, tel observability.Observability) *Catalog {
	return &Catalog{
		repo:        repo,
		idGenerator: idGen,
		in:          application.NewInstruments(tel, inventoryService),
	}
}

type CreateProductInput struct {
	ID            string // optional; generated when empty
	Name          string
	Description   string
	Category      string
	UnitPrice     decimal.Decimal
	StockQuantity int
}

func (c *Catalog) Create(ctx context.Context, cmd CreateProductInput) (_ *dominv.Product, err error) {
	ctx, run := c.in.Begin(ctx, useCaseProductCreate, "CreateProduct")
	defer func() { run.End(err) }()

	category, err := dominv.ParseCategory(cmd.Category)
	if err != nil {
		run.Fail("VALIDATION_FAILED")
		return nil, err
	}
	id := strings.TrimSpace(cmd.ID)
	if id == "" {
		id = c.idGenerator.NewID()
	}
	p, err := dominv.NewProduct(id, cmd.Name, cmd.Description, category, cmd.UnitPrice, cmd.StockQuantity)
	if err != nil {
		run.Fail("VALIDATION_FAILED")
		return nil, err
	}
	if err = c.repo.Create(ctx, p); err != nil {
		run.Fail("REPO_INSERT_FAILED")
		return nil, wrapRepositoryError(err)
	}
	run.With(observability.F("product_id", p.ID))
	return p, nil
}

// UpdateProductInput is a partial update; nil fields keep their value.
// Stock is not part of it, use AdjustStock.
type UpdateProductInput struct {
	ID          string
	Name        *string
	Description *string
	Category    *string
	UnitPrice   *decimal.Decimal
}

func (c *Catalog) Update(ctx context.Context, cmd UpdateProductInput) (_ *dominv.Product, err error) {
	ctx, run := c.in.Begin(ctx, useCaseProductUpdate, "UpdateProduct", attribute.String("product.id", cmd.ID))
	defer func() { run.End(err) }()

	p, err := c.repo.Get(ctx, cmd.ID)
	if err != nil {
		run.Fail(loadStatus(err))
		return nil, wrapRepositoryError(err)
	}
	if cmd.Name != nil {
		p.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.Description != nil {
		p.Description = *cmd.Description
	}
	if cmd.Category != nil {
		category, cerr := dominv.ParseCategory(*cmd.Category)
		if cerr != nil {
			run.Fail("VALIDATION_FAILED")
			return nil, cerr
		}
		p.Category = category
	}
	if cmd.UnitPrice != nil {
		p.UnitPrice = *cmd.UnitPrice
	}
	if err = p.Validate(); err != nil {
		run.Fail("VALIDATION_FAILED")
		return nil, err
	}
	if err = c.repo.Update(ctx, p); err != nil {
		run.Fail("REPO_UPDATE_FAILED")
		return nil, wrapRepositoryError(err)
	}
	return c.repo.Get(ctx, p.ID)
}

func (c *Catalog) Delete(ctx context.Context, productID string) (err error) {
	ctx, run := c.in.Begin(ctx, useCaseProductDelete, "DeleteProduct", attribute.String("product.id", productID))
	defer func() { run.End(err) }()

	if err = c.repo.Delete(ctx, productID); err != nil {
		run.Fail(loadStatus(err))
		return wrapRepositoryError(err)
	}
	return nil
}

func (c *Catalog) Get(ctx context.Context, productID string) (_ *dominv.Product, err error) {
	ctx, run := c.in.Begin(ctx, useCaseProductGet, "GetProduct", attribute.String("product.id", productID))
	defer func() { run.End(err) }()

	p, err := c.repo.Get(ctx, productID)
	if err != nil {
		run.Fail(loadStatus(err))
		return nil, wrapRepositoryError(err)
	}
	return p, nil
}

func (c *Catalog) List(ctx context.Context, filter dominv.Filter) (_ []*dominv.Product, err error) {
	ctx, run := c.in.Begin(ctx, useCaseProductList, "ListProducts",
		attribute.String("filter.category", string(filter.Category)),
		attribute.Bool("filter.available_only", filter.AvailableOnly),
	)
	defer func() { run.End(err) }()

	if filter.Category != "" {
		category, cerr := dominv.ParseCategory(string(filter.Category))
		if cerr != nil {
			run.Fail("VALIDATION_FAILED")
			return nil, cerr
		}
		filter.Category = category
	}
	products, err := c.repo.List(ctx, filter)
	if err != nil {
		run.Fail("REPO_LIST_FAILED")
		return nil, wrapRepositoryError(err)
	}
	run.With(observability.F("count", len(products)))
	return products, nil
}

type StockOperation string

const (
	StockIncrease StockOperation = "increase"
	StockDecrease StockOperation = "decrease"
)

type AdjustStockInput struct {
	ProductID string
	Operation StockOperation
	Quantity  int
}

// AdjustStock applies a manual restock or write-off and returns the new count.
// A decrease below zero fails with InsufficientStockError.
func (c *Catalog) AdjustStock(ctx context.Context, cmd AdjustStockInput) (_ int, err error) {
	ctx, run := c.in.Begin(ctx, useCaseStockAdjust, "AdjustStock",
		attribute.String("product.id", cmd.ProductID),
		attribute.String("stock.operation", string(cmd.Operation)),
		attribute.Int("stock.quantity", cmd.Quantity),
	)
	defer func() { run.End(err) }()

	if cmd.Quantity <= 0 {
		run.Fail("VALIDATION_FAILED")
		return 0, validation.New("quantity", "must be greater than zero")
	}

	var left int
	switch StockOperation(strings.ToLower(string(cmd.Operation))) {
	case StockIncrease:
		left, err = c.repo.Increment(ctx, cmd.ProductID, cmd.Quantity)
	case StockDecrease:
		left, err = c.repo.Decrement(ctx, cmd.ProductID, cmd.Quantity)
	default:
		run.Fail("VALIDATION_FAILED")
		return 0, validation.New("operation", "must be %q or %q", StockIncrease, StockDecrease)
	}
	if err != nil {
		run.Fail(loadStatus(err))
		if errors.Is(err, dominv.ErrInsufficientStock) {
			run.Fail("INSUFFICIENT_STOCK")
		}
		return 0, wrapRepositoryError(err)
	}
	run.With(observability.F("stock_left", left))
	return left, nil
}

func loadStatus(err error) string {
	if errors.Is(err, dominv.ErrNotFound) {
		return "PRODUCT_NOT_FOUND"
	}
	return "REPO_FAILED"
}

func wrapRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dominv.ErrNotFound),
		errors.Is(err, dominv.ErrConflict),
		errors.Is(err, dominv.ErrInsufficientStock),
		errors.Is(err, dominv.ErrInvalidQuantity):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
