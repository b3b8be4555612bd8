package inventory

import (
	"context"
	"testing"

	dominv "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	"github.com/Zhima-Mochi/clubshop/internal/domain/validation"
	"github.com/Zhima-Mochi/clubshop/internal/infrastructure/id"
	"github.com/Zhima-Mochi/clubshop/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalog() *Catalog {
	return NewCatalog(memory.NewInventoryRepository(), id.NewUUIDGenerator(), nil)
}

func TestCreateProduct(t *testing.T) {
	c := newCatalog()
	ctx := context.Background()

	p, err := c.Create(ctx, CreateProductInput{
		Name:          "Home Jersey",
		Category:      "Uniform",
		UnitPrice:     decimal.RequireFromString("89.90"),
		StockQuantity: 20,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, dominv.CategoryUniform, p.Category)

	got, err := c.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Home Jersey", got.Name)

	_, err = c.Create(ctx, CreateProductInput{ID: p.ID, Name: "Copy", Category: "other", UnitPrice: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, dominv.ErrConflict)

	_, err = c.Create(ctx, CreateProductInput{Name: "Food", Category: "snacks", UnitPrice: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, validation.ErrInvalid)
}

func TestUpdateProductIsPartialAndKeepsStock(t *testing.T) {
	c := newCatalog()
	ctx := context.Background()
	p, err := c.Create(ctx, CreateProductInput{ID: "ball", Name: "Ball", Category: "equipment", UnitPrice: decimal.NewFromInt(100), StockQuantity: 7})
	require.NoError(t, err)

	price := decimal.RequireFromString("120.00")
	updated, err := c.Update(ctx, UpdateProductInput{ID: p.ID, UnitPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, "Ball", updated.Name)
	assert.True(t, updated.UnitPrice.Equal(price))
	assert.Equal(t, 7, updated.StockQuantity)

	tooExpensive := decimal.NewFromInt(60000)
	_, err = c.Update(ctx, UpdateProductInput{ID: p.ID, UnitPrice: &tooExpensive})
	assert.ErrorIs(t, err, validation.ErrInvalid)

	blank := " "
	_, err = c.Update(ctx, UpdateProductInput{ID: p.ID, Name: &blank})
	assert.ErrorIs(t, err, validation.ErrInvalid)

	_, err = c.Update(ctx, UpdateProductInput{ID: "nope", Name: &blank})
	assert.ErrorIs(t, err, dominv.ErrNotFound)
}

func TestAdjustStock(t *testing.T) {
	c := newCatalog()
	ctx := context.Background()
	_, err := c.Create(ctx, CreateProductInput{ID: "cap", Name: "Cap", Category: "accessory", UnitPrice: decimal.NewFromInt(30), StockQuantity: 2})
	require.NoError(t, err)

	left, err := c.AdjustStock(ctx, AdjustStockInput{ProductID: "cap", Operation: StockIncrease, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, 7, left)

	left, err = c.AdjustStock(ctx, AdjustStockInput{ProductID: "cap", Operation: "DECREASE", Quantity: 7})
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	_, err = c.AdjustStock(ctx, AdjustStockInput{ProductID: "cap", Operation: StockDecrease, Quantity: 1})
	assert.ErrorIs(t, err, dominv.ErrInsufficientStock)
	_, err = c.AdjustStock(ctx, AdjustStockInput{ProductID: "cap", Operation: "swap", Quantity: 1})
	assert.ErrorIs(t, err, validation.ErrInvalid)
	_, err = c.AdjustStock(ctx, AdjustStockInput{ProductID: "cap", Operation: StockIncrease, Quantity: 0})
	assert.ErrorIs(t, err, validation.ErrInvalid)
	_, err = c.AdjustStock(ctx, AdjustStockInput{ProductID: "nope", Operation: StockIncrease, Quantity: 1})
	assert.ErrorIs(t, err, dominv.ErrNotFound)
}

func TestListAndDeleteProducts(t *testing.T) {
	c := newCatalog()
	ctx := context.Background()
	for _, in := range []CreateProductInput{
		{ID: "a", Name: "Away Jersey", Category: "uniform", UnitPrice: decimal.NewFromInt(90), StockQuantity: 0},
		{ID: "b", Name: "Ball", Category: "equipment", UnitPrice: decimal.NewFromInt(100), StockQuantity: 3},
		{ID: "c", Name: "Creatine", Category: "supplement", UnitPrice: decimal.NewFromInt(80), StockQuantity: 50},
	} {
		_, err := c.Create(ctx, in)
		require.NoError(t, err)
	}

	available, err := c.List(ctx, dominv.Filter{AvailableOnly: true})
	require.NoError(t, err)
	assert.Len(t, available, 2)

	byCategory, err := c.List(ctx, dominv.Filter{Category: "EQUIPMENT"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "b", byCategory[0].ID)

	_, err = c.List(ctx, dominv.Filter{Category: "weapons"})
	assert.ErrorIs(t, err, validation.ErrInvalid)

	require.NoError(t, c.Delete(ctx, "b"))
	assert.ErrorIs(t, c.Delete(ctx, "b"), dominv.ErrNotFound)
}
