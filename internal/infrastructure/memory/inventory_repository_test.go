package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	domain "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, repo *InventoryRepository, id, name string, category domain.Category, price string, stock int) *domain.Product {
	t.Helper()
	p, err := domain.NewProduct(id, name, name+" description", category, decimal.RequireFromString(price), stock)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestDecrementNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	seedProduct(t, repo, "ball", "Match Ball", domain.CategoryEquipment, "120.00", 2)

	left, err := repo.Decrement(ctx, "ball", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	_, err = repo.Decrement(ctx, "ball", 1)
	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, insufficient.Requested)
	assert.Equal(t, 0, insufficient.Available)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	stock, err := repo.GetStock(ctx, "ball")
	require.NoError(t, err)
	assert.Equal(t, 0, stock)
}

func TestStockOperationsRejectBadInput(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	seedProduct(t, repo, "cap", "Cap", domain.CategoryAccessory, "30", 5)

	_, err := repo.Decrement(ctx, "cap", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = repo.Increment(ctx, "cap", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = repo.GetStock(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.Decrement(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.Increment(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentDecrementsDoNotOversell(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	seedProduct(t, repo, "jersey", "Home Jersey", domain.CategoryUniform, "89.90", 50)

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Decrement(ctx, "jersey", 1); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	stock, err := repo.GetStock(ctx, "jersey")
	require.NoError(t, err)
	assert.Equal(t, int32(50), succeeded.Load())
	assert.Equal(t, 0, stock)
}

func TestUpdateKeepsStock(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	p := seedProduct(t, repo, "bottle", "Bottle", domain.CategoryAccessory, "15", 7)

	changed := p.Clone()
	changed.Name = "Steel Bottle"
	changed.StockQuantity = 999
	require.NoError(t, repo.Update(ctx, changed))

	got, err := repo.Get(ctx, "bottle")
	require.NoError(t, err)
	assert.Equal(t, "Steel Bottle", got.Name)
	assert.Equal(t, 7, got.StockQuantity)

	assert.ErrorIs(t, repo.Update(ctx, &domain.Product{ID: "nope"}), domain.ErrNotFound)
}

func TestCreateDeleteAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	seedProduct(t, repo, "p1", "Whey Protein", domain.CategorySupplement, "150", 3)
	seedProduct(t, repo, "p2", "Away Jersey", domain.CategoryUniform, "89.90", 0)
	seedProduct(t, repo, "p3", "Shin Guards", domain.CategoryEquipment, "45", 40)

	dup, err := domain.NewProduct("p1", "Other", "", domain.CategoryOther, decimal.NewFromInt(1), 1)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrConflict)

	all, err := repo.List(ctx, domain.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Away Jersey", all[0].Name)

	available, err := repo.List(ctx, domain.Filter{AvailableOnly: true})
	require.NoError(t, err)
	assert.Len(t, available, 2)

	low := 10
	lowStock, err := repo.List(ctx, domain.Filter{MaxStock: &low})
	require.NoError(t, err)
	assert.Len(t, lowStock, 2)

	search, err := repo.List(ctx, domain.Filter{Query: "JERSEY"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, "p2", search[0].ID)

	byCategory, err := repo.List(ctx, domain.Filter{Category: "Supplement"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)

	require.NoError(t, repo.Delete(ctx, "p1"))
	assert.ErrorIs(t, repo.Delete(ctx, "p1"), domain.ErrNotFound)
	_, err = repo.Get(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	seedProduct(t, repo, "p", "Socks", domain.CategoryUniform, "12", 4)

	got, err := repo.Get(ctx, "p")
	require.NoError(t, err)
	got.StockQuantity = 0

	stock, err := repo.GetStock(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 4, stock)
}
