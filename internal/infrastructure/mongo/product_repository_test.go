package mongo

import (
	"context"
	"testing"
	"time"

	domain "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func dec128(t testing.TB, s string) primitive.Decimal128 {
	t.Helper()
	v, err := primitive.ParseDecimal128(s)
	require.NoError(t, err)
	return v
}

func ns(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func productBSON(t testing.TB, id, name string, stock int) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: name},
		{Key: "description", Value: ""},
		{Key: "category", Value: "equipment"},
		{Key: "unit_price", Value: dec128(t, "99.90")},
		{Key: "stock_quantity", Value: stock},
		{Key: "created_at", Value: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Key: "updated_at", Value: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func TestProductRepositoryDecrement(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("reserves while stock lasts", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: productBSON(mt, "ball", "Ball", 7)},
		))

		left, err := repo.Decrement(context.Background(), "ball", 3)
		require.NoError(mt, err)
		assert.Equal(mt, 7, left)
	})

	mt.Run("reports insufficient stock when the guard does not match", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, productBSON(mt, "ball", "Ball", 2)),
		)

		left, err := repo.Decrement(context.Background(), "ball", 3)
		require.ErrorIs(mt, err, domain.ErrInsufficientStock)
		var stockErr *domain.InsufficientStockError
		require.ErrorAs(mt, err, &stockErr)
		assert.Equal(mt, 3, stockErr.Requested)
		assert.Equal(mt, 2, stockErr.Available)
		assert.Equal(mt, "Ball", stockErr.Name)
		assert.Equal(mt, 2, left)
	})

	mt.Run("retries once when stock was released after the guard missed", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, productBSON(mt, "ball", "Ball", 5)),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: productBSON(mt, "ball", "Ball", 2)}),
		)

		left, err := repo.Decrement(context.Background(), "ball", 3)
		require.NoError(mt, err)
		assert.Equal(mt, 2, left)
	})

	mt.Run("never reports enough stock alongside an insufficient stock error", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, productBSON(mt, "ball", "Ball", 5)),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, productBSON(mt, "ball", "Ball", 6)),
		)

		_, err := repo.Decrement(context.Background(), "ball", 3)
		var stockErr *domain.InsufficientStockError
		require.ErrorAs(mt, err, &stockErr)
		assert.Equal(mt, 3, stockErr.Requested)
		assert.Less(mt, stockErr.Available, stockErr.Requested)
	})

	mt.Run("reports unknown products", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch),
		)

		_, err := repo.Decrement(context.Background(), "ghost", 1)
		assert.ErrorIs(mt, err, domain.ErrNotFound)
	})

	mt.Run("rejects non-positive amounts without a round trip", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		_, err := repo.Decrement(context.Background(), "ball", 0)
		assert.ErrorIs(mt, err, domain.ErrInvalidQuantity)
	})
}

func TestProductRepositoryIncrementAndGetStock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("increment", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: productBSON(mt, "ball", "Ball", 12)},
		))

		left, err := repo.Increment(context.Background(), "ball", 5)
		require.NoError(mt, err)
		assert.Equal(mt, 12, left)
	})

	mt.Run("increment unknown", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := repo.Increment(context.Background(), "ghost", 5)
		assert.ErrorIs(mt, err, domain.ErrNotFound)
	})

	mt.Run("get stock", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "ball"}, {Key: "stock_quantity", Value: 4}},
		))

		stock, err := repo.GetStock(context.Background(), "ball")
		require.NoError(mt, err)
		assert.Equal(mt, 4, stock)
	})
}

func TestProductRepositoryCatalog(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get decodes decimal prices", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, productBSON(mt, "ball", "Ball", 7)))

		p, err := repo.Get(context.Background(), "ball")
		require.NoError(mt, err)
		assert.True(mt, p.UnitPrice.Equal(decimal.RequireFromString("99.90")))
		assert.Equal(mt, domain.CategoryEquipment, p.Category)
	})

	mt.Run("list", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch,
			productBSON(mt, "a", "Ankle Socks", 10),
			productBSON(mt, "b", "Ball", 3),
		))

		out, err := repo.List(context.Background(), domain.Filter{Query: "s", AvailableOnly: true})
		require.NoError(mt, err)
		require.Len(mt, out, 2)
		assert.Equal(mt, "a", out[0].ID)
	})

	mt.Run("create conflict", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error",
		}))

		p, err := domain.NewProduct("ball", "Ball", "", domain.CategoryEquipment, decimal.NewFromInt(10), 1)
		require.NoError(mt, err)
		assert.ErrorIs(mt, repo.Create(context.Background(), p), domain.ErrConflict)
	})

	mt.Run("update and delete unknown", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)

		p := &domain.Product{ID: "ghost", Name: "Ghost", Category: domain.CategoryOther, UnitPrice: decimal.NewFromInt(1)}
		assert.ErrorIs(mt, repo.Update(context.Background(), p), domain.ErrNotFound)
		assert.ErrorIs(mt, repo.Delete(context.Background(), "ghost"), domain.ErrNotFound)
	})
}

func TestProductQuery(t *testing.T) {
	limit := 5
	q := productQuery(domain.Filter{Category: "Uniform", AvailableOnly: true, MaxStock: &limit, Query: "a.b"})

	assert.Equal(t, primitive.Regex{Pattern: "^Uniform$", Options: "i"}, q["category"])
	assert.Equal(t, bson.M{"$gt": 0, "$lte": 5}, q["stock_quantity"])
	or, ok := q["$or"].(bson.A)
	require.True(t, ok)
	assert.Len(t, or, 3)
	assert.Equal(t, bson.M{"name": primitive.Regex{Pattern: `a\.b`, Options: "i"}}, or[0])

	assert.Empty(t, productQuery(domain.Filter{}))
}
