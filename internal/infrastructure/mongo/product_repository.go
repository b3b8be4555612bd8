package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	domain "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type productDoc struct {
	ID            string               `bson:"_id"`
	Name          string               `bson:"name"`
	Description   string               `bson:"description"`
	Category      string               `bson:"category"`
	UnitPrice     primitive.Decimal128 `bson:"unit_price"`
	StockQuantity int                  `bson:"stock_quantity"`
	CreatedAt     time.Time            `bson:"created_at"`
	UpdatedAt     time.Time            `bson:"updated_at"`
}

func (d productDoc) toDomain() (*domain.Product, error) {
	price, err := fromDecimal128(d.UnitPrice)
	if err != nil {
		return nil, err
	}
	return &domain.Product{
		ID:            d.ID,
		Name:          d.Name,
		Description:   d.Description,
		Category:      domain.Category(d.Category),
		UnitPrice:     price,
		StockQuantity: d.StockQuantity,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}, nil
}

const decrementRetries = 1

// ProductRepository keeps catalog metadata and stock in one document per
// product. Stock only changes through $inc updates.
type ProductRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewProductRepository(coll *mongo.Collection) *ProductRepository {
	return &ProductRepository{coll: coll, now: time.Now}
}

func (r *ProductRepository) GetStock(ctx context.Context, productID string) (int, error) {
	var doc struct {
		StockQuantity int `bson:"stock_quantity"`
	}
	opts := options.FindOne().SetProjection(bson.M{"stock_quantity": 1})
	err := r.coll.FindOne(ctx, bson.M{"_id": productID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("%w: %s", domain.ErrNotFound, productID)
	}
	if err != nil {
		return 0, fmt.Errorf("get stock %s: %w", productID, err)
	}
	return doc.StockQuantity, nil
}

// Decrement subtracts amount in a single conditional update: the filter only
// matches while enough stock is left, so two reservations cannot both win.
// When the guard misses but a follow-up read shows enough stock, a release
// landed in between and the update is tried once more.
func (r *ProductRepository) Decrement(ctx context.Context, productID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidQuantity
	}
	filter := bson.M{"_id": productID, "stock_quantity": bson.M{"$gte": amount}}
	for attempt := 0; ; attempt++ {
		doc, err := r.incStock(ctx, filter, -amount)
		if err == nil {
			return doc.StockQuantity, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return 0, fmt.Errorf("decrement stock %s: %w", productID, err)
		}

		current, gerr := r.Get(ctx, productID)
		if gerr != nil {
			return 0, gerr
		}
		available := current.StockQuantity
		if available >= amount {
			if attempt < decrementRetries {
				continue
			}
			// Stock keeps moving under us; the guard saw less than amount.
			available = amount - 1
		}
		return available, &domain.InsufficientStockError{
			ProductID: productID,
			Name:      current.Name,
			Requested: amount,
			Available: available,
		}
	}
}

func (r *ProductRepository) Increment(ctx context.Context, productID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidQuantity
	}
	doc, err := r.incStock(ctx, bson.M{"_id": productID}, amount)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("%w: %s", domain.ErrNotFound, productID)
	}
	if err != nil {
		return 0, fmt.Errorf("increment stock %s: %w", productID, err)
	}
	return doc.StockQuantity, nil
}

func (r *ProductRepository) incStock(ctx context.Context, filter bson.M, delta int) (productDoc, error) {
	update := bson.M{
		"$inc": bson.M{"stock_quantity": delta},
		"$set": bson.M{"updated_at": r.now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc productDoc
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	return doc, err
}

func (r *ProductRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	var doc productDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": productID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", productID, err)
	}
	return doc.toDomain()
}

// List returns matching products ordered by name then id.
func (r *ProductRepository) List(ctx context.Context, filter domain.Filter) ([]*domain.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, productQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	out := make([]*domain.Product, 0, len(docs))
	for _, d := range docs {
		p, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func productQuery(f domain.Filter) bson.M {
	q := bson.M{}
	if f.Category != "" {
		q["category"] = caseInsensitiveExact(string(f.Category))
	}
	stock := bson.M{}
	if f.AvailableOnly {
		stock["$gt"] = 0
	}
	if f.MaxStock != nil {
		stock["$lte"] = *f.MaxStock
	}
	if len(stock) > 0 {
		q["stock_quantity"] = stock
	}
	if f.Query != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Query), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"name": re},
			bson.M{"description": re},
			bson.M{"category": re},
		}
	}
	return q
}

func caseInsensitiveExact(s string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(s) + "$", Options: "i"}
}

func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	price, err := toDecimal128(product.UnitPrice)
	if err != nil {
		return err
	}
	doc := productDoc{
		ID:            product.ID,
		Name:          product.Name,
		Description:   product.Description,
		Category:      string(product.Category),
		UnitPrice:     price,
		StockQuantity: product.StockQuantity,
		CreatedAt:     product.CreatedAt.UTC(),
		UpdatedAt:     product.UpdatedAt.UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", domain.ErrConflict, product.ID)
		}
		return fmt.Errorf("create product %s: %w", product.ID, err)
	}
	return nil
}

// Update writes catalog metadata; stock_quantity and created_at are left alone.
func (r *ProductRepository) Update(ctx context.Context, product *domain.Product) error {
	price, err := toDecimal128(product.UnitPrice)
	if err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{
		"name":        product.Name,
		"description": product.Description,
		"category":    string(product.Category),
		"unit_price":  price,
		"updated_at":  r.now().UTC(),
	}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": product.ID}, update)
	if err != nil {
		return fmt.Errorf("update product %s: %w", product.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, product.ID)
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": productID})
	if err != nil {
		return fmt.Errorf("delete product %s: %w", productID, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, productID)
	}
	return nil
}
