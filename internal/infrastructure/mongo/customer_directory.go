package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/Zhima-Mochi/clubshop/internal/domain/customer"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type customerDoc struct {
	Email  string `bson:"_id"`
	Status string `bson:"status"`
}

// CustomerDirectory reads club members keyed by lowercased email.
type CustomerDirectory struct {
	coll *mongo.Collection
}

func NewCustomerDirectory(coll *mongo.Collection) *CustomerDirectory {
	return &CustomerDirectory{coll: coll}
}

func (d *CustomerDirectory) IsActiveCustomer(ctx context.Context, email string) (bool, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	var doc customerDoc
	err := d.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return false, fmt.Errorf("lookup customer %s: %w", key, err)
	}
	return domain.Status(doc.Status) == domain.StatusActive, nil
}

// Put upserts a customer; used by the seed command.
func (d *CustomerDirectory) Put(ctx context.Context, email string, status domain.Status) error {
	key := strings.ToLower(strings.TrimSpace(email))
	_, err := d.coll.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"status": string(status)}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("put customer %s: %w", key, err)
	}
	return nil
}
