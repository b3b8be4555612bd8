package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/Zhima-Mochi/clubshop/internal/domain/order"
	"github.com/Zhima-Mochi/clubshop/internal/domain/payment"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type lineDoc struct {
	ProductID string               `bson:"product_id"`
	Name      string               `bson:"name"`
	UnitPrice primitive.Decimal128 `bson:"unit_price"`
	Quantity  int                  `bson:"quantity"`
}

// orderDoc flattens the order state; payment fields are only set on paid orders.
type orderDoc struct {
	ID             string               `bson:"_id"`
	CustomerEmail  string               `bson:"customer_email"`
	IdempotencyKey string               `bson:"idempotency_key,omitempty"`
	Lines          []lineDoc            `bson:"lines"`
	Total          primitive.Decimal128 `bson:"total"`
	Status         string               `bson:"status"`
	PaymentMethod  string               `bson:"payment_method,omitempty"`
	PaidAt         time.Time            `bson:"paid_at,omitempty"`
	CancelledAt    time.Time            `bson:"cancelled_at,omitempty"`
	CreatedAt      time.Time            `bson:"created_at"`
	UpdatedAt      time.Time            `bson:"updated_at"`
}

type stateFields struct {
	status      string
	method      string
	paidAt      time.Time
	cancelledAt time.Time
}

func flattenState(o *domain.Order) stateFields {
	f := stateFields{status: string(o.Status())}
	switch s := o.State.(type) {
	case domain.Paid:
		f.method = string(s.Method)
		f.paidAt = s.At
	case domain.Cancelled:
		f.cancelledAt = s.At
	}
	return f
}

func newOrderDoc(o *domain.Order) (orderDoc, error) {
	total, err := toDecimal128(o.Total)
	if err != nil {
		return orderDoc{}, err
	}
	lines := make([]lineDoc, 0, len(o.Lines))
	for _, l := range o.Lines {
		price, err := toDecimal128(l.UnitPrice)
		if err != nil {
			return orderDoc{}, err
		}
		lines = append(lines, lineDoc{ProductID: l.ProductID, Name: l.Name, UnitPrice: price, Quantity: l.Quantity})
	}
	st := flattenState(o)
	return orderDoc{
		ID:             o.ID,
		CustomerEmail:  strings.ToLower(o.CustomerEmail),
		IdempotencyKey: o.IdempotencyKey,
		Lines:          lines,
		Total:          total,
		Status:         st.status,
		PaymentMethod:  st.method,
		PaidAt:         st.paidAt,
		CancelledAt:    st.cancelledAt,
		CreatedAt:      o.CreatedAt.UTC(),
		UpdatedAt:      o.UpdatedAt.UTC(),
	}, nil
}

func (d orderDoc) toDomain() (*domain.Order, error) {
	total, err := fromDecimal128(d.Total)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.LineItem, 0, len(d.Lines))
	for _, l := range d.Lines {
		price, err := fromDecimal128(l.UnitPrice)
		if err != nil {
			return nil, err
		}
		lines = append(lines, domain.LineItem{ProductID: l.ProductID, Name: l.Name, UnitPrice: price, Quantity: l.Quantity})
	}
	state, err := domain.RestoreState(domain.Status(d.Status), payment.Method(d.PaymentMethod), d.PaidAt, d.CancelledAt)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", d.ID, err)
	}
	return &domain.Order{
		ID:             d.ID,
		CustomerEmail:  d.CustomerEmail,
		IdempotencyKey: d.IdempotencyKey,
		Lines:          lines,
		Total:          total,
		State:          state,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}, nil
}

type OrderRepository struct {
	coll *mongo.Collection
}

func NewOrderRepository(coll *mongo.Collection) *OrderRepository {
	return &OrderRepository{coll: coll}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	doc, err := newOrderDoc(order)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", domain.ErrConflict, order.ID)
		}
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var doc orderDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return doc.toDomain()
}

// Update writes the state fields only while the stored status is still expected.
func (r *OrderRepository) Update(ctx context.Context, order *domain.Order, expected domain.Status) error {
	st := flattenState(order)
	set := bson.M{
		"status":     st.status,
		"updated_at": order.UpdatedAt.UTC(),
	}
	if st.method != "" {
		set["payment_method"] = st.method
		set["paid_at"] = st.paidAt
	}
	if !st.cancelledAt.IsZero() {
		set["cancelled_at"] = st.cancelledAt
	}

	filter := bson.M{"_id": order.ID, "status": string(expected)}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	current, err := r.Get(ctx, order.ID)
	if err != nil {
		return err
	}
	return &domain.StateTransitionError{OrderID: order.ID, From: current.Status(), Action: "update"}
}

// List returns matching orders, newest first.
func (r *OrderRepository) List(ctx context.Context, filter domain.Filter) ([]*domain.Order, error) {
	q := bson.M{}
	if filter.CustomerEmail != "" {
		q["customer_email"] = strings.ToLower(filter.CustomerEmail)
	}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})

	cur, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	out := make([]*domain.Order, 0, len(docs))
	for _, d := range docs {
		o, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
