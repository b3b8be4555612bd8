package order

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/Zhima-Mochi/clubshop/internal/application"
	domain "github.com/Zhima-Mochi/clubshop/internal/domain/order"
	"github.com/Zhima-Mochi/clubshop/internal/domain/validation"
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseOrderGet         = "order.get"
	useCaseOrderList        = "order.list"
	useCaseOrderStats       = "order.stats"
	useCaseOrderTopProducts = "order.top_products"

	DefaultTopProducts = 10
)

// Queries serves read-only views over persisted orders.
type Queries struct {
	repo domain.Repository
	in   application.Instruments
}

func NewQueries(repo domain.Repository, tel observability.Observability) *Queries {
	return &Queries{repo: repo, in: application.NewInstruments(tel, orderService)}
}

func (q *Queries) Get(ctx context.Context, orderID string) (_ *domain.Order, err error) {
	ctx, run := q.in.Begin(ctx, useCaseOrderGet, "GetOrder", attribute.String("order.id", orderID))
	defer func() { run.End(err) }()

	if strings.TrimSpace(orderID) == "" {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, validation.New("orderId", "is required")
	}
	o, err := q.repo.Get(ctx, orderID)
	if err != nil {
		run.Fail("ORDER_LOAD_FAILED")
		if errors.Is(err, domain.ErrNotFound) {
			run.Fail("ORDER_NOT_FOUND")
		}
		return nil, wrapRepositoryError(err)
	}
	return o, nil
}

func (q *Queries) List(ctx context.Context, filter domain.Filter) (_ []*domain.Order, err error) {
	ctx, run := q.in.Begin(ctx, useCaseOrderList, "ListOrders",
		attribute.String("order.status", string(filter.Status)),
	)
	defer func() { run.End(err) }()

	filter.CustomerEmail = strings.ToLower(strings.TrimSpace(filter.CustomerEmail))
	orders, err := q.repo.List(ctx, filter)
	if err != nil {
		run.Fail("ORDER_LIST_FAILED")
		return nil, wrapRepositoryError(err)
	}
	run.With(observability.F("count", len(orders)))
	return orders, nil
}

// Stats summarises the order book. Revenue only counts paid orders.
type Stats struct {
	Total     int
	Pending   int
	Paid      int
	Cancelled int
	Revenue   decimal.Decimal
}

func (q *Queries) Stats(ctx context.Context) (_ *Stats, err error) {
	ctx, run := q.in.Begin(ctx, useCaseOrderStats, "OrderStats")
	defer func() { run.End(err) }()

	orders, err := q.repo.List(ctx, domain.Filter{})
	if err != nil {
		run.Fail("ORDER_LIST_FAILED")
		return nil, wrapRepositoryError(err)
	}

	s := &Stats{Total: len(orders), Revenue: decimal.Zero}
	for _, o := range orders {
		switch o.Status() {
		case domain.StatusPending:
			s.Pending++
		case domain.StatusPaid:
			s.Paid++
			s.Revenue = s.Revenue.Add(o.Total)
		case domain.StatusCancelled:
			s.Cancelled++
		}
	}
	return s, nil
}

type ProductSales struct {
	ProductID string
	Name      string
	Quantity  int
	Revenue   decimal.Decimal
}

// TopProducts ranks products by units sold in paid orders. limit <= 0 means DefaultTopProducts.
func (q *Queries) TopProducts(ctx context.Context, limit int) (_ []ProductSales, err error) {
	if limit <= 0 {
		limit = DefaultTopProducts
	}
	ctx, run := q.in.Begin(ctx, useCaseOrderTopProducts, "TopProducts", attribute.Int("limit", limit))
	defer func() { run.End(err) }()

	orders, err := q.repo.List(ctx, domain.Filter{Status: domain.StatusPaid})
	if err != nil {
		run.Fail("ORDER_LIST_FAILED")
		return nil, wrapRepositoryError(err)
	}

	byProduct := make(map[string]*ProductSales)
	for _, o := range orders {
		for _, l := range o.Lines {
			ps, ok := byProduct[l.ProductID]
			if !ok {
				ps = &ProductSales{ProductID: l.ProductID, Name: l.Name, Revenue: decimal.Zero}
				byProduct[l.ProductID] = ps
			}
			ps.Quantity += l.Quantity
			ps.Revenue = ps.Revenue.Add(l.Subtotal())
		}
	}

	out := make([]ProductSales, 0, len(byProduct))
	for _, ps := range byProduct {
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
