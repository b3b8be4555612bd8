package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/clubshop/internal/application"
	dominv "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/Zhima-Mochi/clubshop/internal/observability/logctx"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	cartService   = "cart-service"
	useCaseQuote  = "cart.quote"
	quoteSpanName = "QuoteCart"

	sharedLookupTimeout = 5 * time.Second
)

// ProductReader is the read side of the catalog the calculator needs.
type ProductReader interface {
	Get(ctx context.Context, productID string) (*dominv.Product, error)
}

type Item struct {
	ProductID string
	Quantity  int
}

type Line struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	Subtotal  decimal.Decimal
}

// Quote is a pricing preview. Items that cannot be bought are skipped and
// described in Errors; Total only covers Lines.
type Quote struct {
	Lines  []Line
	Total  decimal.Decimal
	Errors []string
}

// Calculator prices carts against the live catalog without touching stock.
type Calculator struct {
	products ProductReader
	group    singleflight.Group
	in       application.Instruments
}

func NewCalculator(products ProductReader, tel observability.Observability) *Calculator {
	return &Calculator{
		products: products,
		in:       application.NewInstruments(tel, cartService),
	}
}

// Execute lets the calculator be used as a UseCase.
func (c *Calculator) Execute(ctx context.Context, items []Item) (*Quote, error) {
	return c.Quote(ctx, items)
}

// Quote prices every buyable item. Unknown products, non-positive quantities
// and quantities above the current stock become entries in Errors.
func (c *Calculator) Quote(ctx context.Context, items []Item) (_ *Quote, err error) {
	logger := logctx.FromOr(ctx, c.in.Log).With(observability.F("use_case", useCaseQuote))
	ctx, span := c.in.Tracer.Start(ctx, application.SpanPrefix+quoteSpanName,
		attribute.String("use_case", useCaseQuote),
		attribute.Int("cart.items", len(items)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	quote := &Quote{Total: decimal.Zero}

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		lat := time.Since(start).Seconds()
		c.in.Record(useCaseQuote, outcome, lat)
		logger.Debug("use_case_done",
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
			observability.F("lines", len(quote.Lines)),
			observability.F("rejected", len(quote.Errors)),
		)
	}()

	for _, item := range items {
		if item.Quantity <= 0 {
			quote.Errors = append(quote.Errors, fmt.Sprintf("quantity for product %s must be greater than zero", item.ProductID))
			continue
		}
		p, lerr := c.lookup(ctx, item.ProductID)
		switch {
		case errors.Is(lerr, dominv.ErrNotFound):
			quote.Errors = append(quote.Errors, fmt.Sprintf("product %s not found", item.ProductID))
			continue
		case lerr != nil:
			outcome, statusText = "error", "CATALOG_LOOKUP_FAILED"
			return nil, fmt.Errorf("cart: lookup %s: %w", item.ProductID, lerr)
		}
		if item.Quantity > p.StockQuantity {
			quote.Errors = append(quote.Errors, fmt.Sprintf("insufficient stock for %s: requested %d, available %d", p.Name, item.Quantity, p.StockQuantity))
			continue
		}
		line := newLine(p, item.Quantity)
		quote.Lines = append(quote.Lines, line)
		quote.Total = quote.Total.Add(line.Subtotal)
	}

	if len(quote.Errors) > 0 {
		statusText = "PARTIAL"
	}
	return quote, nil
}

// Price is the strict variant used before reserving: the first unknown
// product or short item aborts with the typed inventory error.
func (c *Calculator) Price(ctx context.Context, items []Item) ([]Line, decimal.Decimal, error) {
	lines := make([]Line, 0, len(items))
	total := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, decimal.Zero, dominv.ErrInvalidQuantity
		}
		p, err := c.lookup(ctx, item.ProductID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if item.Quantity > p.StockQuantity {
			return nil, decimal.Zero, &dominv.InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: item.Quantity,
				Available: p.StockQuantity,
			}
		}
		line := newLine(p, item.Quantity)
		lines = append(lines, line)
		total = total.Add(line.Subtotal)
	}
	return lines, total, nil
}

// lookup collapses concurrent reads of the same product into one catalog call.
// The shared call runs detached from whichever caller started it, so one
// caller giving up does not fail the others; each caller still stops waiting
// when its own context ends.
func (c *Calculator) lookup(ctx context.Context, productID string) (*dominv.Product, error) {
	ch := c.group.DoChan(productID, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()
		return c.products.Get(sctx, productID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*dominv.Product).Clone(), nil
	}
}

func newLine(p *dominv.Product, quantity int) Line {
	return Line{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		Quantity:  quantity,
		Subtotal:  p.UnitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}
