package httppresentation

import (
	"time"

	"github.com/Zhima-Mochi/clubshop/internal/application/cart"
	appOrder "github.com/Zhima-Mochi/clubshop/internal/application/order"
	domainInventory "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	domainOrder "github.com/Zhima-Mochi/clubshop/internal/domain/order"
	"github.com/shopspring/decimal"
)

// Money leaves the API as a fixed two-decimal string so clients never see
// binary floating point.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

type lineItemResponse struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice string `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

type orderResponse struct {
	ID             string             `json:"id"`
	CustomerEmail  string             `json:"customerEmail"`
	LineItems      []lineItemResponse `json:"lineItems"`
	TotalAmount    string             `json:"totalAmount"`
	Status         domainOrder.Status `json:"status"`
	PaymentMethod  string             `json:"paymentMethod,omitempty"`
	PaidAt         *time.Time         `json:"paidAt,omitempty"`
	CancelledAt    *time.Time         `json:"cancelledAt,omitempty"`
	IdempotencyKey string             `json:"idempotencyKey,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

func toOrderResponse(o *domainOrder.Order) orderResponse {
	lines := make([]lineItemResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, lineItemResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: money(l.UnitPrice),
			Quantity:  l.Quantity,
			Subtotal:  money(l.Subtotal()),
		})
	}
	resp := orderResponse{
		ID:             o.ID,
		CustomerEmail:  o.CustomerEmail,
		LineItems:      lines,
		TotalAmount:    money(o.Total),
		Status:         o.Status(),
		IdempotencyKey: o.IdempotencyKey,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	switch s := o.State.(type) {
	case domainOrder.Paid:
		at := s.At
		resp.PaymentMethod = string(s.Method)
		resp.PaidAt = &at
	case domainOrder.Cancelled:
		at := s.At
		resp.CancelledAt = &at
	}
	return resp
}

func toOrderResponses(orders []*domainOrder.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

type productResponse struct {
	ID            string                   `json:"id"`
	Name          string                   `json:"name"`
	Description   string                   `json:"description"`
	Category      domainInventory.Category `json:"category"`
	UnitPrice     string                   `json:"unitPrice"`
	StockQuantity int                      `json:"stockQuantity"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

func toProductResponse(p *domainInventory.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Category:      p.Category,
		UnitPrice:     money(p.UnitPrice),
		StockQuantity: p.StockQuantity,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type itemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func toCartItems(items []itemRequest) []cart.Item {
	out := make([]cart.Item, 0, len(items))
	for _, it := range items {
		out = append(out, cart.Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

type quoteResponse struct {
	Lines  []lineItemResponse `json:"lines"`
	Total  string             `json:"total"`
	Errors []string           `json:"errors"`
}

func toQuoteResponse(q *cart.Quote) quoteResponse {
	lines := make([]lineItemResponse, 0, len(q.Lines))
	for _, l := range q.Lines {
		lines = append(lines, lineItemResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: money(l.UnitPrice),
			Quantity:  l.Quantity,
			Subtotal:  money(l.Subtotal),
		})
	}
	errs := q.Errors
	if errs == nil {
		errs = []string{}
	}
	return quoteResponse{Lines: lines, Total: money(q.Total), Errors: errs}
}

type statsResponse struct {
	Total     int    `json:"total"`
	Pending   int    `json:"pending"`
	Paid      int    `json:"paid"`
	Cancelled int    `json:"cancelled"`
	Revenue   string `json:"revenue"`
}

type productSalesResponse struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Revenue   string `json:"revenue"`
}

func toProductSales(in []appOrder.ProductSales) []productSalesResponse {
	out := make([]productSalesResponse, 0, len(in))
	for _, s := range in {
		out = append(out, productSalesResponse{ProductID: s.ProductID, Name: s.Name, Quantity: s.Quantity, Revenue: money(s.Revenue)})
	}
	return out
}
