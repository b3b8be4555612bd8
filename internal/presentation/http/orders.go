package httppresentation

import (
	"net/http"
	"strings"

	appOrder "github.com/Zhima-Mochi/clubshop/internal/application/order"
	appPayment "github.com/Zhima-Mochi/clubshop/internal/application/payment"
	domainOrder "github.com/Zhima-Mochi/clubshop/internal/domain/order"
)

type createOrderRequest struct {
	CustomerEmail string        `json:"customerEmail"`
	Items         []itemRequest `json:"items"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}

	order, err := h.deps.CreateOrder.Execute(r.Context(), appOrder.CreateOrderInput{
		CustomerEmail:  req.CustomerEmail,
		Items:          toCartItems(req.Items),
		IdempotencyKey: strings.TrimSpace(r.Header.Get(headerIdempotencyKey)),
	})
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

type markPaidRequest struct {
	PaymentMethod string `json:"paymentMethod"`
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	var req markPaidRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}

	order, err := h.deps.MarkPaid.Execute(r.Context(), appPayment.MarkPaidInput{
		OrderID: pathID(r),
		Method:  req.PaymentMethod,
	})
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// The cancel body is ignored; clients may send {} or nothing.
func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.deps.CancelOrder.Execute(r.Context(), appOrder.CancelOrderInput{OrderID: pathID(r)})
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.deps.Orders.Get(r.Context(), pathID(r))
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	filter := domainOrder.Filter{CustomerEmail: strings.TrimSpace(r.URL.Query().Get("customerEmail"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := domainOrder.ParseStatus(strings.ToLower(raw))
		if err != nil {
			writeDomainError(r.Context(), w, err)
			return
		}
		filter.Status = status
	}

	orders, err := h.deps.Orders.List(r.Context(), filter)
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) handleOrderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Orders.Stats(r.Context())
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Total:     stats.Total,
		Pending:   stats.Pending,
		Paid:      stats.Paid,
		Cancelled: stats.Cancelled,
		Revenue:   money(stats.Revenue),
	})
}

func (h *Handler) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	n := appOrder.DefaultTopProducts
	if limit != nil {
		n = *limit
	}

	top, err := h.deps.Orders.TopProducts(r.Context(), n)
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductSales(top))
}

type quoteRequest struct {
	Items []itemRequest `json:"items"`
}

func (h *Handler) handleQuoteCart(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}

	quote, err := h.deps.Cart.Quote(r.Context(), toCartItems(req.Items))
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteResponse(quote))
}
