package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Zhima-Mochi/clubshop/internal/application/cart"
	appInventory "github.com/Zhima-Mochi/clubshop/internal/application/inventory"
	appOrder "github.com/Zhima-Mochi/clubshop/internal/application/order"
	appPayment "github.com/Zhima-Mochi/clubshop/internal/application/payment"
	domainCustomer "github.com/Zhima-Mochi/clubshop/internal/domain/customer"
	domainInventory "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	"github.com/Zhima-Mochi/clubshop/internal/infrastructure/id"
	"github.com/Zhima-Mochi/clubshop/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/Zhima-Mochi/clubshop/internal/observability/obstest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t     *testing.T
	srv   http.Handler
	stock *memory.InventoryRepository
	rec   *obstest.Recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	rec := obstest.New()

	stock := memory.NewInventoryRepository()
	for _, p := range []struct {
		id, name string
		category domainInventory.Category
		price    string
		stock    int
	}{
		{"jersey", "Home Jersey", domainInventory.CategoryUniform, "89.90", 5},
		{"ball", "Match Ball", domainInventory.CategoryEquipment, "120.00", 2},
		{"gloves", "Keeper Gloves", domainInventory.CategoryAccessory, "45.50", 0},
	} {
		prod, err := domainInventory.NewProduct(p.id, p.name, "", p.category, decimal.RequireFromString(p.price), p.stock)
		require.NoError(t, err)
		require.NoError(t, stock.Create(ctx, prod))
	}
	customers := memory.NewCustomerDirectory()
	customers.Put("fan@club.test", domainCustomer.StatusActive)
	customers.Put("gone@club.test", domainCustomer.StatusInactive)

	orders := memory.NewOrderRepository()
	ids := id.NewUUIDGenerator()
	calc := cart.NewCalculator(stock, rec)

	h := NewHandler(Deps{
		CreateOrder: appOrder.NewCreateOrderUseCase(orders, stock, calc, customers,
			memory.NewIdempotencyStore(0), ids, nil, appOrder.DefaultLimits(), rec),
		CancelOrder: appOrder.NewCancelOrderUseCase(orders, stock, nil, rec),
		MarkPaid:    appPayment.NewMarkPaidUseCase(orders, nil, rec),
		Orders:      appOrder.NewQueries(orders, rec),
		Catalog:     appInventory.NewCatalog(stock, ids, rec),
		Cart:        calc,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	}, nil, rec)

	return &testServer{t: t, srv: h.Router(), stock: stock, rec: rec}
}

func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	s.srv.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func (s *testServer) stockOf(productID string) int {
	s.t.Helper()
	n, err := s.stock.GetStock(context.Background(), productID)
	require.NoError(s.t, err)
	return n
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/orders", map[string]any{
		"customerEmail": "Fan@Club.test",
		"items": []map[string]any{
			{"productId": "jersey", "quantity": 2},
			{"productId": "ball", "quantity": 1},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[orderResponse](t, rr)
	assert.Equal(t, "299.80", created.TotalAmount)
	assert.Equal(t, "pending", string(created.Status))
	assert.Equal(t, "fan@club.test", created.CustomerEmail)
	assert.Len(t, created.LineItems, 2)
	assert.NotEmpty(t, rr.Header().Get(headerRequestID))
	assert.Equal(t, 3, s.stockOf("jersey"))

	rr = s.do(http.MethodPost, "/orders/"+created.ID+"/payment", map[string]any{"paymentMethod": "PIX"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	paid := decode[orderResponse](t, rr)
	assert.Equal(t, "paid", string(paid.Status))
	assert.Equal(t, "pix", paid.PaymentMethod)
	require.NotNil(t, paid.PaidAt)

	rr = s.do(http.MethodPost, "/orders/"+created.ID+"/cancel", map[string]any{})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "INVALID_STATE_TRANSITION", decode[errorResponse](t, rr).Code)
	assert.Equal(t, 3, s.stockOf("jersey"))

	rr = s.do(http.MethodGet, "/orders/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "paid", string(decode[orderResponse](t, rr).Status))

	rr = s.do(http.MethodGet, "/reports/orders", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decode[statsResponse](t, rr)
	assert.Equal(t, 1, stats.Paid)
	assert.Equal(t, "299.80", stats.Revenue)

	rr = s.do(http.MethodGet, "/reports/top-products?limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	top := decode[[]productSalesResponse](t, rr)
	require.Len(t, top, 1)
	assert.Equal(t, "jersey", top[0].ProductID)
}

func TestCancelReleasesStock(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/orders", map[string]any{
		"customerEmail": "fan@club.test",
		"items":         []map[string]any{{"productId": "ball", "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[orderResponse](t, rr)
	assert.Equal(t, 0, s.stockOf("ball"))

	rr = s.do(http.MethodPost, "/orders/"+created.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	cancelled := decode[orderResponse](t, rr)
	assert.Equal(t, "cancelled", string(cancelled.Status))
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 2, s.stockOf("ball"))

	rr = s.do(http.MethodPost, "/orders/"+created.ID+"/payment", map[string]any{"paymentMethod": "cash"})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCreateOrderErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{
			name:   "insufficient stock",
			body:   map[string]any{"customerEmail": "fan@club.test", "items": []map[string]any{{"productId": "ball", "quantity": 3}}},
			status: http.StatusConflict,
			code:   "INSUFFICIENT_STOCK",
		},
		{
			name:   "unknown product",
			body:   map[string]any{"customerEmail": "fan@club.test", "items": []map[string]any{{"productId": "nope", "quantity": 1}}},
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
		{
			name:   "unknown customer",
			body:   map[string]any{"customerEmail": "ghost@club.test", "items": []map[string]any{{"productId": "ball", "quantity": 1}}},
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
		{
			name:   "inactive customer",
			body:   map[string]any{"customerEmail": "gone@club.test", "items": []map[string]any{{"productId": "ball", "quantity": 1}}},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "empty items",
			body:   map[string]any{"customerEmail": "fan@club.test", "items": []map[string]any{}},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "unknown field",
			body:   map[string]any{"customerEmail": "fan@club.test", "coupon": "FREE"},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			rr := s.do(http.MethodPost, "/orders", tc.body)
			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			assert.Equal(t, tc.code, decode[errorResponse](t, rr).Code)
			assert.Equal(t, 2, s.stockOf("ball"))
		})
	}
}

func TestInsufficientStockBodyNamesTheProduct(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(http.MethodPost, "/orders", map[string]any{
		"customerEmail": "fan@club.test",
		"items":         []map[string]any{{"productId": "ball", "quantity": 5}},
	})
	require.Equal(t, http.StatusConflict, rr.Code)
	body := decode[errorResponse](t, rr)
	assert.Equal(t, "ball", body.ProductID)
	require.NotNil(t, body.Requested)
	require.NotNil(t, body.Available)
	assert.Equal(t, 5, *body.Requested)
	assert.Equal(t, 2, *body.Available)
}

func TestIdempotencyKeyReplaysOrder(t *testing.T) {
	s := newTestServer(t)
	body := map[string]any{
		"customerEmail": "fan@club.test",
		"items":         []map[string]any{{"productId": "jersey", "quantity": 1}},
	}

	first := s.do(http.MethodPost, "/orders", body, headerIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := s.do(http.MethodPost, "/orders", body, headerIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())

	assert.Equal(t, decode[orderResponse](t, first).ID, decode[orderResponse](t, second).ID)
	assert.Equal(t, 4, s.stockOf("jersey"))
}

func TestUnknownOrderIsNotFound(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/orders/missing/payment", map[string]any{"paymentMethod": "pix"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/orders/missing/cancel", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/orders/missing", nil).Code)
}

func TestMarkPaidRejectsUnknownMethod(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(http.MethodPost, "/orders", map[string]any{
		"customerEmail": "fan@club.test",
		"items":         []map[string]any{{"productId": "jersey", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[orderResponse](t, rr)

	rr = s.do(http.MethodPost, "/orders/"+created.ID+"/payment", map[string]any{"paymentMethod": "card"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "paymentMethod", decode[errorResponse](t, rr).Field)
}

func TestListOrdersFilters(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(http.MethodPost, "/orders", map[string]any{
		"customerEmail": "fan@club.test",
		"items":         []map[string]any{{"productId": "jersey", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = s.do(http.MethodGet, "/orders?status=PENDING&customerEmail=FAN@club.test", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]orderResponse](t, rr), 1)

	rr = s.do(http.MethodGet, "/orders?status=paid", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]orderResponse](t, rr))

	rr = s.do(http.MethodGet, "/orders?status=shipped", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCartQuote(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(http.MethodPost, "/cart/quote", map[string]any{
		"items": []map[string]any{
			{"productId": "jersey", "quantity": 2},
			{"productId": "gloves", "quantity": 1},
			{"productId": "nope", "quantity": 1},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	q := decode[quoteResponse](t, rr)
	assert.Equal(t, "179.80", q.Total)
	assert.Len(t, q.Lines, 1)
	assert.Len(t, q.Errors, 2)
	assert.Equal(t, 5, s.stockOf("jersey"))
}

func TestProductEndpoints(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/products", map[string]any{
		"id": "cap", "name": "Club Cap", "category": "Accessory", "unitPrice": "25.00", "stockQuantity": 4,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "25.00", decode[productResponse](t, rr).UnitPrice)

	rr = s.do(http.MethodPut, "/products/cap", map[string]any{"unitPrice": 27.5})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[productResponse](t, rr)
	assert.Equal(t, "27.50", updated.UnitPrice)
	assert.Equal(t, 4, updated.StockQuantity)

	rr = s.do(http.MethodPost, "/products/cap/stock", map[string]any{"operation": "decrease", "quantity": 10})
	assert.Equal(t, http.StatusConflict, rr.Code)
	rr = s.do(http.MethodPost, "/products/cap/stock", map[string]any{"operation": "increase", "quantity": 6})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 10, decode[stockResponse](t, rr).StockQuantity)

	rr = s.do(http.MethodGet, "/products?available=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]productResponse](t, rr), 3)

	rr = s.do(http.MethodGet, "/products?maxStock=2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]productResponse](t, rr), 2)

	rr = s.do(http.MethodGet, "/products?category=uniform&q=jersey", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]productResponse](t, rr), 1)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/products?category=food", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/products?maxStock=lots", nil).Code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/products/cap", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/products/cap", nil).Code)
}

func TestHealthMetricsAndInstrumentation(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(1), s.rec.CounterValue(observability.MHTTPRequests,
		observability.L("route", "GET /health"), observability.L("status", "200")))

	rr = s.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, "# metrics", rr.Body.String())

	s.do(http.MethodGet, "/orders/abc", nil)
	assert.Equal(t, float64(1), s.rec.CounterValue(observability.MHTTPRequests,
		observability.L("route", "GET /orders/{id}"), observability.L("status", "404")))

	access := s.rec.Entries("http_access")
	require.NotEmpty(t, access)
	assert.NotEmpty(t, access[0].Fields["request_id"])

	assert.Equal(t, http.StatusMethodNotAllowed, s.do(http.MethodPatch, "/orders", nil).Code)
}
