package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Zhima-Mochi/clubshop/internal/application/cart"
	appInventory "github.com/Zhima-Mochi/clubshop/internal/application/inventory"
	appOrder "github.com/Zhima-Mochi/clubshop/internal/application/order"
	appPayment "github.com/Zhima-Mochi/clubshop/internal/application/payment"
	domainCustomer "github.com/Zhima-Mochi/clubshop/internal/domain/customer"
	domainIdempotency "github.com/Zhima-Mochi/clubshop/internal/domain/idempotency"
	domainInventory "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	domainOrder "github.com/Zhima-Mochi/clubshop/internal/domain/order"
	"github.com/Zhima-Mochi/clubshop/internal/domain/validation"
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/Zhima-Mochi/clubshop/internal/observability/logctx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Deps are the use cases the HTTP surface exposes. Metrics, when set, is
// mounted at /metrics outside the instrumented chain.
type Deps struct {
	CreateOrder *appOrder.CreateOrderUseCase
	CancelOrder *appOrder.CancelOrderUseCase
	MarkPaid    *appPayment.MarkPaidUseCase
	Orders      *appOrder.Queries
	Catalog     *appInventory.Catalog
	Cart        *cart.Calculator
	Metrics     http.Handler
}

type Handler struct {
	deps Deps
	log  observability.Logger
	tel  observability.Observability

	requests observability.Counter   // http_requests_total{method,route,status}
	duration observability.Histogram // http_request_duration_seconds{method,route,status}
}

const (
	componentHTTPHandler = "http_server"
	tracerHTTP           = "clubshop.http"
	headerRequestID      = "X-Request-ID"
	headerIdempotencyKey = "Idempotency-Key"

	maxBodyBytes = 1 << 20
)

func NewHandler(deps Deps, logger observability.Logger, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = tel.Logger()
	}
	return &Handler{
		deps:     deps,
		log:      baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel:      tel,
		requests: tel.Metrics().Counter(observability.MHTTPRequests),
		duration: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)

	h.handle(r, http.MethodGet, "/health", h.handleHealth)

	h.handle(r, http.MethodPost, "/orders", h.handleCreateOrder)
	h.handle(r, http.MethodGet, "/orders", h.handleListOrders)
	h.handle(r, http.MethodGet, "/orders/{id}", h.handleGetOrder)
	h.handle(r, http.MethodPost, "/orders/{id}/payment", h.handleMarkPaid)
	h.handle(r, http.MethodPost, "/orders/{id}/cancel", h.handleCancelOrder)

	h.handle(r, http.MethodPost, "/cart/quote", h.handleQuoteCart)

	h.handle(r, http.MethodGet, "/products", h.handleListProducts)
	h.handle(r, http.MethodPost, "/products", h.handleCreateProduct)
	h.handle(r, http.MethodGet, "/products/{id}", h.handleGetProduct)
	h.handle(r, http.MethodPut, "/products/{id}", h.handleUpdateProduct)
	h.handle(r, http.MethodDelete, "/products/{id}", h.handleDeleteProduct)
	h.handle(r, http.MethodPost, "/products/{id}/stock", h.handleAdjustStock)

	h.handle(r, http.MethodGet, "/reports/orders", h.handleOrderStats)
	h.handle(r, http.MethodGet, "/reports/top-products", h.handleTopProducts)

	if h.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.deps.Metrics)
	}
	return r
}

// handle mounts one route behind the instrumented chain:
// trace span, request logger, HTTP metrics, access log.
func (h *Handler) handle(r chi.Router, method, pattern string, handler http.HandlerFunc) {
	route := method + " " + pattern
	var chain http.Handler = handler
	chain = h.withAccessLog(route, chain)
	chain = h.withHTTPMetrics(route, chain)
	chain = ObservabilityMiddleware(h.log, requestIDFromHeader, h.tel)(chain)
	chain = h.withTrace(route, pattern, chain)
	r.Method(method, pattern, chain)
}

func requestIDFromHeader(r *http.Request) string { return r.Header.Get(headerRequestID) }

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withAccessLog writes one http_access line per request through the request logger.
func (h *Handler) withAccessLog(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger := logctx.FromOr(r.Context(), h.log)
		fields := []observability.Field{
			observability.F("route", route),
			observability.F("path", r.URL.Path),
			observability.F("status", rec.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		}
		if rec.status >= http.StatusInternalServerError {
			logger.Warn("http_access", fields...)
			return
		}
		logger.Info("http_access", fields...)
	})
}

// withTrace opens the server span, continuing a W3C traceparent when present.
func (h *Handler) withTrace(route, pattern string, next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerHTTP)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parent := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(parent, route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", pattern),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}

// withHTTPMetrics labels by route template, never by raw path.
func (h *Handler) withHTTPMetrics(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", route),
			observability.L("status", strconv.Itoa(rec.status)),
		}
		h.requests.Add(1, labels...)
		h.duration.Observe(time.Since(start).Seconds(), labels...)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return validation.New("body", "request body is empty")
		}
		return validation.New("body", "malformed JSON: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	ProductID string `json:"productId,omitempty"`
	Requested *int   `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

// writeDomainError maps an error from the use cases onto a status code and
// a machine readable code. Unknown errors become 500 without leaking details.
func writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		vErr     *validation.Error
		stockErr *domainInventory.InsufficientStockError
	)
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "VALIDATION_ERROR", Field: vErr.Field})
	case errors.Is(err, domainInventory.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err)
	case errors.Is(err, domainOrder.ErrNotFound),
		errors.Is(err, domainInventory.ErrNotFound),
		errors.Is(err, domainCustomer.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err)
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:     err.Error(),
			Code:      "INSUFFICIENT_STOCK",
			ProductID: stockErr.ProductID,
			Requested: &stockErr.Requested,
			Available: &stockErr.Available,
		})
	case errors.Is(err, domainInventory.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err)
	case errors.Is(err, domainOrder.ErrInvalidStateTransition):
		writeError(w, http.StatusConflict, "INVALID_STATE_TRANSITION", err)
	case errors.Is(err, domainIdempotency.ErrInFlight):
		writeError(w, http.StatusConflict, "IDEMPOTENCY_IN_FLIGHT", err)
	case errors.Is(err, domainOrder.ErrConflict),
		errors.Is(err, domainInventory.ErrConflict):
		writeError(w, http.StatusConflict, "CONFLICT", err)
	default:
		code := "INTERNAL"
		if errors.Is(err, domainOrder.ErrConsistency) {
			code = "CONSISTENCY_ERROR"
		}
		logctx.FromOr(ctx, observability.NopLogger()).Error("http_internal_error", observability.Err(err))
		writeError(w, http.StatusInternalServerError, code, errors.New("internal error"))
	}
}

func queryInt(r *http.Request, name string) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, validation.New(name, "must be an integer")
	}
	return &v, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, validation.New(name, "must be true or false")
	}
	return v, nil
}

func pathID(r *http.Request) string { return chi.URLParam(r, "id") }
