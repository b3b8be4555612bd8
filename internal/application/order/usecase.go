package order

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Zhima-Mochi/clubshop/internal/application"
	"github.com/Zhima-Mochi/clubshop/internal/application/cart"
	domcustomer "github.com/Zhima-Mochi/clubshop/internal/domain/customer"
	domidem "github.com/Zhima-Mochi/clubshop/internal/domain/idempotency"
	dominv "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/clubshop/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/clubshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/clubshop/internal/domain/validation"
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/Zhima-Mochi/clubshop/internal/observability/logctx"
	"github.com/Zhima-Mochi/clubshop/internal/pkg/saga"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"
)

var ErrRepository = errors.New("order: repository failure")

// CreateOrderUseCase validates a cart, reserves its stock and persists a
// pending order. Every successful reservation is undone if a later step fails.
type CreateOrderUseCase struct {
	repo        domain.Repository
	stock       dominv.Store
	pricer      Pricer
	customers   domcustomer.Directory
	idempotency domidem.Store
	idGenerator IDGenerator
	publisher   domoutbox.Publisher
	limits      Limits

	in                 application.Instruments
	reservationCounter observability.Counter // stock_reservations_total{outcome}
	inconsistencies    observability.Counter // stock_inconsistency_total{operation}
}

// NewCreateOrderUseCase wires the dependencies required to execute the use case.
// idem may be nil, in which case Idempotency-Key is ignored.
func NewCreateOrderUseCase(
	repo domain.Repository,
	stock dominv.Store,
	pricer Pricer,
	customers domcustomer.Directory,
	idem domidem.Store,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	limits Limits,
	tel observability.Observability,
) *CreateOrderUseCase {
	in := application.NewInstruments(tel, orderService)
	if limits.MaxLineItems <= 0 {
		limits.MaxLineItems = DefaultLimits().MaxLineItems
	}
	if !limits.MaxOrderTotal.IsPositive() {
		limits.MaxOrderTotal = DefaultLimits().MaxOrderTotal
	}
	return &CreateOrderUseCase{
		repo:               repo,
		stock:              stock,
		pricer:             pricer,
		customers:          customers,
		idempotency:        idem,
		idGenerator:        idGen,
		publisher:          publisher,
		limits:             limits,
		in:                 in,
		reservationCounter: in.Metrics.Counter(observability.MStockReservations),
		inconsistencies:    in.Metrics.Counter(observability.MStockInconsistency),
	}
}

type CreateOrderInput struct {
	CustomerEmail  string
	Items          []cart.Item
	IdempotencyKey string
}

// Execute performs the order creation flow.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *domain.Order, err error) {
	logger := logctx.FromOr(ctx, uc.in.Log).With(observability.F("use_case", useCaseOrderCreate))

	var orderID string
	var publishErr error
	reservation := "not_attempted"

	ctx, span := uc.in.Tracer.Start(ctx, application.SpanPrefix+"CreateOrder",
		attribute.String("use_case", useCaseOrderCreate),
		attribute.Int("order.items", len(cmd.Items)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		uc.in.Record(useCaseOrderCreate, outcome, lat)
		if reservation != "not_attempted" && uc.reservationCounter != nil {
			uc.reservationCounter.Add(1, observability.L("outcome", reservation))
		}

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if publishErr != nil {
			fields = append(fields, observability.F("event_publish_error", publishErr.Error()))
		}
		if err != nil {
			fields = append(fields, observability.Err(err))
		}

		logger.Info("use_case_done", fields...)
	}()

	email, verr := uc.validate(cmd)
	if verr != nil {
		outcome, statusText = "error", "VALIDATION_FAILED"
		return nil, verr
	}
	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	active, cerr := uc.customers.IsActiveCustomer(ctx, email)
	switch {
	case errors.Is(cerr, domcustomer.ErrNotFound):
		outcome, statusText = "error", "CUSTOMER_NOT_FOUND"
		return nil, cerr
	case cerr != nil:
		outcome, statusText = "error", "CUSTOMER_LOOKUP_FAILED"
		return nil, fmt.Errorf("order: customer lookup: %w", cerr)
	case !active:
		outcome, statusText = "error", "CUSTOMER_INACTIVE"
		return nil, validation.New("customerEmail", "customer %s is not active", email)
	}

	key := strings.TrimSpace(cmd.IdempotencyKey)
	claimKey := domidem.Scoped(email, key)
	if key != "" && uc.idempotency != nil {
		existingID, ierr := uc.idempotency.Claim(ctx, claimKey)
		switch {
		case errors.Is(ierr, domidem.ErrInFlight):
			outcome, statusText = "error", "IDEMPOTENCY_IN_FLIGHT"
			return nil, ierr
		case ierr != nil:
			outcome, statusText = "error", "IDEMPOTENCY_CLAIM_FAILED"
			return nil, fmt.Errorf("order: claim idempotency key: %w", ierr)
		case existingID != "":
			existing, gerr := uc.repo.Get(ctx, existingID)
			if gerr != nil {
				outcome, statusText = "error", "IDEMPOTENCY_LOOKUP_FAILED"
				return nil, wrapRepositoryError(gerr)
			}
			orderID = existing.ID
			statusText = "IDEMPOTENT_REPLAY"
			span.AddEvent("order.idempotent_replay",
				trace.WithAttributes(attribute.String("order.id", orderID)),
			)
			return existing, nil
		}
		defer func() {
			if err == nil {
				return
			}
			if rerr := uc.idempotency.Release(context.WithoutCancel(ctx), claimKey); rerr != nil {
				logger.Warn("idempotency_release_failed",
					observability.Err(rerr),
				)
			}
		}()
	} else {
		key = ""
	}

	lines, total, perr := uc.pricer.Price(ctx, cmd.Items)
	if perr != nil {
		outcome, statusText = "error", pricingStatus(perr)
		return nil, perr
	}
	if total.GreaterThan(uc.limits.MaxOrderTotal) {
		outcome, statusText = "error", "TOTAL_LIMIT_EXCEEDED"
		return nil, validation.New("items", "order total %s exceeds the limit of %s",
			total.StringFixed(2), uc.limits.MaxOrderTotal.StringFixed(2))
	}

	orderID = uc.idGenerator.NewID()
	logger = logger.With(observability.F("order_id", orderID))
	span.SetAttributes(attribute.String("order.id", orderID))

	reservation = "reserved"
	reservations := saga.New()
	for _, line := range lines {
		if _, derr := uc.stock.Decrement(ctx, line.ProductID, line.Quantity); derr != nil {
			reservation = "rejected"
			outcome, statusText = "error", reservationStatus(derr)
			uc.compensate(ctx, logger, reservations)
			if errors.Is(derr, dominv.ErrNotFound) || errors.Is(derr, dominv.ErrInsufficientStock) {
				return nil, derr
			}
			return nil, fmt.Errorf("order: reserve %s: %w", line.ProductID, derr)
		}
		reservations.Record(line.ProductID, uc.release(logger, orderID, line.ProductID, line.Quantity))
	}

	entity, derr := domain.New(orderID, email, key, toLineItems(lines), total)
	if derr != nil {
		reservation = "compensated"
		outcome, statusText = "error", "DOMAIN_CONSTRUCTION_FAILED"
		uc.compensate(ctx, logger, reservations)
		return nil, fmt.Errorf("order: construct: %w", derr)
	}
	if err := uc.repo.Insert(ctx, entity); err != nil {
		reservation = "compensated"
		outcome, statusText = "error", "REPO_INSERT_FAILED"
		uc.compensate(ctx, logger, reservations)
		return nil, wrapRepositoryError(err)
	}
	reservations.Commit()

	if key != "" {
		if cerr := uc.idempotency.Complete(ctx, claimKey, entity.ID); cerr != nil {
			// The order exists; a retry with this key will create a second one.
			logger.Warn("idempotency_complete_failed",
				observability.Err(cerr),
			)
		}
	}

	for _, evt := range []domoutbox.Event{
		dominv.NewStockReservedEvent(entity.ID, stockLines(entity.Lines)),
		domain.NewOrderCreatedEvent(entity),
	} {
		if perr := uc.in.Publish(ctx, uc.publisher, evt); perr != nil {
			publishErr = perr
			statusText = "EVENT_PUBLISH_FAILED"
		}
	}

	span.SetAttributes(attribute.String("order.status", string(entity.Status())))
	span.AddEvent("order.created",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.String("order.total", entity.Total.StringFixed(2)),
		),
	)

	return entity, nil
}

func (uc *CreateOrderUseCase) validate(cmd CreateOrderInput) (string, error) {
	email := strings.TrimSpace(cmd.CustomerEmail)
	if email == "" {
		return "", validation.New("customerEmail", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", validation.New("customerEmail", "%q is not a valid email address", email)
	}
	if len(cmd.Items) == 0 {
		return "", validation.New("items", "order must contain at least one item")
	}
	if len(cmd.Items) > uc.limits.MaxLineItems {
		return "", validation.New("items", "order cannot contain more than %d items", uc.limits.MaxLineItems)
	}
	for i, item := range cmd.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return "", validation.New(fmt.Sprintf("items[%d].productId", i), "is required")
		}
		if item.Quantity <= 0 {
			return "", validation.New(fmt.Sprintf("items[%d].quantity", i), "must be greater than zero")
		}
	}
	return strings.ToLower(email), nil
}

// release is the compensation for one decrement. A failure here leaves
// stock permanently short, so it is logged as an inconsistency and counted.
func (uc *CreateOrderUseCase) release(logger observability.Logger, orderID, productID string, quantity int) saga.Compensation {
	return func(ctx context.Context) error {
		if _, err := uc.stock.Increment(ctx, productID, quantity); err != nil {
			if uc.inconsistencies != nil {
				uc.inconsistencies.Add(1, observability.L("operation", "compensate"))
			}
			logger.Error("inventory_inconsistency",
				observability.F("operation", "compensate"),
				observability.F("order_id", orderID),
				observability.F("product_id", productID),
				observability.F("quantity", quantity),
				observability.Err(err),
			)
			return err
		}
		return nil
	}
}

func (uc *CreateOrderUseCase) compensate(ctx context.Context, logger observability.Logger, s *saga.Saga) {
	n := s.Len()
	if err := s.Rollback(ctx); err != nil {
		logger.Error("order_compensation_failed",
			observability.F("steps", n),
			observability.Err(err),
		)
		return
	}
	if n > 0 {
		logger.Info("order_compensated", observability.F("steps", n))
	}
}

func toLineItems(lines []cart.Line) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(lines))
	for _, l := range lines {
		out = append(out, domain.LineItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		})
	}
	return out
}

func stockLines(lines []domain.LineItem) []dominv.StockLine {
	out := make([]dominv.StockLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, dominv.StockLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}

func pricingStatus(err error) string {
	switch {
	case errors.Is(err, dominv.ErrNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, dominv.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	default:
		return "PRICING_FAILED"
	}
}

func reservationStatus(err error) string {
	switch {
	case errors.Is(err, dominv.ErrNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, dominv.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	default:
		return "RESERVE_FAILED"
	}
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInvalidStateTransition):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
