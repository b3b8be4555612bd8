package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/clubshop/internal/application"
	dominv "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/clubshop/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/clubshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/clubshop/internal/domain/validation"
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/Zhima-Mochi/clubshop/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const useCaseOrderCancel = "order.cancel"

// CancelOrderUseCase returns a pending order's stock and marks it cancelled.
type CancelOrderUseCase struct {
	repo      domain.Repository
	stock     dominv.Store
	publisher domoutbox.Publisher
	now       func() time.Time

	in              application.Instruments
	inconsistencies observability.Counter // stock_inconsistency_total{operation}
}

func NewCancelOrderUseCase(
	repo domain.Repository,
	stock dominv.Store,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *CancelOrderUseCase {
	in := application.NewInstruments(tel, orderService)
	return &CancelOrderUseCase{
		repo:            repo,
		stock:           stock,
		publisher:       publisher,
		now:             time.Now,
		in:              in,
		inconsistencies: in.Metrics.Counter(observability.MStockInconsistency),
	}
}

type CancelOrderInput struct {
	OrderID string
}

// Execute marks a pending order cancelled, then releases every line item in
// order. A release that fails stops the loop; the order stays cancelled and
// the already released lines are not taken back.
func (uc *CancelOrderUseCase) Execute(ctx context.Context, cmd CancelOrderInput) (_ *domain.Order, err error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	logger := logctx.FromOr(ctx, uc.in.Log).With(
		observability.F("use_case", useCaseOrderCancel),
		observability.F("order_id", orderID),
	)

	ctx, span := uc.in.Tracer.Start(ctx, application.SpanPrefix+"CancelOrder",
		attribute.String("use_case", useCaseOrderCancel),
		attribute.String("order.id", orderID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var publishErr error

	defer func() {
		lat := time.Since(start).Seconds()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		uc.in.Record(useCaseOrderCancel, outcome, lat)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
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

	if orderID == "" {
		outcome, statusText = "error", "ORDER_ID_REQUIRED"
		return nil, validation.New("orderId", "is required")
	}

	current, gerr := uc.repo.Get(ctx, orderID)
	if gerr != nil {
		outcome, statusText = "error", "ORDER_LOAD_FAILED"
		if errors.Is(gerr, domain.ErrNotFound) {
			statusText = "ORDER_NOT_FOUND"
		}
		return nil, wrapRepositoryError(gerr)
	}

	cancelled := current.Clone()
	if terr := cancelled.Cancel(uc.now()); terr != nil {
		outcome, statusText = "error", "STATE_TRANSITION_REJECTED"
		return nil, terr
	}

	// The conditional update claims the order. Only the caller that wins it
	// returns stock, so a concurrent cancel or payment never releases twice.
	if uerr := uc.repo.Update(ctx, cancelled, domain.StatusPending); uerr != nil {
		outcome, statusText = "error", "ORDER_UPDATE_FAILED"
		if errors.Is(uerr, domain.ErrInvalidStateTransition) {
			statusText = "STATE_TRANSITION_REJECTED"
		}
		return nil, wrapRepositoryError(uerr)
	}

	for i, line := range cancelled.Lines {
		if _, ierr := uc.stock.Increment(ctx, line.ProductID, line.Quantity); ierr != nil {
			outcome, statusText = "error", "STOCK_RELEASE_FAILED"
			if uc.inconsistencies != nil {
				uc.inconsistencies.Add(1, observability.L("operation", "release"))
			}
			logger.Error("inventory_inconsistency",
				observability.F("operation", "release"),
				observability.F("product_id", line.ProductID),
				observability.F("quantity", line.Quantity),
				observability.F("released_lines", i),
				observability.F("total_lines", len(cancelled.Lines)),
				observability.Err(ierr),
			)
			return nil, fmt.Errorf("order: release %s for order %s: %w", line.ProductID, orderID, ierr)
		}
	}

	for _, evt := range []domoutbox.Event{
		dominv.NewStockReleasedEvent(cancelled.ID, stockLines(cancelled.Lines)),
		domain.NewOrderCancelledEvent(cancelled),
	} {
		if perr := uc.in.Publish(ctx, uc.publisher, evt); perr != nil {
			publishErr = perr
			statusText = "EVENT_PUBLISH_FAILED"
		}
	}

	span.SetAttributes(attribute.String("order.status", string(cancelled.Status())))
	return cancelled, nil
}
