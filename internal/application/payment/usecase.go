package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/clubshop/internal/application"
	domorder "github.com/Zhima-Mochi/clubshop/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/clubshop/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/clubshop/internal/domain/payment"
	"github.com/Zhima-Mochi/clubshop/internal/domain/validation"
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/Zhima-Mochi/clubshop/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	paymentService     = "payment-service"
	useCasePaymentMark = "payment.mark_paid"
)

var ErrRepository = errors.New("payment: repository failure")

// MarkPaidUseCase records that a pending order was settled at the desk.
// There is no gateway; confirming payment is a local state transition.
type MarkPaidUseCase struct {
	orders    domorder.Repository
	publisher domoutbox.Publisher
	now       func() time.Time
	in        application.Instruments
}

func NewMarkPaidUseCase(orders domorder.Repository, publisher domoutbox.Publisher, tel observability.Observability) *MarkPaidUseCase {
	return &MarkPaidUseCase{
		orders:    orders,
		publisher: publisher,
		now:       time.Now,
		in:        application.NewInstruments(tel, paymentService),
	}
}

type MarkPaidInput struct {
	OrderID string
	Method  string
}

func (uc *MarkPaidUseCase) Execute(ctx context.Context, cmd MarkPaidInput) (_ *domorder.Order, err error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	logger := logctx.FromOr(ctx, uc.in.Log).With(
		observability.F("use_case", useCasePaymentMark),
		observability.F("order_id", orderID),
	)

	ctx, span := uc.in.Tracer.Start(ctx, application.SpanPrefix+"MarkPaid",
		attribute.String("use_case", useCasePaymentMark),
		attribute.String("order.id", orderID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var method dompay.Method
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

		uc.in.Record(useCasePaymentMark, outcome, lat)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if method != "" {
			fields = append(fields, observability.F("payment_method", string(method)))
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
	m, merr := dompay.ParseMethod(cmd.Method)
	if merr != nil {
		outcome, statusText = "error", "PAYMENT_METHOD_INVALID"
		return nil, merr
	}
	method = m

	current, gerr := uc.orders.Get(ctx, orderID)
	if gerr != nil {
		outcome, statusText = "error", "ORDER_LOAD_FAILED"
		if errors.Is(gerr, domorder.ErrNotFound) {
			statusText = "ORDER_NOT_FOUND"
		}
		return nil, wrapRepositoryError(gerr)
	}

	paid := current.Clone()
	if terr := paid.MarkPaid(method, uc.now()); terr != nil {
		outcome, statusText = "error", "STATE_TRANSITION_REJECTED"
		return nil, terr
	}
	if uerr := uc.orders.Update(ctx, paid, domorder.StatusPending); uerr != nil {
		outcome, statusText = "error", "ORDER_UPDATE_FAILED"
		if errors.Is(uerr, domorder.ErrInvalidStateTransition) {
			statusText = "STATE_TRANSITION_REJECTED"
		}
		return nil, wrapRepositoryError(uerr)
	}

	if publishErr = uc.in.Publish(ctx, uc.publisher, domorder.NewOrderPaidEvent(paid)); publishErr != nil {
		statusText = "EVENT_PUBLISH_FAILED"
	}

	span.SetAttributes(
		attribute.String("order.status", string(paid.Status())),
		attribute.String("payment.method", string(method)),
	)
	return paid, nil
}

func wrapRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domorder.ErrNotFound), errors.Is(err, domorder.ErrInvalidStateTransition):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
