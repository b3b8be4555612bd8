package inventory

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/clubshop/internal/application"
	dominv "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/clubshop/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/clubshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/Zhima-Mochi/clubshop/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	workerService            = "inventory_worker"
	DefaultLowStockThreshold = 10
)

// LowStockWorker watches created orders and raises an alert for every
// ordered product whose remaining stock is at or below the threshold.
type LowStockWorker struct {
	subscriber domoutbox.Subscriber
	stock      dominv.Store
	threshold  int
	in         application.Instruments

	alerts observability.Counter // low_stock_alerts_total{product_id}
}

func NewLowStockWorker(
	subscriber domoutbox.Subscriber,
	stock dominv.Store,
	threshold int,
	tel observability.Observability,
) *LowStockWorker {
	if threshold < 0 {
		threshold = DefaultLowStockThreshold
	}
	in := application.NewInstruments(tel, workerService)
	return &LowStockWorker{
		subscriber: subscriber,
		stock:      stock,
		threshold:  threshold,
		in:         in,
		alerts:     in.Metrics.Counter(observability.MLowStockAlerts),
	}
}

func (w *LowStockWorker) Start() {
	if w.subscriber == nil || w.stock == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderCreatedEvent{}.EventName(), w.handleOrderCreated)
}

func (w *LowStockWorker) handleOrderCreated(ctx context.Context, e domoutbox.Event) error {
	const useCase = "inventory.worker.low_stock"
	evt, ok := e.(domorder.OrderCreatedEvent)
	if !ok {
		w.in.Record(useCase, "ignored", 0)
		return nil
	}

	ctx, span := w.in.Tracer.Start(ctx, application.SpanPrefix+"LowStockCheck",
		attribute.String("use_case", useCase),
		attribute.String("event", e.EventName()),
		attribute.String("order.id", evt.OrderID),
	)
	start := time.Now()
	outcome, status := "success", "OK"
	var low []string

	fields := []observability.Field{
		observability.F("use_case", useCase),
		observability.F("event", e.EventName()),
		observability.F("order_id", evt.OrderID),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	ctx, logger := logctx.Enrich(ctx, w.in.Log, fields...)

	defer func() {
		lat := time.Since(start).Seconds()
		w.in.Record(useCase, outcome, lat)

		logger.Info("use_case_done",
			observability.F("outcome", outcome),
			observability.F("status", status),
			observability.F("latency_seconds", lat),
			observability.F("low_stock_products", len(low)),
		)

		if outcome == "error" {
			span.SetStatus(codes.Error, status)
		} else {
			span.SetStatus(codes.Ok, status)
		}
		span.End()
	}()

	seen := make(map[string]struct{}, len(evt.Lines))
	var firstErr error
	for _, line := range evt.Lines {
		if _, dup := seen[line.ProductID]; dup {
			continue
		}
		seen[line.ProductID] = struct{}{}

		left, err := w.stock.GetStock(ctx, line.ProductID)
		if err != nil {
			outcome, status = "error", "STOCK_LOOKUP_FAILED"
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if left > w.threshold {
			continue
		}
		low = append(low, line.ProductID)
		if w.alerts != nil {
			w.alerts.Add(1, observability.L("product_id", line.ProductID))
		}
		logger.Warn("low_stock",
			observability.F("product_id", line.ProductID),
			observability.F("product_name", line.Name),
			observability.F("stock_left", left),
			observability.F("threshold", w.threshold),
		)
	}
	if len(low) > 0 && outcome == "success" {
		status = "LOW_STOCK"
	}
	return firstErr
}
