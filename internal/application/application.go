package application

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/clubshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/Zhima-Mochi/clubshop/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

const (
	SpanPrefix     = "UC."
	PublishPeer    = "outbox"
	PublishTimeout = 300 * time.Millisecond
)

// Instruments bundles the logger, tracer and RED metrics a use case records.
// Built once at wiring time; never instantiate metrics inside Execute.
type Instruments struct {
	Log    observability.Logger
	Tracer observability.Tracer
	// Metrics gives access to domain-specific instruments.
	Metrics observability.Metrics

	ReqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	DurHistogram observability.Histogram // usecase_duration_seconds{use_case}
	ExtCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	ExtHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstruments(tel observability.Observability, service string) Instruments {
	baseLog := observability.NopLogger()
	tracer := observability.NopTracer()
	metricsProvider := observability.NopMetrics()
	if tel != nil {
		baseLog = tel.Logger()
		tracer = tel.Tracer()
		metricsProvider = tel.Metrics()
	}
	return Instruments{
		Log:          baseLog.With(observability.F("service", service)),
		Tracer:       tracer,
		Metrics:      metricsProvider,
		ReqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		DurHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
		ExtCounter:   metricsProvider.Counter(observability.MExternalRequests),
		ExtHistogram: metricsProvider.Histogram(observability.MExternalRequestDuration),
	}
}

// Record adds one use case outcome and its latency in seconds.
func (in Instruments) Record(useCase, outcome string, latency float64) {
	if in.ReqCounter != nil {
		in.ReqCounter.Add(1,
			observability.L("use_case", useCase),
			observability.L("outcome", outcome),
		)
	}
	if in.DurHistogram != nil {
		in.DurHistogram.Observe(latency,
			observability.L("use_case", useCase),
		)
	}
}

// Publish hands event to publisher with a short timeout. Events are
// best-effort: the returned error is for logging, never for failing the caller.
func (in Instruments) Publish(ctx context.Context, publisher domoutbox.Publisher, event domoutbox.Event) error {
	if publisher == nil || event == nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, PublishTimeout)
	start := time.Now()
	err := publisher.Publish(pubCtx, event)
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}
	cancel()

	if in.ExtCounter != nil {
		in.ExtCounter.Add(1,
			observability.L("peer", PublishPeer),
			observability.L("endpoint", event.EventName()),
			observability.L("outcome", outcome),
		)
	}
	if in.ExtHistogram != nil {
		in.ExtHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", PublishPeer),
			observability.L("endpoint", event.EventName()),
		)
	}
	return err
}

// Run brackets one use case execution: span, RED metrics and the final
// "use_case_done" log line. Obtain it with Instruments.Begin.
type Run struct {
	in      Instruments
	useCase string
	span    trace.Span
	start   time.Time
	log     observability.Logger
	status  string
	outcome string
	fields  []observability.Field
}

func (in Instruments) Begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	logger := logctx.FromOr(ctx, in.Log).With(observability.F("use_case", useCase))
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.Tracer.Start(ctx, SpanPrefix+spanName, attrs...)
	return ctx, &Run{
		in:      in,
		useCase: useCase,
		span:    span,
		start:   time.Now(),
		log:     logger,
		status:  "OK",
		outcome: "success",
	}
}

// Logger is the use case scoped logger.
func (r *Run) Logger() observability.Logger { return r.log }

// Span is the use case span.
func (r *Run) Span() trace.Span { return r.span }

// Fail marks the run as failed with a machine-readable status code.
func (r *Run) Fail(status string) {
	r.outcome, r.status = "error", status
}

// Status overrides the status text without changing the outcome.
func (r *Run) Status(status string) { r.status = status }

// With attaches fields to the closing log line.
func (r *Run) With(fields ...observability.Field) {
	r.fields = append(r.fields, fields...)
}

func (r *Run) End(err error) {
	if err != nil && r.outcome == "success" {
		r.outcome, r.status = "error", "UNEXPECTED_ERROR"
	}
	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, r.status)
	} else {
		r.span.SetStatus(codes.Ok, r.status)
	}
	r.span.End()

	lat := time.Since(r.start).Seconds()
	r.in.Record(r.useCase, r.outcome, lat)

	fields := append([]observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}, r.fields...)
	if sc := r.span.SpanContext(); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	if err != nil {
		fields = append(fields, observability.Err(err))
	}
	r.log.Info("use_case_done", fields...)
}
