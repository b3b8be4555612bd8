// Package observability assembles the zap, OpenTelemetry and Prometheus
// adapters behind the observability.Observability port.
package observability

import (
	"github.com/Zhima-Mochi/clubshop/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/clubshop/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/clubshop/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

func (p provider) Tracer() observability.Tracer   { return p.tracer }
func (p provider) Logger() observability.Logger   { return p.logger }
func (p provider) Metrics() observability.Metrics { return p.metrics }

// instrumentSet serves the instruments registered at startup.
type instrumentSet struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func (s instrumentSet) Counter(name observability.MetricKey) observability.Counter {
	if c := s.counters[name]; c != nil {
		return c
	}
	return observability.NopCounter()
}

func (s instrumentSet) Histogram(name observability.MetricKey) observability.Histogram {
	if h := s.histograms[name]; h != nil {
		return h
	}
	return observability.NopHistogram()
}

// Setup registers every shop metric on reg and pairs it with a zap-backed
// logger and an OpenTelemetry tracer named after service. It also installs
// W3C propagation.
func Setup(service string, zl *zap.Logger, reg prometheus.Registerer) observability.Observability {
	oteltrace.UsePropagation()
	counters, histograms := prometrics.Instruments(prometrics.New("", "", reg))
	return New(oteltrace.New(service), zaplogger.New(zl), counters, histograms)
}

// New assembles a provider. Nil parts become no-ops, and so do metric keys
// that were never registered.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) observability.Observability {
	p := provider{tracer: tracer, logger: logger, metrics: observability.NopMetrics()}
	if p.tracer == nil {
		p.tracer = observability.NopTracer()
	}
	if p.logger == nil {
		p.logger = observability.NopLogger()
	}
	if len(counters) > 0 || len(histograms) > 0 {
		p.metrics = instrumentSet{counters: counters, histograms: histograms}
	}
	return p
}
