package observability

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetupWiresPrometheusAndZap(t *testing.T) {
	reg := prometheus.NewRegistry()
	core, logs := observer.New(zapcore.InfoLevel)
	obs := Setup("clubshop-test", zap.New(core), reg)

	obs.Metrics().Counter(observability.MStockReservations).Add(2, observability.L("outcome", "reserved"))
	obs.Logger().Info("use_case_done", observability.F("use_case", "order.create"))

	families, err := reg.Gather()
	require.NoError(t, err)
	var found float64
	for _, mf := range families {
		if mf.GetName() != string(observability.MStockReservations) {
			continue
		}
		for _, m := range mf.GetMetric() {
			found += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(2), found)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "order.create", logs.All()[0].ContextMap()["use_case"])

	ctx, span := obs.Tracer().Start(context.Background(), "UC.Test")
	assert.NotNil(t, ctx)
	span.End()
}

func TestNewFallsBackToNops(t *testing.T) {
	obs := New(nil, nil, nil, nil)

	assert.NotPanics(t, func() {
		obs.Logger().Info("ignored")
		obs.Metrics().Counter(observability.MHTTPRequests).Add(1)
		obs.Metrics().Histogram(observability.MHTTPRequestDuration).Observe(0.1)
		_, span := obs.Tracer().Start(context.Background(), "noop")
		span.End()
	})
}

type countingCounter struct{ total float64 }

func (c *countingCounter) Add(delta float64, _ ...observability.Label) { c.total += delta }
func (c *countingCounter) Bind(...observability.Label) observability.BoundCounter {
	return observability.NopCounter().Bind()
}

func TestNewResolvesRegisteredKeysOnly(t *testing.T) {
	c := &countingCounter{}
	obs := New(nil, nil, map[observability.MetricKey]observability.Counter{
		observability.MLowStockAlerts: c,
	}, nil)

	obs.Metrics().Counter(observability.MLowStockAlerts).Add(1)
	obs.Metrics().Counter(observability.MStockInconsistency).Add(5)

	assert.Equal(t, float64(1), c.total)
}
