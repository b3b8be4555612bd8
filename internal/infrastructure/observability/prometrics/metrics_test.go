package prometrics

import (
	"testing"

	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterIsRegisteredOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New("", "", reg)

	a := r.Counter("stock_inconsistency_total", "help", "operation")
	b := r.Counter("stock_inconsistency_total", "help", "operation")
	a.Add(1, observability.L("operation", "compensate"))
	b.Bind(observability.L("operation", "release")).Add(2)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "stock_inconsistency_total", families[0].GetName())
	assert.Len(t, families[0].GetMetric(), 2)
}

func TestInstrumentsCoverEveryKey(t *testing.T) {
	reg := prometheus.NewRegistry()
	counters, histograms := Instruments(New("", "", reg))

	for _, key := range []observability.MetricKey{
		observability.MUsecaseRequests,
		observability.MHTTPRequests,
		observability.MExternalRequests,
		observability.MStockReservations,
		observability.MStockInconsistency,
		observability.MLowStockAlerts,
	} {
		assert.Contains(t, counters, key)
	}
	for _, key := range []observability.MetricKey{
		observability.MUsecaseDuration,
		observability.MHTTPRequestDuration,
		observability.MExternalRequestDuration,
	} {
		assert.Contains(t, histograms, key)
	}

	counters[observability.MStockReservations].Add(1, observability.L("outcome", "reserved"))
	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "stock_reservations_total" {
			found = true
			require.Len(t, f.GetMetric(), 1)
			assert.Equal(t, float64(1), f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}

func TestMissingAndUnknownLabelsDoNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New("", "", reg).Counter("external_requests_total", "help", "peer", "endpoint", "outcome")

	assert.NotPanics(t, func() {
		c.Add(1, observability.L("peer", "kafka"), observability.L("tenant", "x"))
	})

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	got := map[string]string{}
	for _, lp := range families[0].GetMetric()[0].GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	assert.Equal(t, map[string]string{"peer": "kafka", "endpoint": missingLabel, "outcome": missingLabel}, got)
}

func TestRegistriesShareRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New("", "", reg).Counter("low_stock_alerts_total", "help", "product_id")
	b := New("", "", reg).Counter("low_stock_alerts_total", "help", "product_id")

	a.Add(1, observability.L("product_id", "ball"))
	b.Add(1, observability.L("product_id", "ball"))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, float64(2), families[0].GetMetric()[0].GetCounter().GetValue())
}
