package prometrics

import (
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Instruments registers every metric the shop emits and returns them keyed
// for observability.New.
func Instruments(r Registry) (map[observability.MetricKey]observability.Counter, map[observability.MetricKey]observability.Histogram) {
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: r.Counter(string(observability.MUsecaseRequests),
			"Total number of use case invocations.", "use_case", "outcome"),
		observability.MHTTPRequests: r.Counter(string(observability.MHTTPRequests),
			"Total number of HTTP requests.", "method", "route", "status"),
		observability.MExternalRequests: r.Counter(string(observability.MExternalRequests),
			"Calls to collaborators outside the process boundary.", "peer", "endpoint", "outcome"),
		observability.MStockReservations: r.Counter(string(observability.MStockReservations),
			"Order reservation attempts by outcome.", "outcome"),
		observability.MStockInconsistency: r.Counter(string(observability.MStockInconsistency),
			"Stock compensations or releases that could not be applied.", "operation"),
		observability.MLowStockAlerts: r.Counter(string(observability.MLowStockAlerts),
			"Products that fell to or below the low stock threshold after an order.", "product_id"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: r.Histogram(string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.", prometheus.DefBuckets, "use_case"),
		observability.MHTTPRequestDuration: r.Histogram(string(observability.MHTTPRequestDuration),
			"Duration of HTTP requests in seconds.", prometheus.DefBuckets, "method", "route", "status"),
		observability.MExternalRequestDuration: r.Histogram(string(observability.MExternalRequestDuration),
			"Duration of calls to external collaborators in seconds.", prometheus.DefBuckets, "peer", "endpoint"),
	}
	return counters, histograms
}
