package observability

type MetricKey string

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"

	// stock_reservations_total{outcome}
	MStockReservations MetricKey = "stock_reservations_total"
	// stock_inconsistency_total{operation}; any increment needs a human.
	MStockInconsistency MetricKey = "stock_inconsistency_total"
	// low_stock_alerts_total{product_id}
	MLowStockAlerts MetricKey = "low_stock_alerts_total"
)
