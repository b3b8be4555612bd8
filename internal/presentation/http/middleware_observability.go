package httppresentation

import (
	"net/http"

	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/Zhima-Mochi/clubshop/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// ObservabilityMiddleware puts a request logger on the context and echoes
// X-Request-ID. It expects the server span to be started already, so the
// logger carries the trace and span of this request.
func ObservabilityMiddleware(
	base observability.Logger,
	requestID func(*http.Request) string,
	tel observability.Observability,
) func(http.Handler) http.Handler {
	if base == nil && tel != nil {
		base = tel.Logger()
	}
	if base == nil {
		base = observability.NopLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var rid string
			if requestID != nil {
				rid = requestID(r)
			}
			if rid == "" {
				rid = uuid.NewString()
			}
			w.Header().Set(headerRequestID, rid)

			ctx, _ := logctx.Enrich(r.Context(), base, requestFields(r, rid)...)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestFields(r *http.Request, rid string) []observability.Field {
	fields := []observability.Field{
		observability.F("request_id", rid),
		observability.F("method", r.Method),
	}
	if key := r.Header.Get(headerIdempotencyKey); key != "" {
		fields = append(fields, observability.F("idempotency_key", key))
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	return fields
}

// statusRecorder remembers the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
