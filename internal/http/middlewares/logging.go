package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/authgrid/internal/metrics"
	"github.com/dropDatabas3/authgrid/internal/observability/logger"
)

// statusRecorder captures the status code and byte count for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// WithLogging emits one access-log line per request and feeds the latency
// histogram. It also pushes the request-scoped logger into the context so
// lower layers log with the request id attached.
func WithLogging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			log := logger.L().With(
				logger.RequestID(RequestID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
			)
			ctx := logger.ToContext(r.Context(), log)

			next.ServeHTTP(rec, r.WithContext(ctx))

			elapsed := time.Since(start)
			log.Info("request",
				logger.Status(rec.status),
				logger.DurationMs(elapsed.Milliseconds()),
				logger.Bytes(rec.bytes),
				logger.ClientIP(clientIP(r)),
			)
			metrics.HTTPDuration.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status/100*100)).
				Observe(elapsed.Seconds())
		})
	}
}
