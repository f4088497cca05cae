package middlewares

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/dropDatabas3/authgrid/internal/observability/logger"
	"github.com/dropDatabas3/authgrid/internal/rate"
)

// RateKeyFunc derives the limiter key for a request.
type RateKeyFunc func(r *http.Request) string

// IPRateKey keys by client ip only.
func IPRateKey(r *http.Request) string {
	return clientIP(r)
}

// IPAndClientRateKey keys by ip plus the client_id form/query value, so one
// noisy client does not starve others behind the same NAT.
func IPAndClientRateKey(r *http.Request) string {
	clientID := r.FormValue("client_id")
	if clientID == "" {
		clientID = "-"
	}
	return clientIP(r) + ":" + clientID
}

// RateLimitConfig configures WithRateLimit.
type RateLimitConfig struct {
	Limiter rate.Limiter
	KeyFunc RateKeyFunc
}

// WithRateLimit rejects over-limit requests with 429 and a Retry-After.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	keyFn := cfg.KeyFunc
	if keyFn == nil {
		keyFn = IPRateKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			res, err := cfg.Limiter.Allow(r.Context(), keyFn(r))
			if err != nil {
				// limiter trouble never blocks traffic
				logger.From(r.Context()).Warn("rate limiter error", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				secs := int(res.RetryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"slow_down"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the originating ip, preferring forwarding headers set by
// the edge proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if rip := r.Header.Get("X-Real-Ip"); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
