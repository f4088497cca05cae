// Package metrics exposes the server's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GrantRequests counts token endpoint requests by grant type and outcome.
	GrantRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authgrid",
		Subsystem: "oauth",
		Name:      "grant_requests_total",
		Help:      "Token endpoint requests by grant type and result.",
	}, []string{"grant_type", "result"})

	// TokensIssued counts issued tokens by kind (access, refresh).
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authgrid",
		Subsystem: "oauth",
		Name:      "tokens_issued_total",
		Help:      "Tokens issued by kind.",
	}, []string{"kind"})

	// OAuthErrors counts protocol errors by error code.
	OAuthErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authgrid",
		Subsystem: "oauth",
		Name:      "errors_total",
		Help:      "OAuth protocol errors by error code.",
	}, []string{"code"})

	// RefreshReuseDetected counts refresh token reuse events (lineage kills).
	RefreshReuseDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "authgrid",
		Subsystem: "oauth",
		Name:      "refresh_reuse_detected_total",
		Help:      "Refresh token reuse detections.",
	})

	// DevicePolls counts device token polls by state returned.
	DevicePolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authgrid",
		Subsystem: "oauth",
		Name:      "device_polls_total",
		Help:      "Device flow polls by returned state.",
	}, []string{"state"})

	// HTTPDuration observes request latency by route and status class.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "authgrid",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})
)
