package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transport metrics

	// APIRequestsTotal tracks outbound admin API requests
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "accesshub",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total outbound admin API requests",
		},
		[]string{"method", "status_class"}, // status_class: 2xx, 4xx, 5xx, error
	)

	// APIRequestDuration tracks outbound request duration
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "accesshub",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Outbound admin API request duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// TokenRefreshTotal tracks session refresh attempts by outcome
	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "accesshub",
			Subsystem: "api",
			Name:      "token_refresh_total",
			Help:      "Session token refresh attempts",
		},
		[]string{"outcome"}, // outcome: success, failure
	)

	// CircuitBreakerStateGauge tracks the transport circuit breaker state
	CircuitBreakerStateGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "accesshub",
			Subsystem: "api",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)

	// CircuitBreakerTrips counts breaker transitions into the open state
	CircuitBreakerTrips = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "accesshub",
			Subsystem: "api",
			Name:      "circuit_breaker_trips_total",
			Help:      "Total circuit breaker trips",
		},
	)

	// Resource container metrics

	// ResourceActionsTotal tracks container actions by outcome
	ResourceActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "accesshub",
			Subsystem: "resource",
			Name:      "actions_total",
			Help:      "Resource container actions",
		},
		[]string{"resource", "action", "result"}, // result: success, failure, rolled_back
	)

	// FetchSuppressedTotal tracks fetches that never reached the network
	FetchSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "accesshub",
			Subsystem: "resource",
			Name:      "fetch_suppressed_total",
			Help:      "Fetches suppressed before reaching the network",
		},
		[]string{"resource", "reason"}, // reason: dedup, debounce, stale
	)

	// FetchDuration tracks page fetch duration per resource
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "accesshub",
			Subsystem: "resource",
			Name:      "fetch_duration_seconds",
			Help:      "Page fetch duration per resource",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"resource"},
	)
)

// CircuitBreakerState constants
const (
	CircuitBreakerClosed   = 0
	CircuitBreakerOpen     = 1
	CircuitBreakerHalfOpen = 2
)

// StatusClass buckets an HTTP status for the requests counter.
func StatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "other"
	}
}
