package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the prometheus registry and the share-service metrics.
//
// Outcome labels carry the internal reason tags (not_found, forbidden,
// expired, ...) that the HTTP layer deliberately collapses into one
// client-visible status; telemetry is the only place the distinction exists.
type Manager struct {
	registry *prometheus.Registry

	shareOpsTotal       *prometheus.CounterVec
	resolveTotal        *prometheus.CounterVec
	issuerFailuresTotal prometheus.Counter

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a manager with a private registry
func NewManager() *Manager {
	m := &Manager{
		registry: prometheus.NewRegistry(),

		shareOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pixshare",
				Name:      "share_operations_total",
				Help:      "Share link lifecycle operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		resolveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pixshare",
				Name:      "resolve_total",
				Help:      "Capability resolutions by outcome",
			},
			[]string{"outcome"},
		),
		issuerFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pixshare",
				Name:      "issuer_failures_total",
				Help:      "Presigned URL issuance failures",
			},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pixshare",
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, path and status",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pixshare",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	m.registry.MustRegister(
		m.shareOpsTotal,
		m.resolveTotal,
		m.issuerFailuresTotal,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)

	return m
}

// RecordShareOp counts a lifecycle operation outcome
func (m *Manager) RecordShareOp(operation, outcome string) {
	m.shareOpsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordResolve counts a resolution outcome
func (m *Manager) RecordResolve(outcome string) {
	m.resolveTotal.WithLabelValues(outcome).Inc()
	if outcome == "issuer_failure" {
		m.issuerFailuresTotal.Inc()
	}
}

// Handler returns the prometheus exposition handler
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies
func (m *Manager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &statusRecorder{ResponseWriter: w, statusCode: 200}
			next.ServeHTTP(wrapped, r)

			m.httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapped.statusCode)).Inc()
			m.httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
