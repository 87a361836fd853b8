package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics exposed on /metrics.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	calculationsTotal   *prometheus.CounterVec
	evaluations         prometheus.Histogram
	rateLimitedTotal    prometheus.Counter
	configReloads       *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates the metrics on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volcalc_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "volcalc_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		calculationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volcalc_calculations_total",
				Help: "Calculations served, by result code",
			},
			[]string{"code"},
		),

		evaluations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "volcalc_integrand_evaluations",
				Help:    "Integrand evaluations per successful calculation",
				Buckets: prometheus.ExponentialBuckets(900, 2, 12),
			},
		),

		rateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "volcalc_rate_limited_total",
				Help: "Calculation requests refused by the rate limiter",
			},
		),

		configReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volcalc_config_reloads_total",
				Help: "Configuration reloads applied to the server by status",
			},
			[]string{"status"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.calculationsTotal,
		m.evaluations,
		m.rateLimitedTotal,
		m.configReloads,
	)

	return m
}

// RecordCalculation counts a calculation outcome. code is "OK" on success.
func (m *Metrics) RecordCalculation(code string, evaluations int) {
	m.calculationsTotal.WithLabelValues(code).Inc()
	if evaluations > 0 {
		m.evaluations.Observe(float64(evaluations))
	}
}

// RecordRateLimited counts a refused request.
func (m *Metrics) RecordRateLimited() {
	m.rateLimitedTotal.Inc()
}

// RecordConfigReload records a configuration reload attempt
func (m *Metrics) RecordConfigReload(status string) {
	m.configReloads.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsMiddleware creates HTTP middleware that records request metrics
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		m.RecordHTTPRequest(r.Method, endpointName(r.URL.Path), strconv.Itoa(wrapped.statusCode), time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.written = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// endpointName keeps label cardinality bounded.
func endpointName(path string) string {
	switch path {
	case "/calculate":
		return "calculate"
	case "/examples":
		return "examples"
	case "/healthz":
		return "health"
	case "/metrics":
		return "metrics"
	default:
		return "unknown"
	}
}
