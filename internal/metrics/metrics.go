// Package metrics exposes the prometheus collectors for series queries,
// loading and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expseries_queries_total",
			Help: "Total number of series evaluations.",
		},
		[]string{"series", "mode"},
	)

	clampedQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expseries_clamped_queries_total",
			Help: "Queries whose time fell outside the sampled window and was clamped.",
		},
		[]string{"series", "edge"},
	)

	extrapolatedQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expseries_extrapolated_queries_total",
			Help: "Orientation queries answered by pre-start extrapolation.",
		},
		[]string{"mode"},
	)

	loadDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "expseries_load_duration_seconds",
			Help:    "Time spent loading and building a series.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"series"},
	)

	splinesBuilt = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "expseries_splines",
			Help: "Number of fitted splines held by a series.",
		},
		[]string{"series"},
	)

	sessionAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "expseries_session_age_seconds",
			Help: "Seconds since the current session was loaded.",
		},
	)

	reloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expseries_reloads_total",
			Help: "Session reload attempts by result.",
		},
		[]string{"result"},
	)

	streamConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "expseries_stream_connections",
			Help: "Open SSE sweep connections.",
		},
	)

	streamEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "expseries_stream_events_total",
			Help: "SSE sweep events written.",
		},
	)

	streamRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "expseries_stream_rejected_total",
			Help: "SSE sweep connections rejected by the per-client limit.",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expseries_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "expseries_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(
		queriesTotal,
		clampedQueriesTotal,
		extrapolatedQueriesTotal,
		loadDurationSeconds,
		splinesBuilt,
		sessionAgeSeconds,
		reloadsTotal,
		streamConnections,
		streamEventsTotal,
		streamRejectedTotal,
		httpRequestsTotal,
		httpDurationSeconds,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Query counts one evaluation of a series in the given interpolation mode.
func Query(series, mode string) {
	queriesTotal.WithLabelValues(series, mode).Inc()
}

// Clamped counts a query clamped at the given edge ("before" or "after").
func Clamped(series, edge string) {
	clampedQueriesTotal.WithLabelValues(series, edge).Inc()
}

// Extrapolated counts a pre-start orientation query.
func Extrapolated(mode string) {
	extrapolatedQueriesTotal.WithLabelValues(mode).Inc()
}

// Loaded records how long building a series took.
func Loaded(series string, d time.Duration) {
	loadDurationSeconds.WithLabelValues(series).Observe(d.Seconds())
}

// Splines sets the number of splines a series holds.
func Splines(series string, n int) {
	splinesBuilt.WithLabelValues(series).Set(float64(n))
}

// SetSessionAge sets the age of the current session.
func SetSessionAge(seconds float64) { sessionAgeSeconds.Set(seconds) }

// Reloaded counts a reload attempt; result is "ok" or "error".
func Reloaded(ok bool) {
	if ok {
		reloadsTotal.WithLabelValues("ok").Inc()
		return
	}
	reloadsTotal.WithLabelValues("error").Inc()
}

// StreamOpened and StreamClosed track open sweep connections.
func StreamOpened() { streamConnections.Inc() }
func StreamClosed() { streamConnections.Dec() }

// StreamEvent counts one written sweep event.
func StreamEvent() { streamEventsTotal.Inc() }

// StreamRejected counts a sweep refused by the per-client limit.
func StreamRejected() { streamRejectedTotal.Inc() }

// knownRoutes are the exact paths served; anything else is labelled "other"
// so that scanners cannot blow up label cardinality.
var knownRoutes = map[string]struct{}{
	"/":                             {},
	"/healthz":                      {},
	"/readyz":                       {},
	"/metrics":                      {},
	"/api/v1/center":                {},
	"/api/v1/velocity":              {},
	"/api/v1/coefficients":          {},
	"/api/v1/series":                {},
	"/api/v1/reload":                {},
	"/api/v1/transform/spherical":   {},
	"/api/v1/transform/cylindrical": {},
	"/api/v1/transform/forces":      {},
	"/api/v1/stream/centers":        {},
}

func normalizeRoute(path string) string {
	if _, ok := knownRoutes[path]; ok {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so SSE handlers keep streaming.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
