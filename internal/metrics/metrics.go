// Package metrics provides Prometheus instrumentation for the pricing service.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QuotesTotal counts computed quotes by terminal solver state.
	QuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landedcost_quotes_total",
		Help: "Total number of quotes computed, by solver state",
	}, []string{"state"})

	// QuoteErrors counts requests that failed before a quote was produced.
	QuoteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landedcost_quote_errors_total",
		Help: "Quote requests rejected or failed, by error code",
	}, []string{"code"})

	// SolverIterations is the distribution of fixed-point passes per quote.
	SolverIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "landedcost_solver_iterations",
		Help:    "Fixed-point iterations per quote",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 12, 15, 20},
	})

	// ReferenceMisses counts lookups that found no reference row, by table.
	ReferenceMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landedcost_reference_misses_total",
		Help: "Reference-data lookups with no matching row",
	}, []string{"table"})

	// WebSocketClients tracks connected quote-feed clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "landedcost_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landedcost_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "landedcost_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern keeps the path label bounded by using the matched chi route.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
