// Package metrics provides Prometheus metrics for the inventory health service.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "inventory_health"

// Metrics holds all Prometheus metrics.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	requestsInFlight   prometheus.Gauge
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	lastVerdict        *prometheus.GaugeVec
	checkFailures      *prometheus.CounterVec
	peerCalls          *prometheus.CounterVec
	peerCallDuration   *prometheus.HistogramVec
	breakerState       *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates the metrics and registers them with reg. A
// *prometheus.Registry is also used as the gatherer behind Handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"method", "route"},
		),
		requestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		evaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of system health evaluations",
			},
			[]string{"kind", "healthy"},
		),
		evaluationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of a system health evaluation in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 90},
			},
			[]string{"kind"},
		),
		lastVerdict: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "system_healthy",
				Help:      "Outcome of the latest evaluation (1 = healthy, 0 = unhealthy)",
			},
			[]string{"kind"},
		),
		checkFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "check_failures_total",
				Help:      "Total number of failed health checks",
			},
			[]string{"check"},
		),
		peerCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "peer_requests_total",
				Help:      "Total number of requests to peer services",
			},
			[]string{"service", "outcome"},
		),
		peerCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "peer_request_duration_seconds",
				Help:      "Peer service request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"service"},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "peer_breaker_state",
				Help:      "Circuit breaker state per peer service (0 = closed, 1 = open, 2 = half-open)",
			},
			[]string{"service"},
		),
	}

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}

	return m
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveEvaluation records one finished evaluation.
func (m *Metrics) ObserveEvaluation(kind string, healthy bool, duration time.Duration) {
	m.evaluationsTotal.WithLabelValues(kind, strconv.FormatBool(healthy)).Inc()
	m.evaluationDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if healthy {
		m.lastVerdict.WithLabelValues(kind).Set(1)
	} else {
		m.lastVerdict.WithLabelValues(kind).Set(0)
	}
}

// ObserveCheck counts failed checks; passing checks are not recorded.
func (m *Metrics) ObserveCheck(check string, ok bool) {
	if ok {
		return
	}
	m.checkFailures.WithLabelValues(check).Inc()
}

// RecordCall records one request to a peer service.
func (m *Metrics) RecordCall(service, outcome string, duration time.Duration) {
	m.peerCalls.WithLabelValues(service, outcome).Inc()
	m.peerCallDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// SetBreakerState publishes a breaker transition. Unknown states are ignored.
func (m *Metrics) SetBreakerState(service, state string) {
	var v float64
	switch state {
	case "closed":
		v = 0
	case "open":
		v = 1
	case "half-open":
		v = 2
	default:
		return
	}
	m.breakerState.WithLabelValues(service).Set(v)
}

// Handler serves the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// MetricsServer provides a separate HTTP server for Prometheus metrics.
type MetricsServer struct {
	server *http.Server
	logger *zap.Logger
}

// NewMetricsServer creates a new metrics server.
func NewMetricsServer(port int, path string, m *Metrics, logger *zap.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start starts the metrics server.
func (ms *MetricsServer) Start() error {
	ms.logger.Info("starting metrics server", zap.String("addr", ms.server.Addr))
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

// MetricsMiddleware creates middleware that records HTTP metrics. Requests
// are labelled by their mux route template to keep cardinality bounded.
func MetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.requestsInFlight.Inc()
			defer m.requestsInFlight.Dec()

			start := time.Now()
			rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			m.RecordHTTPRequest(r.Method, routeLabel(r), rw.statusCode, time.Since(start))
		})
	}
}

func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code.
func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
