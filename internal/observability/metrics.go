package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	entriesIngested *prometheus.CounterVec
	entriesReviewed *prometheus.CounterVec
	reportExports   prometheus.Counter
}

// NewMetrics initialises the registry with HTTP and payroll collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitepay_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sitepay_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	ingested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitepay_entries_ingested_total",
		Help: "Payroll entries stored, by initial review state.",
	}, []string{"state"})
	reviewed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitepay_entries_reviewed_total",
		Help: "Payroll entries marked reviewed, by previous state.",
	}, []string{"from"})
	exports := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sitepay_report_exports_total",
		Help: "Daily report CSV exports served.",
	})
	registry.MustRegister(requests, duration, ingested, reviewed, exports)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		entriesIngested: ingested,
		entriesReviewed: reviewed,
		reportExports:   exports,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// EntryIngested counts a stored entry.
func (m *Metrics) EntryIngested(state string) {
	if m == nil {
		return
	}
	m.entriesIngested.WithLabelValues(state).Inc()
}

// EntryReviewed counts a review transition.
func (m *Metrics) EntryReviewed(from string) {
	if m == nil {
		return
	}
	m.entriesReviewed.WithLabelValues(from).Inc()
}

// ReportExported counts a served CSV export.
func (m *Metrics) ReportExported() {
	if m == nil {
		return
	}
	m.reportExports.Inc()
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
