package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Resolution metrics
	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration prometheus.Histogram
	CacheLookupsTotal  *prometheus.CounterVec
	RefreshesTotal     *prometheus.CounterVec
	StoreErrorsTotal   *prometheus.CounterVec

	// Audit metrics
	AuditEntriesTotal       *prometheus.CounterVec
	AuditWriteFailuresTotal *prometheus.CounterVec

	// Refresher metrics
	SweepMembershipsTotal *prometheus.CounterVec
	SweepDuration         prometheus.Histogram
}

// NewMetrics creates and registers all metrics on registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitle_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entitle_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitle_resolutions_total",
				Help: "Permission resolutions by outcome",
			},
			[]string{"outcome"},
		),
		ResolutionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "entitle_resolution_duration_seconds",
				Help:    "Full five-source resolution latency",
				Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitle_cache_lookups_total",
				Help: "Resolution cache lookups by result (hit, stale, empty)",
			},
			[]string{"result"},
		),
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitle_refreshes_total",
				Help: "Persisted cache refreshes by outcome",
			},
			[]string{"outcome"},
		),
		StoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitle_store_errors_total",
				Help: "Store failures by permission source",
			},
			[]string{"source"},
		),
		AuditEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitle_audit_entries_total",
				Help: "Audit entries recorded by action",
			},
			[]string{"action"},
		),
		AuditWriteFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitle_audit_write_failures_total",
				Help: "Audit writes that failed, by sink",
			},
			[]string{"sink"},
		),
		SweepMembershipsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitle_sweep_memberships_total",
				Help: "Memberships processed by the stale cache sweeper",
			},
			[]string{"outcome"},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "entitle_sweep_duration_seconds",
				Help:    "Stale cache sweep duration",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ResolutionsTotal,
		m.ResolutionDuration,
		m.CacheLookupsTotal,
		m.RefreshesTotal,
		m.StoreErrorsTotal,
		m.AuditEntriesTotal,
		m.AuditWriteFailuresTotal,
		m.SweepMembershipsTotal,
		m.SweepDuration,
	)

	return m
}

// ObserveResolution records one resolver call
func (m *Metrics) ObserveResolution(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(outcome).Inc()
	m.ResolutionDuration.Observe(d.Seconds())
}

// CacheLookup records a cache lookup result
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// Refresh records a persisted refresh
func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(outcome).Inc()
}

// StoreError records a failed source read
func (m *Metrics) StoreError(source string) {
	if m == nil {
		return
	}
	m.StoreErrorsTotal.WithLabelValues(source).Inc()
}

// AuditRecorded records a successfully written audit entry
func (m *Metrics) AuditRecorded(action string) {
	if m == nil {
		return
	}
	m.AuditEntriesTotal.WithLabelValues(action).Inc()
}

// AuditFailure records a failed audit write
func (m *Metrics) AuditFailure(sink string) {
	if m == nil {
		return
	}
	m.AuditWriteFailuresTotal.WithLabelValues(sink).Inc()
}

// ObserveSweep records one sweeper run
func (m *Metrics) ObserveSweep(refreshed, failed int, d time.Duration) {
	if m == nil {
		return
	}
	m.SweepMembershipsTotal.WithLabelValues("refreshed").Add(float64(refreshed))
	m.SweepMembershipsTotal.WithLabelValues("failed").Add(float64(failed))
	m.SweepDuration.Observe(d.Seconds())
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments requests. The path label uses the mux route
// template so IDs do not explode label cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					path = tmpl
				}
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
