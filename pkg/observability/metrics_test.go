package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	m.ObserveResolution("ok", 2*time.Millisecond)
	m.CacheLookup("hit")
	m.CacheLookup("hit")
	m.CacheLookup("stale")
	m.Refresh("ok")
	m.StoreError("addons")
	m.AuditRecorded("role_assigned")
	m.AuditFailure("redis")
	m.ObserveSweep(3, 1, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrorsTotal.WithLabelValues("addons")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditWriteFailuresTotal.WithLabelValues("redis")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SweepMembershipsTotal.WithLabelValues("refreshed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepMembershipsTotal.WithLabelValues("failed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveResolution("ok", time.Millisecond)
		m.CacheLookup("hit")
		m.Refresh("error")
		m.StoreError("roles")
		m.AuditRecorded("x")
		m.AuditFailure("store")
		m.ObserveSweep(1, 0, time.Second)
	})
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/orgs/{org_id}/permissions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/orgs/org-1/permissions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues("GET", "/orgs/{org_id}/permissions", "418")))
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.CacheLookup("hit")

	rec := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `entitle_cache_lookups_total{result="hit"} 1`))
}
