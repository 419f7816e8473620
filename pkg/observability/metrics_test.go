package observability

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if metrics.EventsTrackedTotal == nil || metrics.AggregationRunsTotal == nil || metrics.DashboardRequestsTotal == nil {
		t.Fatal("domain metrics not initialized")
	}

	t.Run("double registration panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic registering metrics twice on one registry")
			}
		}()
		NewMetrics(registry)
	})
}

func TestMetrics_DomainRecorders(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordEvent("tool_usage", nil)
	metrics.RecordEvent("tool_usage", nil)
	metrics.RecordEvent("page_view", errors.New("insert failed"))
	if got := testutil.ToFloat64(metrics.EventsTrackedTotal.WithLabelValues("tool_usage", "success")); got != 2 {
		t.Errorf("expected 2 successful tool_usage events, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.EventsTrackedTotal.WithLabelValues("page_view", "error")); got != 1 {
		t.Errorf("expected 1 failed page_view event, got %v", got)
	}

	metrics.RecordPopularUpsert("inserted")
	metrics.RecordPopularUpsert("updated")
	metrics.RecordPopularUpsert("updated")
	if got := testutil.ToFloat64(metrics.PopularURLUpsertsTotal.WithLabelValues("updated")); got != 2 {
		t.Errorf("expected 2 updates, got %v", got)
	}

	metrics.RecordAggregation(150*time.Millisecond, 4, nil)
	metrics.RecordAggregation(time.Second, 0, errors.New("read failed"))
	if got := testutil.ToFloat64(metrics.AggregationRunsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 successful run, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.AggregationRunsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed run, got %v", got)
	}

	metrics.RecordDashboard("realtime", 20*time.Millisecond)
	if got := testutil.ToFloat64(metrics.DashboardRequestsTotal.WithLabelValues("realtime")); got != 1 {
		t.Errorf("expected 1 realtime dashboard, got %v", got)
	}

	metrics.RecordCache("lru", true)
	metrics.RecordCache("redis", false)
	if got := testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("lru")); got != 1 {
		t.Errorf("expected 1 lru hit, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("redis")); got != 1 {
		t.Errorf("expected 1 redis miss, got %v", got)
	}

	metrics.UpdateDBStats(sql.DBStats{InUse: 3, Idle: 2, WaitCount: 7, WaitDuration: 2 * time.Second})
	if got := testutil.ToFloat64(metrics.DBConnectionsActive); got != 3 {
		t.Errorf("expected 3 active connections, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.DBConnectionsWaitDuration); got != 2 {
		t.Errorf("expected 2s wait duration, got %v", got)
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	var metrics *Metrics
	metrics.RecordEvent("tool_usage", nil)
	metrics.RecordPopularUpsert("updated")
	metrics.RecordAggregation(time.Second, 1, nil)
	metrics.RecordDashboard("aggregates", time.Second)
	metrics.RecordCache("lru", true)
	metrics.UpdateDBStats(sql.DBStats{})
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusAccepted)
	n, err := rw.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	if n != 5 || rw.bytesWritten != 5 {
		t.Errorf("expected 5 bytes written, got %d", rw.bytesWritten)
	}
	if rw.statusCode != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", rw.statusCode)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/api/v1/analytics/dashboard", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"days"}`))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/dashboard?days=0", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/analytics/dashboard", "400"))
	if got != 1 {
		t.Errorf("expected 1 request recorded with route template label, got %v", got)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.RecordEvent("share", nil)

	router := mux.NewRouter()
	RegisterMetricsEndpoint(router, registry)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "seotools_events_tracked_total") {
		t.Error("metrics output missing seotools_events_tracked_total")
	}
}
