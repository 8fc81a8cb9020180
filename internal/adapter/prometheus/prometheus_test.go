package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/ports"
)

func TestPrometheusAdapter_counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	adapter := NewPrometheusAdapter(reg).(*PrometheusAdapter)

	adapter.IncrementCounter(ports.MetricUpstreamRequestsTotal, map[string]string{"provider": "openf1", "outcome": "ok"})
	adapter.IncrementCounter(ports.MetricUpstreamRequestsTotal, map[string]string{"provider": "openf1", "outcome": "ok"})
	adapter.IncrementCounter(ports.MetricRefreshJobRunsTotal, map[string]string{"job": "live", "outcome": "skipped"})
	adapter.RecordDuration(ports.MetricRefreshJobDuration, time.Second, map[string]string{"job": "live", "outcome": "skipped"})

	if got := testutil.ToFloat64(adapter.upstreamRequestsTotal.WithLabelValues("openf1", "ok", defaultAppName)); got != 2 {
		t.Fatalf("upstream counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(adapter.jobRunsTotal.WithLabelValues("live", "skipped", defaultAppName)); got != 1 {
		t.Fatalf("job counter = %v, want 1", got)
	}
}

func TestPrometheusAdapter_RecordMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	adapter := NewPrometheusAdapter(reg).(*PrometheusAdapter)

	router := gin.New()
	router.GET("/getMeetings", func(c *gin.Context) {
		start := time.Now()
		defer adapter.RecordMetrics(c, start)
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/getMeetings?year=2026", nil))

	if got := testutil.ToFloat64(adapter.httpRequestsTotal.WithLabelValues("/getMeetings", "GET", "200", defaultAppName)); got != 1 {
		t.Fatalf("http counter = %v, want 1", got)
	}
}
