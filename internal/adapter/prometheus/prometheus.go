package prometheus

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/ports"
)

const defaultAppName = "f1_dashboard_cache"

type PrometheusAdapter struct {
	appName string

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	upstreamRequestsTotal *prometheus.CounterVec
	jobRunsTotal          *prometheus.CounterVec
	jobDuration           *prometheus.HistogramVec
	rateLimitedTotal      *prometheus.CounterVec
	cacheWritesTotal      *prometheus.CounterVec
}

func NewPrometheusAdapter(reg prometheus.Registerer) ports.MetricsPort {
	adapter := &PrometheusAdapter{
		appName: defaultAppName,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricHTTPRequestsTotal,
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status", "app_name"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    ports.MetricHTTPRequestDuration,
				Help:    "Duration API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method", "status", "app_name"},
		),
		upstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricUpstreamRequestsTotal,
				Help: "Upstream provider requests by outcome",
			},
			[]string{"provider", "outcome", "app_name"},
		),
		jobRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricRefreshJobRunsTotal,
				Help: "Background refresh job invocations by outcome",
			},
			[]string{"job", "outcome", "app_name"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    ports.MetricRefreshJobDuration,
				Help:    "Duration of background refresh jobs",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"job", "outcome", "app_name"},
		),
		rateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricIPRateLimitedTotal,
				Help: "Requests rejected by the per-IP limiter",
			},
			[]string{"path", "app_name"},
		),
		cacheWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricCacheWritesTotal,
				Help: "Durable cache writes by resource and outcome",
			},
			[]string{"resource", "outcome", "app_name"},
		),
	}

	reg.MustRegister(
		adapter.httpRequestsTotal,
		adapter.httpRequestDuration,
		adapter.upstreamRequestsTotal,
		adapter.jobRunsTotal,
		adapter.jobDuration,
		adapter.rateLimitedTotal,
		adapter.cacheWritesTotal,
	)

	adapter.httpRequestsTotal.WithLabelValues("/health", "GET", "200", adapter.appName).Add(0)
	return adapter
}

func (p *PrometheusAdapter) IncrementCounter(name string, labels map[string]string) {
	switch name {
	case ports.MetricHTTPRequestsTotal:
		p.httpRequestsTotal.WithLabelValues(labels["path"], labels["method"], labels["status"], p.appName).Inc()
	case ports.MetricUpstreamRequestsTotal:
		p.upstreamRequestsTotal.WithLabelValues(labels["provider"], labels["outcome"], p.appName).Inc()
	case ports.MetricRefreshJobRunsTotal:
		p.jobRunsTotal.WithLabelValues(labels["job"], labels["outcome"], p.appName).Inc()
	case ports.MetricIPRateLimitedTotal:
		p.rateLimitedTotal.WithLabelValues(labels["path"], p.appName).Inc()
	case ports.MetricCacheWritesTotal:
		p.cacheWritesTotal.WithLabelValues(labels["resource"], labels["outcome"], p.appName).Inc()
	}
}

func (p *PrometheusAdapter) RecordDuration(name string, duration time.Duration, labels map[string]string) {
	switch name {
	case ports.MetricHTTPRequestDuration:
		p.httpRequestDuration.WithLabelValues(labels["path"], labels["method"], labels["status"], p.appName).Observe(duration.Seconds())
	case ports.MetricRefreshJobDuration:
		p.jobDuration.WithLabelValues(labels["job"], labels["outcome"], p.appName).Observe(duration.Seconds())
	}
}

func (p *PrometheusAdapter) RecordMetrics(c *gin.Context, start time.Time) {
	status := fmt.Sprintf("%d", c.Writer.Status())
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	labels := map[string]string{
		"path":   path,
		"method": c.Request.Method,
		"status": status,
	}

	p.IncrementCounter(ports.MetricHTTPRequestsTotal, labels)
	p.RecordDuration(ports.MetricHTTPRequestDuration, time.Since(start), labels)
}

var _ ports.MetricsPort = (*PrometheusAdapter)(nil)
