package ports

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	MetricHTTPRequestsTotal     = "http_requests_total"
	MetricHTTPRequestDuration   = "api_request_duration_seconds"
	MetricUpstreamRequestsTotal = "upstream_requests_total"
	MetricRefreshJobRunsTotal   = "refresh_job_runs_total"
	MetricRefreshJobDuration    = "refresh_job_duration_seconds"
	MetricIPRateLimitedTotal    = "ip_rate_limited_total"
	MetricCacheWritesTotal      = "cache_writes_total"
)

type MetricsPort interface {
	IncrementCounter(name string, labels map[string]string)
	RecordDuration(name string, duration time.Duration, labels map[string]string)
	RecordMetrics(c *gin.Context, start time.Time)
}
