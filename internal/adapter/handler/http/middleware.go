package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/ports"
)

// IPRateLimitMiddleware rejects clients over their fixed window quota with 429.
// A failing limiter lets the request through.
func IPRateLimitMiddleware(limiter ports.IPLimiter, logger ports.LoggerPort, metrics ports.MetricsPort) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		decision, err := limiter.Allow(c.Request.Context(), ip)
		if err != nil {
			logger.Warn("IP rate limiter unavailable", map[string]interface{}{
				"ip":    ip,
				"error": err.Error(),
			})
			c.Next()
			return
		}

		if !decision.Allowed {
			metrics.IncrementCounter(ports.MetricIPRateLimitedTotal, map[string]string{
				"path": c.FullPath(),
			})
			logger.Info("Client rate limited", map[string]interface{}{
				"ip":             ip,
				"count":          decision.Count,
				"limit":          decision.Limit,
				"retry_after_ms": decision.RetryAfter.Milliseconds(),
			})
			newRateLimitResponse(c, decision.RetryAfter)
			return
		}

		c.Next()
	}
}

// PreflightMiddleware answers OPTIONS with 204 after the CORS headers were set.
func PreflightMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RecoveryHandler hides panic details behind a generic 500 body.
func RecoveryHandler(logger ports.LoggerPort) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		logger.Error("Panic while handling request", map[string]interface{}{
			"path":  c.Request.URL.Path,
			"panic": recovered,
		})
		newErrorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
}
