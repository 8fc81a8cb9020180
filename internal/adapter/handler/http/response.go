package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const cacheTimestampHeader = "X-Cache-Timestamp"

type errorResponse struct {
	Error string `json:"error" example:"session_key: is required"`
}

type rateLimitResponse struct {
	Error        string `json:"error" example:"Too many requests"`
	RetryAfterMs int64  `json:"retryAfterMs" example:"42000"`
}

type healthResponse struct {
	Status string `json:"status" example:"ok"`
}

func newErrorResponse(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{
		Error: message,
	})
}

func newRateLimitResponse(c *gin.Context, retryAfter time.Duration) {
	ms := retryAfter.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	// Retry-After is whole seconds, rounded up
	c.Header("Retry-After", strconv.FormatInt((ms+999)/1000, 10))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, rateLimitResponse{
		Error:        "Too many requests",
		RetryAfterMs: ms,
	})
}

// newCachedResponse writes a stored document verbatim.
func newCachedResponse(c *gin.Context, data []byte, timestamp int64) {
	c.Header(cacheTimestampHeader, strconv.FormatInt(timestamp, 10))
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func newEmptyResponse(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte("[]"))
}
