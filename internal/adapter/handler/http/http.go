package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/ports"
	"github.com/sm8ta/f1_dashboard_cache/internal/core/services"
)

// CacheHandler serves stored documents only. It never reaches an upstream.
type CacheHandler struct {
	readService *services.ReadService
	logger      ports.LoggerPort
	metrics     ports.MetricsPort
}

func NewCacheHandler(
	readService *services.ReadService,
	logger ports.LoggerPort,
	metrics ports.MetricsPort,
) *CacheHandler {
	return &CacheHandler{
		readService: readService,
		logger:      logger,
		metrics:     metrics,
	}
}

func (h *CacheHandler) serve(c *gin.Context, endpoint services.Endpoint) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	entry, err := h.readService.Get(c.Request.Context(), endpoint, c.Request.URL.Query())

	var paramErr *services.ParamError
	switch {
	case errors.As(err, &paramErr):
		newErrorResponse(c, http.StatusBadRequest, paramErr.Error())
	case err != nil:
		newErrorResponse(c, http.StatusInternalServerError, "Internal server error")
	case entry == nil:
		newEmptyResponse(c)
	default:
		newCachedResponse(c, entry.Data, entry.Timestamp)
	}
}

// @Summary Season calendar
// @Description Meetings of a season as last stored by the calendar refresh
// @Tags calendar
// @Produce json
// @Param year query int false "Season, defaults to the current year"
// @Success 200 {array} object
// @Failure 400 {object} errorResponse
// @Failure 429 {object} rateLimitResponse
// @Failure 500 {object} errorResponse
// @Router /getMeetings [get]
func (h *CacheHandler) GetMeetings(c *gin.Context) {
	h.serve(c, services.EndpointMeetings)
}

// @Summary Sessions of a meeting
// @Tags calendar
// @Produce json
// @Param meeting_key query string true "Meeting key"
// @Success 200 {array} object
// @Failure 400 {object} errorResponse
// @Failure 429 {object} rateLimitResponse
// @Failure 500 {object} errorResponse
// @Router /getSessions [get]
func (h *CacheHandler) GetSessions(c *gin.Context) {
	h.serve(c, services.EndpointSessions)
}

// @Summary Sessions of a season
// @Tags calendar
// @Produce json
// @Param year query int false "Season, defaults to the current year"
// @Success 200 {array} object
// @Failure 400 {object} errorResponse
// @Failure 429 {object} rateLimitResponse
// @Failure 500 {object} errorResponse
// @Router /getSessionsByYear [get]
func (h *CacheHandler) GetSessionsByYear(c *gin.Context) {
	h.serve(c, services.EndpointSessionsByYear)
}

// @Summary Drivers of a session
// @Tags drivers
// @Produce json
// @Param session_key query string true "Session key"
// @Success 200 {array} object
// @Failure 400 {object} errorResponse
// @Failure 429 {object} rateLimitResponse
// @Failure 500 {object} errorResponse
// @Router /getDrivers [get]
func (h *CacheHandler) GetDrivers(c *gin.Context) {
	h.serve(c, services.EndpointDrivers)
}

// @Summary Drivers of the latest session
// @Tags drivers
// @Produce json
// @Success 200 {array} object
// @Failure 429 {object} rateLimitResponse
// @Failure 500 {object} errorResponse
// @Router /getLatestDrivers [get]
func (h *CacheHandler) GetLatestDrivers(c *gin.Context) {
	h.serve(c, services.EndpointLatestDrivers)
}

// @Summary Car positions
// @Tags live
// @Produce json
// @Param session_key query string true "Session key"
// @Success 200 {array} object
// @Failure 400 {object} errorResponse
// @Failure 429 {object} rateLimitResponse
// @Failure 500 {object} errorResponse
// @Router /getPositions [get]
func (h *CacheHandler) GetPositions(c *gin.Context) {
	h.serve(c, services.EndpointPositions)
}

// @Summary Gaps and intervals
// @Tags live
// @Produce json
// @Param session_key query string true "Session key"
// @Success 200 {array} object
// @Failure 400 {object} errorResponse
// @Failure 429 {object} rateLimitResponse
// @Failure 500 {object} errorResponse
// @Router /getIntervals [get]
func (h *CacheHandler) GetIntervals(c *gin.Context) {
	h.serve(c, services.EndpointIntervals)
}

// @Summary Classification of a session
// @Tags results
// @Produce json
// @Param session_key query string true "Session key"
// @Success 200 {array} object
// @Failure 400 {object} errorResponse
// @Failure 429 {object} rateLimitResponse
// @Failure 500 {object} errorResponse
// @Router /getSessionResult [get]
func (h *CacheHandler) GetSessionResult(c *gin.Context) {
	h.serve(c, services.EndpointSessionResult)
}

// @Summary Lap times
// @Tags live
// @Produce json
// @Param session_key query string true "Session key"
// @Param driver_number query string false "Driver number or all" default(all)
// @Success 200 {array} object
// @Failure 400 {object} errorResponse
// @Failure 429 {object} rateLimitResponse
// @Failure 500 {object} errorResponse
// @Router /getLaps [get]
func (h *CacheHandler) GetLaps(c *gin.Context) {
	h.serve(c, services.EndpointLaps)
}

// @Summary Track weather
// @Tags live
// @Produce json
// @Param session_key query string true "Session key"
// @Success 200 {array} object
// @Failure 400 {object} errorResponse
// @Failure 429 {object} rateLimitResponse
// @Failure 500 {object} errorResponse
// @Router /getWeather [get]
func (h *CacheHandler) GetWeather(c *gin.Context) {
	h.serve(c, services.EndpointWeather)
}

// @Summary Race control messages
// @Tags live
// @Produce json
// @Param session_key query string true "Session key"
// @Success 200 {array} object
// @Failure 400 {object} errorResponse
// @Failure 429 {object} rateLimitResponse
// @Failure 500 {object} errorResponse
// @Router /getRaceControl [get]
func (h *CacheHandler) GetRaceControl(c *gin.Context) {
	h.serve(c, services.EndpointRaceControl)
}

// @Summary Tyre stints
// @Tags live
// @Produce json
// @Param session_key query string true "Session key"
// @Success 200 {array} object
// @Failure 400 {object} errorResponse
// @Failure 429 {object} rateLimitResponse
// @Failure 500 {object} errorResponse
// @Router /getStints [get]
func (h *CacheHandler) GetStints(c *gin.Context) {
	h.serve(c, services.EndpointStints)
}

// @Summary Latest session
// @Tags calendar
// @Produce json
// @Success 200 {array} object
// @Failure 429 {object} rateLimitResponse
// @Failure 500 {object} errorResponse
// @Router /getLatestSession [get]
func (h *CacheHandler) GetLatestSession(c *gin.Context) {
	h.serve(c, services.EndpointLatestSession)
}

// @Summary Driver championship
// @Tags standings
// @Produce json
// @Param year query int false "Season, defaults to the current year"
// @Success 200 {object} object
// @Failure 400 {object} errorResponse
// @Failure 429 {object} rateLimitResponse
// @Failure 500 {object} errorResponse
// @Router /getDriverStandings [get]
func (h *CacheHandler) GetDriverStandings(c *gin.Context) {
	h.serve(c, services.EndpointDriverStandings)
}

// @Summary Constructor championship
// @Tags standings
// @Produce json
// @Param year query int false "Season, defaults to the current year"
// @Success 200 {object} object
// @Failure 400 {object} errorResponse
// @Failure 429 {object} rateLimitResponse
// @Failure 500 {object} errorResponse
// @Router /getConstructorStandings [get]
func (h *CacheHandler) GetConstructorStandings(c *gin.Context) {
	h.serve(c, services.EndpointConstructorStandings)
}

// @Summary Liveness
// @Tags system
// @Produce json
// @Success 200 {object} healthResponse
// @Failure 503 {object} errorResponse
// @Router /health [get]
func (h *CacheHandler) Health(c *gin.Context) {
	if err := h.readService.Ping(c.Request.Context()); err != nil {
		h.logger.Error("Cache store unreachable", map[string]interface{}{
			"error": err.Error(),
		})
		newErrorResponse(c, http.StatusServiceUnavailable, "Cache store unavailable")
		return
	}
	c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}
