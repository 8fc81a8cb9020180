package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/sm8ta/f1_dashboard_cache/internal/config"
	"github.com/sm8ta/f1_dashboard_cache/internal/core/ports"
)

type Router struct {
	*gin.Engine

	mu     sync.Mutex
	server *http.Server
}

func NewRouter(
	config *config.HTTP,
	cacheHandler *CacheHandler,
	ipLimiter ports.IPLimiter,
	logger ports.LoggerPort,
	metrics ports.MetricsPort,
	gatherer prometheus.Gatherer,
) (*Router, error) {
	if config.Env == "prod" || config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	corsConfig.OptionsResponseStatusCode = http.StatusNoContent
	if origins := strings.TrimSpace(config.AllowedOrigins); origins == "" || origins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(origins, ",")
	}

	router := gin.New()
	router.Use(
		gin.Logger(),
		gin.CustomRecovery(RecoveryHandler(logger)),
		cors.New(corsConfig),
		PreflightMiddleware(),
	)

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	router.GET("/health", cacheHandler.Health)

	api := router.Group("/")
	api.Use(IPRateLimitMiddleware(ipLimiter, logger, metrics))
	{
		api.GET("/getMeetings", cacheHandler.GetMeetings)
		api.GET("/getSessions", cacheHandler.GetSessions)
		api.GET("/getSessionsByYear", cacheHandler.GetSessionsByYear)
		api.GET("/getDrivers", cacheHandler.GetDrivers)
		api.GET("/getLatestDrivers", cacheHandler.GetLatestDrivers)
		api.GET("/getPositions", cacheHandler.GetPositions)
		api.GET("/getIntervals", cacheHandler.GetIntervals)
		api.GET("/getSessionResult", cacheHandler.GetSessionResult)
		api.GET("/getLaps", cacheHandler.GetLaps)
		api.GET("/getWeather", cacheHandler.GetWeather)
		api.GET("/getRaceControl", cacheHandler.GetRaceControl)
		api.GET("/getStints", cacheHandler.GetStints)
		api.GET("/getLatestSession", cacheHandler.GetLatestSession)
		api.GET("/getDriverStandings", cacheHandler.GetDriverStandings)
		api.GET("/getConstructorStandings", cacheHandler.GetConstructorStandings)
	}

	return &Router{
		Engine: router,
	}, nil
}

// Serve blocks until the server stops. A graceful Shutdown is not an error.
func (r *Router) Serve(listenAddr string) error {
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	r.mu.Lock()
	r.server = server
	r.mu.Unlock()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (r *Router) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	server := r.server
	r.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
