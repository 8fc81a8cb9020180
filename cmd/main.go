package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/sm8ta/f1_dashboard_cache/docs"
	"github.com/sm8ta/f1_dashboard_cache/internal/adapter/logger"
	"github.com/sm8ta/f1_dashboard_cache/internal/app"
	"github.com/sm8ta/f1_dashboard_cache/internal/config"
)

const shutdownTimeout = 60 * time.Second

// @title F1 Dashboard Cache API
// @version 1.0
// @description Cache-only read service for race calendar, live timing and standings data

// @host localhost:8080
// @BasePath /
func main() {
	// Loading environment
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Set logger
	loggerAdapter := logger.NewLoggerAdapter(cfg.App.Env)
	loggerAdapter.Info("Starting the application", map[string]interface{}{
		"app":   cfg.App.Name,
		"env":   cfg.App.Env,
		"role":  cfg.App.Role,
		"store": cfg.Store.Driver,
	})

	ctx := context.Background()
	application, err := app.New(ctx, cfg, loggerAdapter)
	if err != nil {
		log.Fatalf("Error initializing application: %v", err)
	}
	defer application.Close()

	serveAPI := cfg.App.Role == "api" || cfg.App.Role == "all"
	runScheduler := cfg.App.Role == "scheduler" || cfg.App.Role == "all"

	serverErr := make(chan error, 1)

	// Read service
	router, err := application.Router()
	if err != nil {
		log.Fatalf("Error initializing router: %v", err)
	}
	if serveAPI {
		go func() {
			listenAddr := fmt.Sprintf("%s:%s", cfg.HTTP.URL, cfg.HTTP.Port)
			loggerAdapter.Info("Starting the HTTP server", map[string]interface{}{
				"addr": listenAddr,
			})
			serverErr <- router.Serve(listenAddr)
		}()
	}

	// Background refresh
	sched, err := application.Scheduler()
	if err != nil {
		log.Fatalf("Error initializing scheduler: %v", err)
	}
	if runScheduler {
		sched.Start(cfg.Scheduler.RunOnStart)
		loggerAdapter.Info("Scheduler started", map[string]interface{}{
			"run_on_start": cfg.Scheduler.RunOnStart,
		})
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	loggerAdapter.Info("Application is running", nil)

	select {
	case sig := <-stop:
		loggerAdapter.Info("Shutting down", map[string]interface{}{
			"signal": sig.String(),
		})
	case err := <-serverErr:
		if err != nil {
			loggerAdapter.Error("HTTP server stopped", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if serveAPI {
		if err := router.Shutdown(shutdownCtx); err != nil {
			loggerAdapter.Error("HTTP server shutdown failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	if runScheduler {
		if err := sched.Stop(shutdownCtx); err != nil {
			loggerAdapter.Warn("Refresh jobs abandoned at shutdown", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	loggerAdapter.Info("Application stopped", nil)
}
