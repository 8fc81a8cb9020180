package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"

	"github.com/sm8ta/f1_dashboard_cache/internal/adapter/logger"
	"github.com/sm8ta/f1_dashboard_cache/internal/app"
	"github.com/sm8ta/f1_dashboard_cache/internal/config"
	"github.com/sm8ta/f1_dashboard_cache/internal/core/services"
)

// Options defines CLI flags for a one-shot refresh, e.g. from an external cron.
type Options struct {
	Job   string `short:"j" long:"job" default:"all" choice:"calendar" choice:"standings" choice:"live" choice:"baseline" choice:"all" description:"Refresh job to run"`
	Reset bool   `long:"reset" description:"Remove every cached entry before refreshing"`
	Force bool   `short:"f" long:"force" description:"Ignore the standings race-weekend gate"`
}

func main() {
	var opts Options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		os.Exit(2)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	loggerAdapter := logger.NewLoggerAdapter(cfg.App.Env)

	jobs := services.Jobs
	if opts.Job != "all" {
		job, err := services.ParseJob(opts.Job)
		if err != nil {
			log.Fatal(err)
		}
		jobs = []services.Job{job}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, loggerAdapter)
	if err != nil {
		log.Fatalf("Error initializing application: %v", err)
	}
	defer application.Close()

	if opts.Reset {
		if err := application.Store.Reset(ctx); err != nil {
			log.Fatalf("Error resetting cache: %v", err)
		}
		loggerAdapter.Info("Cache reset", nil)
	}

	failed := 0
	for _, job := range jobs {
		jobCtx, cancel := context.WithTimeout(ctx, cfg.Scheduler.JobTimeout)
		report := application.Refresh.Run(jobCtx, job, opts.Force)
		cancel()

		fmt.Printf("%-10s %-8s written=%d failed=%d\n", job, report.Outcome(), len(report.Written), len(report.Failed))
		if report.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		application.Close()
		os.Exit(1)
	}
}
