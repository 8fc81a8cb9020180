package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	redisClient "github.com/redis/go-redis/v9"

	handlers "github.com/sm8ta/f1_dashboard_cache/internal/adapter/handler/http"
	metricsAdapter "github.com/sm8ta/f1_dashboard_cache/internal/adapter/prometheus"
	"github.com/sm8ta/f1_dashboard_cache/internal/adapter/postgres/repository"
	"github.com/sm8ta/f1_dashboard_cache/internal/adapter/ratelimit"
	"github.com/sm8ta/f1_dashboard_cache/internal/adapter/redis"
	"github.com/sm8ta/f1_dashboard_cache/internal/adapter/scheduler"
	"github.com/sm8ta/f1_dashboard_cache/internal/adapter/upstream"
	"github.com/sm8ta/f1_dashboard_cache/internal/config"
	"github.com/sm8ta/f1_dashboard_cache/internal/core/domain"
	"github.com/sm8ta/f1_dashboard_cache/internal/core/ports"
	"github.com/sm8ta/f1_dashboard_cache/internal/core/services"
)

// App owns every process-scoped instance: limiters, store, services.
// It is built once at startup and shared by the roles the process runs.
type App struct {
	Config   *config.Container
	Logger   ports.LoggerPort
	Registry *prometheus.Registry
	Metrics  ports.MetricsPort

	Store     ports.CacheStore
	Limiters  map[domain.Provider]*ratelimit.DualWindowLimiter
	Upstream  *upstream.Client
	IPLimiter ports.IPLimiter

	Refresh *services.RefreshService
	Read    *services.ReadService

	closers []func() error
}

func New(ctx context.Context, cfg *config.Container, log ports.LoggerPort) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   log,
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metricsAdapter.NewPrometheusAdapter(a.Registry)

	var rdb redisClient.UniversalClient
	if cfg.Store.Driver == "redis" || cfg.IPRateLimit.Backend == "redis" {
		client := redisClient.NewClient(&redisClient.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		rdb = client
	}

	switch cfg.Store.Driver {
	case "postgres":
		db, err := openPostgres(ctx, cfg.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := repository.Migrate(db, cfg.Store.MigrationsDir); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		a.Store = repository.NewCacheRepository(db)
	default:
		a.Store = redis.NewRedisAdapter(rdb, cfg.Redis.Prefix)
	}

	if cfg.IPRateLimit.Backend == "redis" {
		a.IPLimiter = redis.NewIPLimiter(rdb, cfg.Redis.Prefix, cfg.IPRateLimit.Max, cfg.IPRateLimit.Window)
	} else {
		a.IPLimiter = ratelimit.NewFixedWindowLimiter(cfg.IPRateLimit.Max, cfg.IPRateLimit.Window)
	}

	a.Limiters = map[domain.Provider]*ratelimit.DualWindowLimiter{
		domain.ProviderOpenF1:  ratelimit.NewDualWindowLimiter(string(domain.ProviderOpenF1), cfg.Upstream.OpenF1.PerSecond, cfg.Upstream.OpenF1.PerMinute),
		domain.ProviderJolpica: ratelimit.NewDualWindowLimiter(string(domain.ProviderJolpica), cfg.Upstream.Jolpica.PerSecond, cfg.Upstream.Jolpica.PerMinute),
	}

	a.Upstream = upstream.NewClient(
		&http.Client{Timeout: cfg.Upstream.Timeout},
		map[domain.Provider]upstream.Provider{
			domain.ProviderOpenF1:  {BaseURL: cfg.Upstream.OpenF1.BaseURL, Limiter: a.Limiters[domain.ProviderOpenF1]},
			domain.ProviderJolpica: {BaseURL: cfg.Upstream.Jolpica.BaseURL, Limiter: a.Limiters[domain.ProviderJolpica]},
		},
		log,
		a.Metrics,
	)

	a.Refresh = services.NewRefreshService(a.Upstream, a.Store, log, a.Metrics, cfg.Live.BeforeStart, cfg.Live.AfterEnd)
	a.Read = services.NewReadService(a.Store, log, validator.New())

	return a, nil
}

func (a *App) Router() (*handlers.Router, error) {
	cacheHandler := handlers.NewCacheHandler(a.Read, a.Logger, a.Metrics)
	return handlers.NewRouter(a.Config.HTTP, cacheHandler, a.IPLimiter, a.Logger, a.Metrics, a.Registry)
}

// Scheduler registers the four refresh jobs on their configured specs.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	cfg := a.Config.Scheduler
	s := scheduler.New(a.Refresh, a.Logger, cfg.JobTimeout)

	specs := map[services.Job]string{
		services.JobCalendar:  cfg.CalendarSpec,
		services.JobStandings: cfg.StandingsSpec,
		services.JobLive:      cfg.LiveSpec,
		services.JobBaseline:  cfg.BaselineSpec,
	}
	for _, job := range services.Jobs {
		if err := s.Add(specs[job], job); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Close stops the limiters and releases connections.
func (a *App) Close() error {
	for _, l := range a.Limiters {
		l.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openPostgres(ctx context.Context, cfg *config.DB) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
