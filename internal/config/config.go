package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type (
	Container struct {
		App         *App         `validate:"required"`
		HTTP        *HTTP        `validate:"required"`
		Redis       *Redis       `validate:"required"`
		DB          *DB          `validate:"required"`
		Store       *Store       `validate:"required"`
		Upstream    *Upstream    `validate:"required"`
		IPRateLimit *IPRateLimit `validate:"required"`
		Live        *Live        `validate:"required"`
		Scheduler   *Scheduler   `validate:"required"`
	}

	App struct {
		Name string
		Env  string
		Role string `validate:"oneof=api scheduler all"`
	}

	HTTP struct {
		Env            string
		Port           string `validate:"required,numeric"`
		AllowedOrigins string
		URL            string
	}

	Redis struct {
		Address  string
		Password string
		DB       int `validate:"gte=0"`
		Prefix   string
	}

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	Store struct {
		Driver        string `validate:"oneof=redis postgres"`
		MigrationsDir string
	}

	Provider struct {
		BaseURL   string `validate:"required,url"`
		PerSecond int    `validate:"gt=0"`
		PerMinute int    `validate:"gt=0"`
	}

	Upstream struct {
		OpenF1  *Provider `validate:"required"`
		Jolpica *Provider `validate:"required"`
		Timeout time.Duration
	}

	IPRateLimit struct {
		Max     int64         `validate:"gt=0"`
		Window  time.Duration `validate:"gt=0"`
		Backend string        `validate:"oneof=memory redis"`
	}

	Live struct {
		BeforeStart time.Duration `validate:"gte=0"`
		AfterEnd    time.Duration `validate:"gte=0"`
	}

	Scheduler struct {
		JobTimeout    time.Duration `validate:"gt=0"`
		CalendarSpec  string        `validate:"required"`
		StandingsSpec string        `validate:"required"`
		LiveSpec      string        `validate:"required"`
		BaselineSpec  string        `validate:"required"`
		RunOnStart    bool
	}
)

func New() (*Container, error) {
	if os.Getenv("APP_ENV") != "production" && os.Getenv("APP_ENV") != "prod" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	app := &App{
		Name: getString("APP_NAME", "f1_dashboard_cache"),
		Env:  getString("APP_ENV", "local"),
		Role: getString("APP_ROLE", "all"),
	}

	http := &HTTP{
		Port:           getString("HTTP_PORT", "8080"),
		AllowedOrigins: getString("ALLOWED_ORIGINS", "*"),
		URL:            os.Getenv("HTTP_URL"),
		Env:            app.Env,
	}

	redis := &Redis{
		Address:  getString("REDIS_ADDRESS", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getInt("REDIS_DB", 0),
		Prefix:   getString("REDIS_PREFIX", "f1cache:"),
	}

	db := &DB{
		Host:     os.Getenv("DB_HOST"),
		Port:     getString("DB_PORT", "5432"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     os.Getenv("DB_NAME"),
		SSLMode:  getString("DB_SSLMODE", "disable"),
	}

	store := &Store{
		Driver:        getString("STORE_DRIVER", "redis"),
		MigrationsDir: getString("MIGRATIONS_DIR", "./internal/adapter/postgres/migrations"),
	}

	upstream := &Upstream{
		OpenF1: &Provider{
			BaseURL:   getString("OPENF1_BASE_URL", "https://api.openf1.org/v1"),
			PerSecond: getInt("OPENF1_PER_SECOND", 3),
			PerMinute: getInt("OPENF1_PER_MINUTE", 30),
		},
		Jolpica: &Provider{
			BaseURL:   getString("JOLPICA_BASE_URL", "https://api.jolpi.ca/ergast/f1"),
			PerSecond: getInt("JOLPICA_PER_SECOND", 4),
			PerMinute: getInt("JOLPICA_PER_MINUTE", 60),
		},
		Timeout: getMillis("UPSTREAM_TIMEOUT_MS", 15000),
	}

	ipRateLimit := &IPRateLimit{
		Max:     int64(getInt("IP_RATE_LIMIT_MAX", 60)),
		Window:  getMillis("IP_RATE_LIMIT_WINDOW_MS", 60000),
		Backend: getString("IP_RATE_LIMIT_BACKEND", "memory"),
	}

	live := &Live{
		BeforeStart: getMillis("SESSION_BEFORE_START_MS", 30*60*1000),
		AfterEnd:    getMillis("SESSION_AFTER_END_MS", 60*60*1000),
	}

	scheduler := &Scheduler{
		JobTimeout:    getMillis("JOB_TIMEOUT_MS", 55000),
		CalendarSpec:  getString("CALENDAR_SCHEDULE", "@every 24h"),
		StandingsSpec: getString("STANDINGS_SCHEDULE", "0 */2 * * 5,6,0,1"),
		LiveSpec:      getString("LIVE_SCHEDULE", "@every 1m"),
		BaselineSpec:  getString("BASELINE_SCHEDULE", "@every 3h"),
		RunOnStart:    getBool("SCHEDULER_RUN_ON_START", true),
	}

	container := &Container{
		App:         app,
		HTTP:        http,
		Redis:       redis,
		DB:          db,
		Store:       store,
		Upstream:    upstream,
		IPRateLimit: ipRateLimit,
		Live:        live,
		Scheduler:   scheduler,
	}

	if err := validator.New().Struct(container); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return container, nil
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getMillis(key string, fallback int) time.Duration {
	return time.Duration(getInt(key, fallback)) * time.Millisecond
}
