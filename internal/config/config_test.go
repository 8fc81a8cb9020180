package config

import (
	"testing"
	"time"
)

func TestNew_defaults(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("OPENF1_PER_SECOND", "")
	t.Setenv("IP_RATE_LIMIT_WINDOW_MS", "")

	cfg, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.Upstream.OpenF1.PerSecond != 3 || cfg.Upstream.OpenF1.PerMinute != 30 {
		t.Fatalf("unexpected openf1 limits: %+v", cfg.Upstream.OpenF1)
	}
	if cfg.Upstream.Jolpica.PerSecond != 4 || cfg.Upstream.Jolpica.PerMinute != 60 {
		t.Fatalf("unexpected jolpica limits: %+v", cfg.Upstream.Jolpica)
	}
	if cfg.IPRateLimit.Window != time.Minute {
		t.Fatalf("unexpected ip window: %s", cfg.IPRateLimit.Window)
	}
	if cfg.Live.BeforeStart != 30*time.Minute || cfg.Live.AfterEnd != time.Hour {
		t.Fatalf("unexpected grace periods: %+v", cfg.Live)
	}
	if cfg.Scheduler.JobTimeout != 55*time.Second {
		t.Fatalf("unexpected job timeout: %s", cfg.Scheduler.JobTimeout)
	}
}

func TestNew_overrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("OPENF1_PER_SECOND", "5")
	t.Setenv("SESSION_AFTER_END_MS", "1000")
	t.Setenv("STORE_DRIVER", "postgres")

	cfg, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.Upstream.OpenF1.PerSecond != 5 {
		t.Fatalf("override ignored: %d", cfg.Upstream.OpenF1.PerSecond)
	}
	if cfg.Live.AfterEnd != time.Second {
		t.Fatalf("override ignored: %s", cfg.Live.AfterEnd)
	}
	if cfg.Store.Driver != "postgres" {
		t.Fatalf("override ignored: %s", cfg.Store.Driver)
	}
}

func TestNew_invalid(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORE_DRIVER", "memcached")

	if _, err := New(); err == nil {
		t.Fatalf("expected validation error")
	}
}
