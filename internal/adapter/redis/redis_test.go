package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/domain"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisAdapter_ReadMiss(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisAdapter(client, "f1cache:")

	if _, err := store.Read(context.Background(), "meetings_2026"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestRedisAdapter_LastWriteWins(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisAdapter(client, "f1cache:")
	fixed := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	ctx := context.Background()

	if err := store.Write(ctx, "positions_9693", json.RawMessage(`[1]`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Write(ctx, "positions_9693", json.RawMessage(`[1]`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	entry, err := store.Read(ctx, "positions_9693")
	if err != nil || string(entry.Data) != `[1]` {
		t.Fatalf("idempotent write broken: %v %v", entry, err)
	}

	if err := store.Write(ctx, "positions_9693", json.RawMessage(`[2]`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	entry, err = store.Read(ctx, "positions_9693")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(entry.Data) != `[2]` || entry.Key != "positions_9693" || entry.Timestamp != fixed.UnixMilli() {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if ttl := mr.TTL("f1cache:positions_9693"); ttl != 0 {
		t.Fatalf("entries must not expire, ttl=%s", ttl)
	}
}

func TestRedisAdapter_Reset(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisAdapter(client, "f1cache:")
	ctx := context.Background()

	mr.Set("other:key", "keep")
	for _, key := range []string{"meetings_2026", "latest_session", "drivers_latest"} {
		if err := store.Write(ctx, key, json.RawMessage(`[]`)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := store.Read(ctx, "latest_session"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("entry survived reset: %v", err)
	}
	if !mr.Exists("other:key") {
		t.Fatalf("reset removed a key outside its prefix")
	}
}

func TestRedisAdapter_corruptDocument(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisAdapter(client, "f1cache:")
	mr.Set("f1cache:weather_1", "not json")

	_, err := store.Read(context.Background(), "weather_1")
	if err == nil || errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestIPLimiter_Allow(t *testing.T) {
	mr, client := newTestRedis(t)
	limiter := NewIPLimiter(client, "f1cache:", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, "10.0.0.1")
		if err != nil || !d.Allowed {
			t.Fatalf("request %d should pass: %+v %v", i, d, err)
		}
	}
	d, err := limiter.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed || d.Count != 3 {
		t.Fatalf("third request must be rejected: %+v", d)
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Fatalf("unexpected retry after %s", d.RetryAfter)
	}

	mr.FastForward(time.Minute)
	if d, _ := limiter.Allow(ctx, "10.0.0.1"); !d.Allowed {
		t.Fatalf("window must reset after expiry: %+v", d)
	}
}

func TestIPLimiter_counterAlwaysExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	limiter := NewIPLimiter(client, "f1cache:", 2, time.Minute)
	ctx := context.Background()
	key := "f1cache:ratelimit:10.0.0.2"

	mr.SetError("LOADING redis is loading")
	if _, err := limiter.Allow(ctx, "10.0.0.2"); err == nil {
		t.Fatalf("expected error from a failing server")
	}
	mr.SetError("")
	if mr.Exists(key) {
		t.Fatalf("failed request left a counter behind")
	}

	if _, err := limiter.Allow(ctx, "10.0.0.2"); err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("counter created without expiry: ttl=%s", ttl)
	}
}
