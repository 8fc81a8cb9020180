package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/domain"
	"github.com/sm8ta/f1_dashboard_cache/internal/core/ports"
)

// IPLimiter is a fixed window counter shared by every read-service instance.
// The window starts with the first request of an IP and expires with its key.
type IPLimiter struct {
	client redis.UniversalClient
	prefix string
	max    int64
	window time.Duration
}

func NewIPLimiter(client redis.UniversalClient, prefix string, max int64, window time.Duration) *IPLimiter {
	return &IPLimiter{
		client: client,
		prefix: prefix + "ratelimit:",
		max:    max,
		window: window,
	}
}

func (l *IPLimiter) Allow(ctx context.Context, ip string) (domain.RateDecision, error) {
	const op = "redis.IPLimiter.Allow"

	key := l.prefix + ip

	// SET NX PX creates the window with its expiry in the same transaction as
	// the increment, so a counter can never outlive its window.
	var incr *redis.IntCmd
	var pttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, l.window)
		incr = pipe.Incr(ctx, key)
		pttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return domain.RateDecision{}, fmt.Errorf("%s: %w", op, err)
	}

	count := incr.Val()
	decision := domain.RateDecision{
		Allowed: count <= l.max,
		Count:   count,
		Limit:   l.max,
	}
	if !decision.Allowed {
		ttl := pttl.Val()
		if ttl <= 0 {
			ttl = l.window
		}
		decision.RetryAfter = ttl
	}
	return decision, nil
}

var _ ports.IPLimiter = (*IPLimiter)(nil)
