package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/domain"
	"github.com/sm8ta/f1_dashboard_cache/internal/core/ports"
)

type windowCounter struct {
	start time.Time
	count int64
}

// FixedWindowLimiter counts requests per IP in windows anchored at the first request.
type FixedWindowLimiter struct {
	max    int64
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	counters  map[string]*windowCounter
	lastSweep time.Time
}

func NewFixedWindowLimiter(max int64, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		max:      max,
		window:   window,
		now:      time.Now,
		counters: make(map[string]*windowCounter),
	}
}

func (l *FixedWindowLimiter) Allow(_ context.Context, ip string) (domain.RateDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	c, ok := l.counters[ip]
	if !ok || now.Sub(c.start) >= l.window {
		c = &windowCounter{start: now}
		l.counters[ip] = c
	}
	c.count++

	decision := domain.RateDecision{
		Allowed: c.count <= l.max,
		Count:   c.count,
		Limit:   l.max,
	}
	if !decision.Allowed {
		decision.RetryAfter = c.start.Add(l.window).Sub(now)
	}
	return decision, nil
}

// sweep drops expired counters at most once per window.
func (l *FixedWindowLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	for ip, c := range l.counters {
		if now.Sub(c.start) >= l.window {
			delete(l.counters, ip)
		}
	}
	l.lastSweep = now
}

var _ ports.IPLimiter = (*FixedWindowLimiter)(nil)
