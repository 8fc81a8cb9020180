// Package ratelimit holds the process-local limiters: the dual-window gate in
// front of each upstream provider and the fixed-window counter applied per client IP.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrLimiterClosed = errors.New("rate limiter closed")

const (
	defaultSecondBackoff = 250 * time.Millisecond
	defaultMinuteBackoff = 2 * time.Second
)

// bucket keeps the grant times still inside its window. A token returns to the
// bucket exactly one window after it was spent, so no rolling window of that
// length ever sees more than capacity grants.
type bucket struct {
	capacity int
	window   time.Duration
	grants   []time.Time
}

func newBucket(capacity int, window time.Duration) *bucket {
	return &bucket{
		capacity: capacity,
		window:   window,
		grants:   make([]time.Time, 0, capacity),
	}
}

func (b *bucket) refill(now time.Time) int {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.grants) && !b.grants[i].After(cutoff) {
		i++
	}
	if i > 0 {
		b.grants = append(b.grants[:0], b.grants[i:]...)
	}
	return b.capacity - len(b.grants)
}

func (b *bucket) take(now time.Time) {
	b.grants = append(b.grants, now)
}

// until reports how long before the oldest grant leaves the window.
func (b *bucket) until(now time.Time) time.Duration {
	if len(b.grants) == 0 {
		return 0
	}
	return b.grants[0].Add(b.window).Sub(now)
}

type waiter struct {
	ready    chan struct{}
	granted  bool
	canceled bool
	err      error
}

// State is a snapshot of the limiter for logs and tests.
type State struct {
	SecondTokens int
	MinuteTokens int
	Pending      int
}

type Option func(*DualWindowLimiter)

// WithWindows shrinks the windows, used by tests.
func WithWindows(second, minute time.Duration) Option {
	return func(l *DualWindowLimiter) {
		l.secondWindow = second
		l.minuteWindow = minute
	}
}

// WithBackoff bounds the worker's sleep per blocking bucket.
func WithBackoff(second, minute time.Duration) Option {
	return func(l *DualWindowLimiter) {
		l.secondBackoff = second
		l.minuteBackoff = minute
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *DualWindowLimiter) {
		l.now = now
	}
}

func withGrantHook(fn func(time.Time)) Option {
	return func(l *DualWindowLimiter) {
		l.onGrant = fn
	}
}

// DualWindowLimiter grants a request only when both the per-second and the
// per-minute bucket hold a token. Waiters are served strictly in arrival order
// by a single worker goroutine.
type DualWindowLimiter struct {
	name string

	secondWindow  time.Duration
	minuteWindow  time.Duration
	secondBackoff time.Duration
	minuteBackoff time.Duration
	now           func() time.Time
	onGrant       func(time.Time)

	mu     sync.Mutex
	second *bucket
	minute *bucket
	queue  []*waiter
	closed bool

	wake chan struct{}
	done chan struct{}
}

func NewDualWindowLimiter(name string, perSecond, perMinute int, opts ...Option) *DualWindowLimiter {
	l := &DualWindowLimiter{
		name:          name,
		secondWindow:  time.Second,
		minuteWindow:  time.Minute,
		secondBackoff: defaultSecondBackoff,
		minuteBackoff: defaultMinuteBackoff,
		now:           time.Now,
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.second = newBucket(perSecond, l.secondWindow)
	l.minute = newBucket(perMinute, l.minuteWindow)

	go l.run()
	return l
}

func (l *DualWindowLimiter) Name() string {
	return l.name
}

// Acquire blocks until one token from each bucket has been taken for the caller.
// A canceled caller leaves the queue without consuming tokens.
func (l *DualWindowLimiter) Acquire(ctx context.Context) error {
	w := &waiter{ready: make(chan struct{})}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLimiterClosed
	}
	l.queue = append(l.queue, w)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	select {
	case <-w.ready:
		return w.err
	case <-ctx.Done():
		l.mu.Lock()
		defer l.mu.Unlock()
		if w.granted {
			return nil
		}
		if w.err != nil {
			return w.err
		}
		w.canceled = true
		return ctx.Err()
	}
}

func (l *DualWindowLimiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	pending := 0
	for _, w := range l.queue {
		if !w.canceled {
			pending++
		}
	}
	return State{
		SecondTokens: l.second.refill(now),
		MinuteTokens: l.minute.refill(now),
		Pending:      pending,
	}
}

// Close stops the worker and fails every waiter still queued.
func (l *DualWindowLimiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for _, w := range l.queue {
		w.err = ErrLimiterClosed
		close(w.ready)
	}
	l.queue = nil
	close(l.done)
}

func (l *DualWindowLimiter) run() {
	for {
		wait, pending := l.step()
		if !pending {
			select {
			case <-l.wake:
			case <-l.done:
				return
			}
			continue
		}
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-l.done:
			timer.Stop()
			return
		}
	}
}

// step grants the head of the queue if possible, otherwise returns how long to sleep.
func (l *DualWindowLimiter) step() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for len(l.queue) > 0 && l.queue[0].canceled {
		l.queue = l.queue[1:]
	}
	if len(l.queue) == 0 || l.closed {
		return 0, false
	}

	now := l.now()
	secondTokens := l.second.refill(now)
	minuteTokens := l.minute.refill(now)

	if secondTokens > 0 && minuteTokens > 0 {
		head := l.queue[0]
		l.queue = l.queue[1:]
		l.second.take(now)
		l.minute.take(now)
		head.granted = true
		close(head.ready)
		if l.onGrant != nil {
			l.onGrant(now)
		}
		return 0, true
	}

	if minuteTokens == 0 {
		return bounded(l.minute.until(now), l.minuteBackoff), true
	}
	return bounded(l.second.until(now), l.secondBackoff), true
}

func bounded(d, max time.Duration) time.Duration {
	if d <= 0 {
		return time.Millisecond
	}
	if d > max {
		return max
	}
	return d
}
