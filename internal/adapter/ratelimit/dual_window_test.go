package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func waitPending(t *testing.T, l *DualWindowLimiter, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for l.State().Pending != n {
		if time.Now().After(deadline) {
			t.Fatalf("pending never reached %d (now %d)", n, l.State().Pending)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDualWindowLimiter_rollingWindows(t *testing.T) {
	const (
		perSecond    = 3
		perMinute    = 5
		secondWindow = 40 * time.Millisecond
		minuteWindow = 200 * time.Millisecond
	)

	var (
		mu     sync.Mutex
		grants []time.Time
	)
	l := NewDualWindowLimiter("test", perSecond, perMinute,
		WithWindows(secondWindow, minuteWindow),
		WithBackoff(5*time.Millisecond, 20*time.Millisecond),
		withGrantHook(func(at time.Time) {
			mu.Lock()
			grants = append(grants, at)
			mu.Unlock()
		}),
	)
	defer l.Close()

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("acquire: %v", err)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(grants) != 12 {
		t.Fatalf("expected 12 grants, got %d", len(grants))
	}
	for i := perSecond; i < len(grants); i++ {
		if gap := grants[i].Sub(grants[i-perSecond]); gap < secondWindow {
			t.Fatalf("more than %d grants within %s (gap %s at %d)", perSecond, secondWindow, gap, i)
		}
	}
	for i := perMinute; i < len(grants); i++ {
		if gap := grants[i].Sub(grants[i-perMinute]); gap < minuteWindow {
			t.Fatalf("more than %d grants within %s (gap %s at %d)", perMinute, minuteWindow, gap, i)
		}
	}
}

func TestDualWindowLimiter_FIFO(t *testing.T) {
	l := NewDualWindowLimiter("fifo", 1, 1000, WithWindows(60*time.Millisecond, time.Minute), WithBackoff(5*time.Millisecond, time.Second))
	defer l.Close()

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	const n = 5
	order := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("acquire %d: %v", id, err)
				return
			}
			order <- id
		}(i)
		waitPending(t, l, i+1)
	}
	wg.Wait()
	close(order)

	want := 0
	for got := range order {
		if got != want {
			t.Fatalf("grant order broken: got %d want %d", got, want)
		}
		want++
	}
}

func TestDualWindowLimiter_State(t *testing.T) {
	l := NewDualWindowLimiter("state", 3, 30)
	defer l.Close()

	if s := l.State(); s.SecondTokens != 3 || s.MinuteTokens != 30 || s.Pending != 0 {
		t.Fatalf("unexpected initial state %+v", s)
	}
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if s := l.State(); s.SecondTokens != 2 || s.MinuteTokens != 29 {
		t.Fatalf("unexpected state after acquire %+v", s)
	}
}

func TestDualWindowLimiter_canceledWaiterKeepsTokens(t *testing.T) {
	l := NewDualWindowLimiter("cancel", 1, 10, WithWindows(100*time.Millisecond, time.Minute), WithBackoff(5*time.Millisecond, time.Second))
	defer l.Close()

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after cancel: %v", err)
	}
	if s := l.State(); s.MinuteTokens != 8 {
		t.Fatalf("canceled waiter consumed a token: %+v", s)
	}
}

func TestDualWindowLimiter_Close(t *testing.T) {
	l := NewDualWindowLimiter("close", 1, 1, WithWindows(time.Second, time.Minute))

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Acquire(context.Background())
	}()
	waitPending(t, l, 1)
	l.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrLimiterClosed) {
			t.Fatalf("expected ErrLimiterClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("pending waiter not released by Close")
	}

	if err := l.Acquire(context.Background()); !errors.Is(err, ErrLimiterClosed) {
		t.Fatalf("expected ErrLimiterClosed after close, got %v", err)
	}
	l.Close()
}
