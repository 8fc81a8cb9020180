// Package client is the consumer side of the read service: a two tier
// stale-while-revalidate cache with in-flight coalescing.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultRefreshTimeout = 30 * time.Second

type Entry struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func (e *Entry) age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(e.Timestamp))
}

// Logger matches the service logger so one adapter serves both.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{}) {}
func (nopLogger) Warn(string, map[string]interface{})  {}

type Option func(*Cache)

// WithPersistentStore adds the durable tier. Without it the cache is memory only.
func WithPersistentStore(store PersistentStore) Option {
	return func(c *Cache) {
		c.persistent = store
	}
}

func WithTTLs(ttls TTLTable) Option {
	return func(c *Cache) {
		c.ttls = ttls
	}
}

func WithLogger(logger Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithRefreshTimeout bounds background refreshes, which outlive the Get that started them.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.refreshTimeout = d
	}
}

type Cache struct {
	fetcher        Fetcher
	persistent     PersistentStore
	broker         *Broker
	ttls           TTLTable
	logger         Logger
	now            func() time.Time
	refreshTimeout time.Duration

	mu       sync.RWMutex
	memory   map[string]*Entry
	inflight singleflight.Group
}

func New(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:        fetcher,
		broker:         NewBroker(),
		ttls:           DefaultTTLs(),
		logger:         nopLogger{},
		now:            time.Now,
		refreshTimeout: defaultRefreshTimeout,
		memory:         make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key identifies a resource instance; parameters are encoded in sorted order.
func Key(resource string, params url.Values) string {
	if len(params) == 0 {
		return resource
	}
	return resource + "?" + params.Encode()
}

// Get returns the cached data for resource. An absent key is fetched
// synchronously. A fresh key never touches the network. A stale key is
// returned as is while one background refresh runs for it.
// ttl <= 0 uses the TTL table.
func (c *Cache) Get(ctx context.Context, resource string, params url.Values, ttl time.Duration) (json.RawMessage, error) {
	if ttl <= 0 {
		ttl = c.ttls.For(resource)
	}
	key := Key(resource, params)

	entry := c.lookup(ctx, key)
	if entry == nil {
		return c.fetch(ctx, key, resource, params)
	}

	if entry.age(c.now()) >= ttl {
		c.revalidate(key, resource, params)
	}
	return entry.Data, nil
}

// Subscribe is notified after every successful background refresh of key.
func (c *Cache) Subscribe(key string, fn func(Update)) func() {
	return c.broker.Subscribe(key, fn)
}

// Hydrate loads the persistent tier into memory. Entries already in memory win.
func (c *Cache) Hydrate(ctx context.Context) (int, error) {
	if c.persistent == nil {
		return 0, nil
	}
	entries, err := c.persistent.All(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	loaded := 0
	for _, e := range entries {
		if _, ok := c.memory[e.Key]; ok {
			continue
		}
		c.memory[e.Key] = e
		loaded++
	}
	return loaded, nil
}

// Invalidate drops key from both tiers so the next Get fetches synchronously.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.memory, key)
	c.mu.Unlock()

	if c.persistent == nil {
		return nil
	}
	return c.persistent.Delete(ctx, key)
}

func (c *Cache) lookup(ctx context.Context, key string) *Entry {
	c.mu.RLock()
	entry, ok := c.memory[key]
	c.mu.RUnlock()
	if ok {
		return entry
	}
	if c.persistent == nil {
		return nil
	}

	entry, err := c.persistent.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("Persistent cache read failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		return nil
	}

	c.mu.Lock()
	if current, ok := c.memory[key]; ok {
		entry = current
	} else {
		c.memory[key] = entry
	}
	c.mu.Unlock()
	return entry
}

// fetch loads an absent key. Callers share one fetch that no single caller
// can cancel; each caller stops waiting when its own ctx ends.
func (c *Cache) fetch(ctx context.Context, key, resource string, params url.Values) (json.RawMessage, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.inflight.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(shared, c.refreshTimeout)
		defer cancel()
		return c.refresh(fetchCtx, key, resource, params, false)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Entry).Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// revalidate joins the refresh already running for key or starts one.
// DoChan registers the call before returning, so concurrent stale reads
// share a single fetch.
func (c *Cache) revalidate(key, resource string, params url.Values) {
	c.inflight.DoChan(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
		defer cancel()
		return c.refresh(ctx, key, resource, params, true)
	})
}

func (c *Cache) refresh(ctx context.Context, key, resource string, params url.Values, notify bool) (*Entry, error) {
	data, err := c.fetcher.Fetch(ctx, resource, params)
	if err != nil {
		c.logger.Warn("Cache refresh failed", map[string]interface{}{
			"key":        key,
			"background": notify,
			"error":      err.Error(),
		})
		return nil, err
	}

	entry := &Entry{Key: key, Data: data, Timestamp: c.now().UnixMilli()}

	c.mu.Lock()
	c.memory[key] = entry
	c.mu.Unlock()

	c.persist(ctx, entry)

	if notify {
		c.broker.Publish(Update{Key: key, Data: data, Timestamp: entry.Timestamp})
	}
	return entry, nil
}

// persist writes through to the durable tier. On quota errors entries older
// than the longest TTL are removed and the write is retried once, then dropped.
func (c *Cache) persist(ctx context.Context, entry *Entry) {
	if c.persistent == nil {
		return
	}

	err := c.persistent.Set(ctx, entry)
	if errors.Is(err, ErrQuotaExceeded) {
		removed, cleanupErr := c.persistent.Cleanup(ctx, c.now().Add(-c.ttls.Max()))
		if cleanupErr != nil {
			c.logger.Warn("Persistent cache cleanup failed", map[string]interface{}{
				"error": cleanupErr.Error(),
			})
		}
		c.logger.Debug("Persistent cache quota exceeded", map[string]interface{}{
			"key":     entry.Key,
			"removed": removed,
		})
		err = c.persistent.Set(ctx, entry)
	}
	if err != nil {
		c.logger.Debug("Persistent cache write dropped", map[string]interface{}{
			"key":   entry.Key,
			"error": err.Error(),
		})
	}
}
