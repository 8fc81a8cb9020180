package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/domain"
	"github.com/sm8ta/f1_dashboard_cache/internal/core/ports"
)

const resetScanCount = 500

// RedisAdapter stores each CacheEntry as one JSON document under prefix+key.
// Entries carry no expiry; only Reset removes them.
type RedisAdapter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisAdapter(client redis.UniversalClient, prefix string) *RedisAdapter {
	return &RedisAdapter{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (r *RedisAdapter) Write(ctx context.Context, key string, data json.RawMessage) error {
	const op = "redis.Write"

	payload, err := json.Marshal(domain.NewCacheEntry(key, data, r.now()))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := r.client.Set(ctx, r.prefix+key, payload, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *RedisAdapter) Read(ctx context.Context, key string) (*domain.CacheEntry, error) {
	const op = "redis.Read"

	result, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(result, &entry); err != nil {
		return nil, fmt.Errorf("%s: decode %s: %w", op, key, err)
	}
	return &entry, nil
}

// Reset deletes every entry under the adapter's prefix.
func (r *RedisAdapter) Reset(ctx context.Context) error {
	const op = "redis.Reset"

	iter := r.client.Scan(ctx, 0, r.prefix+"*", resetScanCount).Iterator()
	batch := make([]string, 0, resetScanCount)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == resetScanCount {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var _ ports.CacheStore = (*RedisAdapter)(nil)
