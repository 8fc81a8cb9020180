package ports

import (
	"context"
	"encoding/json"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/domain"
)

// CacheStore is the durable document store shared by the scheduler and the read service.
// Read returns domain.ErrCacheMiss when the key was never populated.
type CacheStore interface {
	Write(ctx context.Context, key string, data json.RawMessage) error
	Read(ctx context.Context, key string) (*domain.CacheEntry, error)
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
}
