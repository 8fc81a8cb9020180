package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrCacheMiss is returned by a store when no document exists for a key.
var ErrCacheMiss = errors.New("cache miss")

// CacheEntry is the last good upstream payload stored under a deterministic key.
type CacheEntry struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func NewCacheEntry(key string, data json.RawMessage, at time.Time) *CacheEntry {
	return &CacheEntry{
		Key:       key,
		Data:      data,
		Timestamp: at.UnixMilli(),
	}
}

// Age is measured against the write timestamp, never negative.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	age := now.Sub(time.UnixMilli(e.Timestamp))
	if age < 0 {
		return 0
	}
	return age
}
