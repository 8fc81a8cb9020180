package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sm8ta/f1_dashboard_cache/internal/adapter/logger"
	"github.com/sm8ta/f1_dashboard_cache/internal/core/domain"
)

type memoryStore struct {
	mu       sync.Mutex
	entries  map[string]*domain.CacheEntry
	failKeys map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		entries:  make(map[string]*domain.CacheEntry),
		failKeys: make(map[string]bool),
	}
}

func (s *memoryStore) Write(_ context.Context, key string, data json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failKeys[key] {
		return errors.New("store unavailable")
	}
	s.entries[key] = domain.NewCacheEntry(key, data, time.Now())
	return nil
}

func (s *memoryStore) Read(_ context.Context, key string) (*domain.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failKeys[key] {
		return nil, errors.New("store unavailable")
	}
	e, ok := s.entries[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return e, nil
}

func (s *memoryStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*domain.CacheEntry)
	return nil
}

func (s *memoryStore) Ping(context.Context) error { return nil }

func (s *memoryStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *memoryStore) data(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		return string(e.Data)
	}
	return ""
}

// fakeUpstream answers by "provider endpoint?query".
type fakeUpstream struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]error
	calls     []string
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		responses: make(map[string]string),
		failures:  make(map[string]error),
	}
}

func requestID(provider domain.Provider, endpoint string, params url.Values) string {
	id := string(provider) + " " + endpoint
	if len(params) > 0 {
		id += "?" + params.Encode()
	}
	return id
}

func (u *fakeUpstream) on(id, body string) {
	u.responses[id] = body
}

func (u *fakeUpstream) fail(id string, err error) {
	u.failures[id] = err
}

func (u *fakeUpstream) FetchResource(_ context.Context, provider domain.Provider, endpoint string, params url.Values) (json.RawMessage, error) {
	id := requestID(provider, endpoint, params)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, id)
	if err, ok := u.failures[id]; ok {
		return nil, err
	}
	if body, ok := u.responses[id]; ok {
		return json.RawMessage(body), nil
	}
	return nil, errors.New("unexpected request " + id)
}

func (u *fakeUpstream) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

type nopMetrics struct{}

func (nopMetrics) IncrementCounter(string, map[string]string)              {}
func (nopMetrics) RecordDuration(string, time.Duration, map[string]string) {}
func (nopMetrics) RecordMetrics(*gin.Context, time.Time)                   {}

var testLogger = logger.NewDiscardLogger()
