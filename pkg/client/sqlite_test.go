package client

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T, maxBytes int64) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "cache.db"), maxBytes)
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_lastWriteWins(t *testing.T) {
	store := openTestStore(t, 0)
	ctx := context.Background()

	if _, err := store.Get(ctx, "getLatestSession"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	store.Set(ctx, &Entry{Key: "getLatestSession", Data: []byte(`["a"]`), Timestamp: 1})
	store.Set(ctx, &Entry{Key: "getLatestSession", Data: []byte(`["b"]`), Timestamp: 2})

	e, err := store.Get(ctx, "getLatestSession")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(e.Data) != `["b"]` || e.Timestamp != 2 {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestSQLiteStore_quota(t *testing.T) {
	// key and data of one entry fit, two do not
	store := openTestStore(t, 30)
	ctx := context.Background()

	if err := store.Set(ctx, &Entry{Key: "k1", Data: []byte(`"0123456789abcdef"`)}); err != nil {
		t.Fatalf("first Set: %v", err)
	}
	if err := store.Set(ctx, &Entry{Key: "k2", Data: []byte(`"0123456789abcdef"`)}); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	// overwriting the same key does not count its previous size
	if err := store.Set(ctx, &Entry{Key: "k1", Data: []byte(`"fedcba9876543210"`)}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestSQLiteStore_Cleanup(t *testing.T) {
	store := openTestStore(t, 0)
	ctx := context.Background()
	now := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)

	store.Set(ctx, &Entry{Key: "old", Data: []byte(`1`), Timestamp: now.Add(-48 * time.Hour).UnixMilli()})
	store.Set(ctx, &Entry{Key: "new", Data: []byte(`2`), Timestamp: now.UnixMilli()})

	removed, err := store.Cleanup(ctx, now.Add(-24*time.Hour))
	if err != nil || removed != 1 {
		t.Fatalf("Cleanup = %d, %v", removed, err)
	}
	entries, err := store.All(ctx)
	if err != nil || len(entries) != 1 || entries[0].Key != "new" {
		t.Fatalf("unexpected remaining entries %v %v", entries, err)
	}
	if err := store.Delete(ctx, "new"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if entries, _ := store.All(ctx); len(entries) != 0 {
		t.Fatalf("entry survived Delete")
	}
}
