package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound      = errors.New("entry not found")
	ErrQuotaExceeded = errors.New("persistent storage quota exceeded")
)

// PersistentStore is the durable tier used to hydrate a cold process.
type PersistentStore interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
	All(ctx context.Context) ([]*Entry, error)
}

// SQLiteStore keeps entries in a single sqlite file. Writes that would grow
// the stored payload beyond maxBytes fail with ErrQuotaExceeded.
type SQLiteStore struct {
	db       *sql.DB
	maxBytes int64
	mu       sync.Mutex
}

func OpenSQLiteStore(path string, maxBytes int64) (*SQLiteStore, error) {
	const op = "client.OpenSQLiteStore"

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	db.SetMaxOpenConns(1)

	query := `
	CREATE TABLE IF NOT EXISTS entries (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		timestamp INTEGER NOT NULL
	)`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &SQLiteStore{db: db, maxBytes: maxBytes}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	entry := &Entry{Key: key}
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data, timestamp FROM entries WHERE key = ?", key).
		Scan(&data, &entry.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("client.SQLiteStore.Get: %w", err)
	}
	entry.Data = data
	return entry, nil
}

func (s *SQLiteStore) Set(ctx context.Context, entry *Entry) error {
	const op = "client.SQLiteStore.Set"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxBytes > 0 {
		var used int64
		err := s.db.QueryRowContext(ctx,
			"SELECT COALESCE(SUM(LENGTH(key) + LENGTH(data)), 0) FROM entries WHERE key != ?", entry.Key).
			Scan(&used)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if used+int64(len(entry.Key)+len(entry.Data)) > s.maxBytes {
			return ErrQuotaExceeded
		}
	}

	query := `
	INSERT INTO entries (key, data, timestamp) VALUES (?, ?, ?)
	ON CONFLICT (key) DO UPDATE SET data = excluded.data, timestamp = excluded.timestamp`
	if _, err := s.db.ExecContext(ctx, query, entry.Key, []byte(entry.Data), entry.Timestamp); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("client.SQLiteStore.Delete: %w", err)
	}
	return nil
}

// Cleanup removes entries written before olderThan.
func (s *SQLiteStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE timestamp < ?", olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("client.SQLiteStore.Cleanup: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) All(ctx context.Context) ([]*Entry, error) {
	const op = "client.SQLiteStore.All"

	rows, err := s.db.QueryContext(ctx, "SELECT key, data, timestamp FROM entries")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		var data []byte
		if err := rows.Scan(&entry.Key, &data, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		entry.Data = data
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ PersistentStore = (*SQLiteStore)(nil)
