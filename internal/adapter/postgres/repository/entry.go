package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pressly/goose"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/domain"
	"github.com/sm8ta/f1_dashboard_cache/internal/core/ports"
)

type PostgresCacheRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewCacheRepository(db *sql.DB) *PostgresCacheRepository {
	return &PostgresCacheRepository{
		db:  db,
		now: time.Now,
	}
}

// Migrate applies the goose migrations found in dir.
func Migrate(db *sql.DB, dir string) error {
	const op = "repository.Migrate"

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *PostgresCacheRepository) Write(ctx context.Context, key string, data json.RawMessage) error {
	const op = "repository.PostgresCacheRepository.Write"

	query := `INSERT INTO cache_entries (key, data, updated_at)
    VALUES ($1, $2, $3)
    ON CONFLICT (key) DO UPDATE
    SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query, key, string(data), r.now().UnixMilli())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "22P02" {
			return fmt.Errorf("%s: invalid JSON payload for %s: %w", op, key, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *PostgresCacheRepository) Read(ctx context.Context, key string) (*domain.CacheEntry, error) {
	const op = "repository.PostgresCacheRepository.Read"

	query := `SELECT key, data, updated_at FROM cache_entries WHERE key = $1`

	entry := &domain.CacheEntry{}
	var data []byte
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&entry.Key,
		&data,
		&entry.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entry.Data = json.RawMessage(data)
	return entry, nil
}

func (r *PostgresCacheRepository) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("repository.PostgresCacheRepository.Reset: %w", err)
	}
	return nil
}

func (r *PostgresCacheRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

var _ ports.CacheStore = (*PostgresCacheRepository)(nil)
