package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/domain"
)

func newMockRepo(t *testing.T) (*PostgresCacheRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCacheRepository(db), mock
}

func TestWrite_upserts(t *testing.T) {
	repo, mock := newMockRepo(t)
	fixed := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cache_entries")).
		WithArgs("meetings_2026", `[{"meeting_key":1}]`, fixed.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Write(context.Background(), "meetings_2026", json.RawMessage(`[{"meeting_key":1}]`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRead_found(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"key", "data", "updated_at"}).
		AddRow("latest_session", []byte(`[{"session_key":9693}]`), int64(1760000000000))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, data, updated_at FROM cache_entries WHERE key = $1")).
		WithArgs("latest_session").
		WillReturnRows(rows)

	entry, err := repo.Read(context.Background(), "latest_session")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if entry.Key != "latest_session" || string(entry.Data) != `[{"session_key":9693}]` || entry.Timestamp != 1760000000000 {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestRead_miss(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, data, updated_at FROM cache_entries")).
		WithArgs("stints_1").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.Read(context.Background(), "stints_1"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestReset(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cache_entries")).
		WillReturnResult(sqlmock.NewResult(0, 12))

	if err := repo.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRead_errorCarriesOperation(t *testing.T) {
	repo, mock := newMockRepo(t)
	connErr := errors.New("connection refused")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, data, updated_at FROM cache_entries")).
		WithArgs("weather_1").
		WillReturnError(connErr)

	_, err := repo.Read(context.Background(), "weather_1")
	if !errors.Is(err, connErr) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "repository.PostgresCacheRepository.Read: ") {
		t.Fatalf("error lacks operation prefix: %v", err)
	}
}

func TestMigration_storesDocumentsVerbatim(t *testing.T) {
	raw, err := os.ReadFile("../migrations/00001_create_cache_entries.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	ddl := string(raw)
	if !strings.Contains(ddl, "data       JSON NOT NULL") || strings.Contains(ddl, "JSONB") {
		t.Fatalf("cache documents must use the JSON column type:\n%s", ddl)
	}
}
