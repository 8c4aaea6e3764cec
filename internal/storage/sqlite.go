// Package storage keeps persisted ledger payloads in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"saldo/internal/kv"

	_ "modernc.org/sqlite"
)

var _ kv.Store = (*SQLiteStore)(nil)

// SQLiteStore is a key/value adapter over the kv_entries table.
type SQLiteStore struct {
	db *sql.DB
}

// Entry is one stored value with its bookkeeping columns.
type Entry struct {
	Key       string
	Value     []byte
	Version   int64
	UpdatedAt time.Time
}

func dsn(path string) string {
	return filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the value stored under key. A missing key is not an error.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, ok, err := s.Entry(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	return e.Value, true, nil
}

// Entry returns the full row for key.
func (s *SQLiteStore) Entry(ctx context.Context, key string) (Entry, bool, error) {
	var (
		e       Entry
		updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT key, value, version, updated_at FROM kv_entries WHERE key = ?`, key,
	).Scan(&e.Key, &e.Value, &e.Version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get %q: %w", key, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		e.UpdatedAt = t
	}
	return e, true, nil
}

// Set replaces the value under key and bumps its version.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO kv_entries (key, value, version, updated_at)
VALUES (?, ?, 1, ?)
ON CONFLICT(key) DO UPDATE SET
    value = excluded.value,
    version = kv_entries.version + 1,
    updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	slog.DebugContext(ctx, "Stored value", "key", key, "bytes", len(value))
	return nil
}

// Version returns the write counter of key, zero when absent.
func (s *SQLiteStore) Version(ctx context.Context, key string) (int64, error) {
	e, _, err := s.Entry(ctx, key)
	return e.Version, err
}
