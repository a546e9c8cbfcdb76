package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"schemeaccess/pkg/db"
)

// SQLiteStore keeps records in the preference_records table.
type SQLiteStore struct {
	db *db.DB
}

var _ StateStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a store over an initialized database.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM preference_records WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		slog.Warn("Store: failed to read record", "key", key, "error", err)
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preference_records (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, val, time.Now().UTC())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM preference_records WHERE key = ?", key)
	return err
}

// UpdatedAt returns when the record under key was last written.
func (s *SQLiteStore) UpdatedAt(ctx context.Context, key string) (time.Time, bool) {
	var ts time.Time
	err := s.db.QueryRowContext(ctx, "SELECT updated_at FROM preference_records WHERE key = ?", key).Scan(&ts)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
