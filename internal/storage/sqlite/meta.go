package sqlite

import (
	"context"
	"database/sql"

	"github.com/beadify/beadify/internal/types"
)

// SetMeta upserts one repo metadata key.
func (t *sqliteTx) SetMeta(ctx context.Context, key, value string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO _meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return &types.DatabaseError{Operation: "set meta " + key, Err: err}
	}
	return nil
}

// GetMeta returns the metadata value, or "" when the key is absent.
func (t *sqliteTx) GetMeta(ctx context.Context, key string) (string, error) {
	return getMeta(ctx, t.tx.QueryRowContext, key)
}

// GetMeta returns the metadata value, or "" when the key is absent.
func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, error) {
	return getMeta(ctx, s.db.QueryRowContext, key)
}

type queryRowFunc func(ctx context.Context, query string, args ...interface{}) *sql.Row

func getMeta(ctx context.Context, queryRow queryRowFunc, key string) (string, error) {
	var value string
	err := queryRow(ctx, `SELECT value FROM _meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", &types.DatabaseError{Operation: "get meta " + key, Err: err}
	}
	return value, nil
}
