// Package sqlite implements the derived cache on an embedded SQLite
// database file, using the wasm-backed ncruces driver so no cgo or system
// library is required.
package sqlite

import (
	"context"
	"database/sql"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/beadify/beadify/internal/storage"
	"github.com/beadify/beadify/internal/types"
)

// SQLiteStorage is the cache handle. One open handle serializes all cache
// access for the invocation: a single connection, one write transaction
// per public operation.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the cache at dbPath and ensures the
// schema exists. Foreign keys are enforced and write transactions take
// the database lock up front (BEGIN IMMEDIATE) so concurrent local
// invocations fail fast instead of deadlocking.
func New(ctx context.Context, dbPath string) (*SQLiteStorage, error) {
	dsn := "file:" + dbPath + "?_txlock=immediate&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &types.DatabaseError{Operation: "open cache", Err: err}
	}

	// The cache is accessed from a single logical connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, &types.DatabaseError{Operation: "create schema", Err: err}
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

// Close releases the database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// RunInTransaction runs fn inside a single write transaction. Rollback on
// error or panic, commit otherwise.
func (s *SQLiteStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &types.DatabaseError{Operation: "begin transaction", Err: err}
	}

	committed := false
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&sqliteTx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &types.DatabaseError{Operation: "commit transaction", Err: err}
	}
	committed = true
	return nil
}

// sqliteTx adapts *sql.Tx to the storage.Transaction interface.
type sqliteTx struct {
	tx *sql.Tx
}

var _ storage.Transaction = (*sqliteTx)(nil)
