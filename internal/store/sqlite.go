// Package store persists sessions, transcripts, task runs and system logs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session or run does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps *sql.DB for taiagent storage. Schema is owned by the app.
type DB struct {
	*sql.DB
	now func() time.Time
}

// Open opens the SQLite database at path and applies the schema. Creates file if missing.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	for _, m := range columnMigrations {
		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pragma_table_info(?) WHERE name=?", m.table, m.column).Scan(&count); err == nil && count == 0 {
			if _, err := db.ExecContext(ctx, "ALTER TABLE "+m.table+" ADD COLUMN "+m.column+" "+m.def); err != nil {
				db.Close()
				return nil, fmt.Errorf("migrating schema (%s.%s): %w", m.table, m.column, err)
			}
		}
	}

	return Wrap(db), nil
}

// Wrap adopts an already-open handle (tests use it with go-sqlmock).
func Wrap(db *sql.DB) *DB {
	return &DB{DB: db, now: func() time.Time { return time.Now().UTC() }}
}

// Close closes the database.
func (db *DB) Close() error {
	return db.DB.Close()
}
