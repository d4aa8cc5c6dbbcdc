package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/taiagent/taiagent/internal/health"
)

// LogStore keeps warnings and errors in system_logs with automatic cleanup.
type LogStore struct {
	db         *sql.DB
	mu         sync.Mutex
	maxEntries int // Max log entries to keep
	maxAgeDays int // Max age of logs in days
	now        func() time.Time
}

// NewLogStore creates a new log store with default limits.
func NewLogStore(db *DB) *LogStore {
	return &LogStore{
		db:         db.DB,
		maxEntries: 10000,
		maxAgeDays: 7,
		now:        db.now,
	}
}

// Log writes a log entry.
func (s *LogStore) Log(ctx context.Context, level, component, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO system_logs (timestamp, level, component, message) VALUES (?, ?, ?, ?)",
		s.now(), level, component, message,
	)
	return err
}

// Recent retrieves recent logs, newest first, with optional filters.
func (s *LogStore) Recent(ctx context.Context, level, component string, limit int) ([]health.LogEntry, error) {
	query := "SELECT id, timestamp, level, component, message FROM system_logs WHERE 1=1"
	args := []interface{}{}

	if level != "" {
		query += " AND level = ?"
		args = append(args, level)
	}
	if component != "" {
		query += " AND component = ?"
		args = append(args, component)
	}

	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []health.LogEntry
	for rows.Next() {
		var entry health.LogEntry
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Level, &entry.Component, &entry.Message); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// Prune removes logs older than the age limit, then all but the newest maxEntries.
func (s *LogStore) Prune(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().AddDate(0, 0, -s.maxAgeDays)
	if _, err := s.db.ExecContext(ctx, "DELETE FROM system_logs WHERE timestamp < ?", cutoff); err != nil {
		return fmt.Errorf("cleanup by age: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM system_logs WHERE id NOT IN (
			SELECT id FROM system_logs ORDER BY id DESC LIMIT ?
		)
	`, s.maxEntries)
	if err != nil {
		return fmt.Errorf("cleanup by count: %w", err)
	}
	return nil
}

// Count returns the number of log entries.
func (s *LogStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM system_logs").Scan(&count)
	return count, err
}
