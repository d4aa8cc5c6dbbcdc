package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one stored conversation.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// CreateSession inserts a session with a fresh id.
func (db *DB) CreateSession(ctx context.Context, title, provider, model string) (Session, error) {
	now := db.now()
	s := Session{ID: uuid.NewString(), Title: title, Provider: provider, Model: model, CreatedAt: now, UpdatedAt: now}
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, provider, model, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Title, s.Provider, s.Model, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// GetSession returns the session by id, or ErrNotFound.
func (db *DB) GetSession(ctx context.Context, id string) (Session, error) {
	var s Session
	err := db.QueryRowContext(ctx,
		`SELECT s.id, s.title, s.provider, s.model, s.created_at, s.updated_at,
		        (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
		 FROM sessions s WHERE s.id = ?`, id,
	).Scan(&s.ID, &s.Title, &s.Provider, &s.Model, &s.CreatedAt, &s.UpdatedAt, &s.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// TouchSession bumps updated_at; a blank title is filled from title.
func (db *DB) TouchSession(ctx context.Context, id, title string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ?, title = CASE WHEN title = '' THEN ? ELSE title END WHERE id = ?`,
		db.now(), title, id,
	)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListSessions returns the most recently updated sessions first.
func (db *DB) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx,
		`SELECT s.id, s.title, s.provider, s.model, s.created_at, s.updated_at,
		        (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
		 FROM sessions s ORDER BY s.updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Title, &s.Provider, &s.Model, &s.CreatedAt, &s.UpdatedAt, &s.MessageCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
