package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taiagent/taiagent/internal/core"
)

// StoredMessage is a transcript entry with its row metadata.
type StoredMessage struct {
	ID        int64        `json:"id"`
	SessionID string       `json:"session_id"`
	Message   core.Message `json:"message"`
	CreatedAt time.Time    `json:"created_at"`
}

// InsertMessage appends m to the session's transcript and returns its id.
// Tool calls are stored as JSON with their argument payloads verbatim.
func (db *DB) InsertMessage(ctx context.Context, sessionID string, m core.Message) (int64, error) {
	var toolCalls sql.NullString
	if len(m.ToolCalls) > 0 {
		raw, err := json.Marshal(m.ToolCalls)
		if err != nil {
			return 0, fmt.Errorf("encode tool calls: %w", err)
		}
		toolCalls = sql.NullString{String: string(raw), Valid: true}
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, tool_calls, tool_call_id, name, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, m.Role, m.Content, toolCalls, nullString(m.ToolCallID), nullString(m.Name), db.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	return res.LastInsertId()
}

// RecentMessages returns the last limit messages of the session in chronological order.
func (db *DB) RecentMessages(ctx context.Context, sessionID string, limit int) ([]core.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, session_id, role, content, tool_calls, tool_call_id, name, created_at
		 FROM messages WHERE session_id = ? ORDER BY id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	stored, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	// Reverse to get chronological order
	out := make([]core.Message, len(stored))
	for i, m := range stored {
		out[len(stored)-1-i] = m.Message
	}
	return out, nil
}

// SessionMessages returns the whole transcript of a session in order.
func (db *DB) SessionMessages(ctx context.Context, sessionID string) ([]StoredMessage, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, session_id, role, content, tool_calls, tool_call_id, name, created_at
		 FROM messages WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session messages: %w", err)
	}
	return scanMessages(rows)
}

// MessageCount returns the number of stored messages.
func (db *DB) MessageCount(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&count)
	return count, err
}

func scanMessages(rows *sql.Rows) ([]StoredMessage, error) {
	defer rows.Close()
	var out []StoredMessage
	for rows.Next() {
		var m StoredMessage
		var toolCalls, toolCallID, name sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Message.Role, &m.Message.Content, &toolCalls, &toolCallID, &name, &m.CreatedAt); err != nil {
			return nil, err
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &m.Message.ToolCalls); err != nil {
				return nil, fmt.Errorf("message %d: decode tool calls: %w", m.ID, err)
			}
		}
		m.Message.ToolCallID = toolCallID.String
		m.Message.Name = name.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
