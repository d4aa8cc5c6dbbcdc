package agent

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/taiagent/taiagent/internal/core"
	"github.com/taiagent/taiagent/internal/store"
)

// DefaultHistoryMessages is how many stored messages Resume reloads by default.
const DefaultHistoryMessages = 20

const titleRunes = 60

// SessionStore persists conversations. *store.DB implements it.
type SessionStore interface {
	CreateSession(ctx context.Context, title, provider, model string) (store.Session, error)
	GetSession(ctx context.Context, id string) (store.Session, error)
	TouchSession(ctx context.Context, id, title string) error
	InsertMessage(ctx context.Context, sessionID string, m core.Message) (int64, error)
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]core.Message, error)
}

// Session owns one conversation transcript. It is not safe for concurrent use.
type Session struct {
	ID     string
	Loop   *Loop
	Store  SessionStore // nil keeps the conversation in memory only
	Logger *slog.Logger

	transcript []core.Message
}

// NewSession starts an unsaved conversation with the given system prompt.
func NewSession(loop *Loop, systemPrompt string) *Session {
	return &Session{Loop: loop, transcript: []core.Message{{Role: core.RoleSystem, Content: systemPrompt}}}
}

// StartSession creates a stored conversation.
func StartSession(ctx context.Context, loop *Loop, st SessionStore, systemPrompt, provider, model string) (*Session, error) {
	rec, err := st.CreateSession(ctx, "", provider, model)
	if err != nil {
		return nil, err
	}
	s := NewSession(loop, systemPrompt)
	s.ID = rec.ID
	s.Store = st
	return s, nil
}

// Resume reloads the last limit messages of a stored conversation behind a
// fresh system prompt. The window starts at a user message.
func Resume(ctx context.Context, loop *Loop, st SessionStore, id, systemPrompt string, limit int) (*Session, error) {
	if _, err := st.GetSession(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryMessages
	}
	history, err := st.RecentMessages(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("resume session %s: %w", id, err)
	}
	s := NewSession(loop, systemPrompt)
	s.ID = id
	s.Store = st
	s.transcript = append(s.transcript, TrimToUserTurn(history)...)
	return s, nil
}

// TrimToUserTurn drops leading messages until the first user message so a
// window never opens on an orphaned tool result or assistant echo.
func TrimToUserTurn(history []core.Message) []core.Message {
	for i, m := range history {
		if m.Role == core.RoleUser {
			return history[i:]
		}
	}
	return nil
}

// Transcript returns a copy of the current transcript.
func (s *Session) Transcript() []core.Message {
	return slices.Clone(s.transcript)
}

func (s *Session) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return s.Loop.logger()
}

// Ask sends one user turn and returns the reply. A failed run yields the
// loop's failure text and is not an error; the returned error reports
// persistence failures only.
func (s *Session) Ask(ctx context.Context, input string) (string, error) {
	s.transcript = append(s.transcript, core.Message{Role: core.RoleUser, Content: input})
	from := len(s.transcript) - 1

	reply, transcript := s.Loop.Respond(ctx, s.transcript)
	s.transcript = transcript

	if s.Store == nil || s.ID == "" {
		return reply, nil
	}
	// Persist even when the turn was cancelled.
	pctx := context.WithoutCancel(ctx)
	for _, m := range s.transcript[from:] {
		if m.Role == core.RoleSystem {
			continue
		}
		if _, err := s.Store.InsertMessage(pctx, s.ID, m); err != nil {
			return reply, fmt.Errorf("save message: %w", err)
		}
	}
	if err := s.Store.TouchSession(pctx, s.ID, sessionTitle(input)); err != nil {
		s.logger().Warn("session touch failed", "session", s.ID, "error", err)
	}
	return reply, nil
}

func sessionTitle(input string) string {
	t := strings.Join(strings.Fields(input), " ")
	if utf8.RuneCountInString(t) <= titleRunes {
		return t
	}
	return string([]rune(t)[:titleRunes]) + "…"
}
