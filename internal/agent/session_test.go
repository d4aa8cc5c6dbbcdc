package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taiagent/taiagent/internal/core"
	"github.com/taiagent/taiagent/internal/store"
)

func openStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSession_AskPersistsTurn(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	clock := &recordingTool{name: "get_current_time", out: "2025-03-09"}
	client := &scriptedClient{replies: []core.Reply{
		{ToolCalls: []core.ToolCall{call("call_1", "get_current_time", core.TextArguments(`{"format":"date"}`))}},
		{Content: "It is Sunday."},
		{Content: "You're welcome."},
	}}
	loop := &Loop{Client: client, Tools: registry(t, clock), Logger: quietLogger()}

	s, err := StartSession(ctx, loop, db, DefaultSystemPrompt, "groq", "qwen-qwq-32b")
	require.NoError(t, err)
	reply, err := s.Ask(ctx, "what   day is it")
	require.NoError(t, err)
	assert.Equal(t, "It is Sunday.", reply)
	reply, err = s.Ask(ctx, "thanks")
	require.NoError(t, err)
	assert.Equal(t, "You're welcome.", reply)

	stored, err := db.SessionMessages(ctx, s.ID)
	require.NoError(t, err)
	var roles []string
	for _, m := range stored {
		roles = append(roles, m.Message.Role)
	}
	assert.Equal(t, []string{"user", "assistant", "tool", "assistant", "user", "assistant"}, roles)
	assert.Len(t, s.Transcript(), 7, "system prompt stays in memory only")

	rec, err := db.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "what day is it", rec.Title)
	assert.Equal(t, 6, rec.MessageCount)
}

func TestSession_FailedTurnNotAnswered(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	client := &scriptedClient{} // every call fails
	loop := &Loop{Client: client, Logger: quietLogger()}

	s, err := StartSession(ctx, loop, db, DefaultSystemPrompt, "groq", "m")
	require.NoError(t, err)
	reply, err := s.Ask(ctx, "hi")
	require.NoError(t, err)
	assert.Equal(t, DefaultFailureText, reply)

	stored, err := db.SessionMessages(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, core.RoleUser, stored[0].Message.Role)
}

func TestResume_TrimsToUserTurn(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	rec, err := db.CreateSession(ctx, "", "ollama", "llama3.1")
	require.NoError(t, err)
	history := []core.Message{
		{Role: core.RoleUser, Content: "q1"},
		{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{call("c1", "nop", nil)}},
		{Role: core.RoleTool, ToolCallID: "c1", Name: "nop", Content: "x"},
		{Role: core.RoleAssistant, Content: "a1"},
		{Role: core.RoleUser, Content: "q2"},
		{Role: core.RoleAssistant, Content: "a2"},
	}
	for _, m := range history {
		_, err := db.InsertMessage(ctx, rec.ID, m)
		require.NoError(t, err)
	}

	loop := &Loop{Client: &scriptedClient{}, Logger: quietLogger()}
	s, err := Resume(ctx, loop, db, rec.ID, "rules", 4)
	require.NoError(t, err)
	want := []core.Message{
		{Role: core.RoleSystem, Content: "rules"},
		{Role: core.RoleUser, Content: "q2"},
		{Role: core.RoleAssistant, Content: "a2"},
	}
	if diff := cmp.Diff(want, s.Transcript()); diff != "" {
		t.Errorf("resumed transcript (-want +got):\n%s", diff)
	}

	_, err = Resume(ctx, loop, db, "missing", "rules", 4)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTrimToUserTurn_NoUser(t *testing.T) {
	assert.Empty(t, TrimToUserTurn([]core.Message{{Role: core.RoleTool}, {Role: core.RoleAssistant}}))
}

func TestNewSession_InMemory(t *testing.T) {
	client := &scriptedClient{replies: []core.Reply{{Content: "hi"}}}
	s := NewSession(&Loop{Client: client, Logger: quietLogger()}, "rules")
	reply, err := s.Ask(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", reply)
	assert.Len(t, s.Transcript(), 3)
}

func TestSessionTitle(t *testing.T) {
	assert.Equal(t, "a b", sessionTitle("  a \n b "))
	long := strings.Repeat("日", 70)
	assert.Equal(t, strings.Repeat("日", 60)+"…", sessionTitle(long))
}

func TestLoadSystemPrompt(t *testing.T) {
	dir := t.TempDir()
	p, err := LoadSystemPrompt(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, p)

	require.NoError(t, os.WriteFile(filepath.Join(dir, PromptFile), []byte("  be brief\n"), 0o644))
	p, err = LoadSystemPrompt(dir)
	require.NoError(t, err)
	assert.Equal(t, "be brief", p)

	p, err = LoadSystemPrompt("")
	require.NoError(t, err)
	assert.Contains(t, p, "get_current_time")
}
