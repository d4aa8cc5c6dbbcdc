package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"github.com/taiagent/taiagent/internal/core"
	"github.com/taiagent/taiagent/internal/health"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "again.db")
	db, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()
	db, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	db.Close()
}

func TestSessions_CreateTouchList(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)
	clock := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)
	db.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	s1, err := db.CreateSession(ctx, "", "groq", "qwen-qwq-32b")
	if err != nil {
		t.Fatal(err)
	}
	s2, err := db.CreateSession(ctx, "second", "ollama", "llama3.1")
	if err != nil {
		t.Fatal(err)
	}
	if s1.ID == "" || s1.ID == s2.ID {
		t.Fatalf("ids: %q %q", s1.ID, s2.ID)
	}

	if err := db.TouchSession(ctx, s1.ID, "what day is it"); err != nil {
		t.Fatal(err)
	}
	if err := db.TouchSession(ctx, s2.ID, "ignored"); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetSession(ctx, s1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "what day is it" || got.Provider != "groq" || got.Model != "qwen-qwq-32b" {
		t.Errorf("session: %+v", got)
	}
	got2, _ := db.GetSession(ctx, s2.ID)
	if got2.Title != "second" {
		t.Errorf("title overwritten: %q", got2.Title)
	}

	list, err := db.ListSessions(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != s2.ID {
		t.Errorf("list order: %+v", list)
	}

	if _, err := db.GetSession(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession missing: %v", err)
	}
	if err := db.TouchSession(ctx, "nope", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("TouchSession missing: %v", err)
	}
}

func TestMessages_RoundTripAndOrder(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)
	s, err := db.CreateSession(ctx, "", "ollama", "llama3.1")
	if err != nil {
		t.Fatal(err)
	}

	objArgs, _ := core.ObjectArguments(map[string]any{"format": "date"})
	transcript := []core.Message{
		{Role: core.RoleSystem, Content: "rules"},
		{Role: core.RoleUser, Content: "what day is it"},
		{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{{ID: "call_1", Type: "function",
			Function: core.FunctionCall{Name: "get_current_time", Arguments: objArgs}}}},
		{Role: core.RoleTool, ToolCallID: "call_1", Name: "get_current_time", Content: "2025-03-09"},
		{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{{ID: "call_2", Type: "function",
			Function: core.FunctionCall{Name: "nop", Arguments: core.TextArguments(`{"reason":"x"}`)}}}},
		{Role: core.RoleTool, ToolCallID: "call_2", Name: "nop", Content: "x"},
		{Role: core.RoleAssistant, Content: "It is Sunday."},
	}
	for _, m := range transcript {
		if _, err := db.InsertMessage(ctx, s.ID, m); err != nil {
			t.Fatal(err)
		}
	}

	all, err := db.SessionMessages(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]core.Message, len(all))
	for i, m := range all {
		got[i] = m.Message
		if m.SessionID != s.ID || m.CreatedAt.IsZero() {
			t.Errorf("row %d metadata: %+v", i, m)
		}
	}
	if diff := cmp.Diff(transcript, got); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
	// Arguments keep their wire form.
	if got[2].ToolCalls[0].Function.Arguments.IsText() || !got[4].ToolCalls[0].Function.Arguments.IsText() {
		t.Error("argument payload form changed in storage")
	}

	recent, err := db.RecentMessages(ctx, s.ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(transcript[4:], recent); diff != "" {
		t.Errorf("recent mismatch (-want +got):\n%s", diff)
	}

	n, err := db.MessageCount(ctx)
	if err != nil || n != len(transcript) {
		t.Errorf("count = %d, %v", n, err)
	}
}

func TestTaskRuns(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	if err := db.CreateTaskRun(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", "plan a trip"); err != nil {
		t.Fatal(err)
	}
	recs := []StepRecord{
		{RunID: "01HZZZZZZZZZZZZZZZZZZZZZZZ", Index: 2, Description: "book hotel", Status: "skipped", Attempts: 3, Error: "HTTP 503"},
		{RunID: "01HZZZZZZZZZZZZZZZZZZZZZZZ", Index: 1, Description: "find flights", Status: "pending"},
	}
	for _, r := range recs {
		if err := db.RecordStep(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	// Upsert replaces the pending row.
	done := StepRecord{RunID: recs[1].RunID, Index: 1, Description: "find flights", Status: "succeeded", Attempts: 1, Output: "3 flights"}
	if err := db.RecordStep(ctx, done); err != nil {
		t.Fatal(err)
	}
	if err := db.FinishTaskRun(ctx, recs[0].RunID, RunPartial); err != nil {
		t.Fatal(err)
	}

	run, err := db.GetTaskRun(ctx, recs[0].RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != RunPartial || run.FinishedAt == nil || run.Request != "plan a trip" {
		t.Errorf("run: %+v", run)
	}
	steps, err := db.TaskRunSteps(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []StepRecord{done, recs[0]}
	if diff := cmp.Diff(want, steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}

	if err := db.FinishTaskRun(ctx, "missing", RunFailed); !errors.Is(err, ErrNotFound) {
		t.Errorf("finish missing: %v", err)
	}
}

func TestLogStore_RecentAndPrune(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)
	ls := NewLogStore(db)

	now := time.Now().UTC()
	ls.now = func() time.Time { return now.AddDate(0, 0, -30) }
	if err := ls.Log(ctx, "error", "groq", "ancient"); err != nil {
		t.Fatal(err)
	}
	ls.now = func() time.Time { return now }
	for _, msg := range []string{"a", "b", "c"} {
		if err := ls.Log(ctx, "warn", "agent", msg); err != nil {
			t.Fatal(err)
		}
	}
	if err := ls.Log(ctx, "error", "tasks", "boom"); err != nil {
		t.Fatal(err)
	}

	errs, err := ls.Recent(ctx, "error", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 2 || errs[0].Message != "boom" {
		t.Errorf("errors: %+v", errs)
	}

	ls.maxEntries = 3
	if err := ls.Prune(ctx); err != nil {
		t.Fatal(err)
	}
	n, _ := ls.Count(ctx)
	if n != 3 {
		t.Errorf("count after prune = %d, want 3", n)
	}
	left, _ := ls.Recent(ctx, "", "", 10)
	if left[0].Message != "boom" || left[2].Message != "b" {
		t.Errorf("kept wrong entries: %+v", left)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTest(t)
	if h := db.HealthCheck(); h.Status != health.StatusOK {
		t.Errorf("status = %s (%s)", h.Status, h.Message)
	}
}

func TestInsertMessage_ExecError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer sqlDB.Close()
	db := Wrap(sqlDB)

	mock.ExpectExec("INSERT INTO messages").
		WithArgs("s1", "user", "hi", nil, nil, nil, sqlmock.AnyArg()).
		WillReturnError(errors.New("disk I/O error"))

	_, err = db.InsertMessage(context.Background(), "s1", core.Message{Role: core.RoleUser, Content: "hi"})
	if err == nil || err.Error() != "insert message: disk I/O error" {
		t.Errorf("err = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRecentMessages_BadToolCallsJSON(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer sqlDB.Close()
	db := Wrap(sqlDB)

	rows := sqlmock.NewRows([]string{"id", "session_id", "role", "content", "tool_calls", "tool_call_id", "name", "created_at"}).
		AddRow(7, "s1", "assistant", "", "{not json", nil, nil, time.Now())
	mock.ExpectQuery("SELECT id, session_id, role").WithArgs("s1", 5).WillReturnRows(rows)

	if _, err := db.RecentMessages(context.Background(), "s1", 5); err == nil {
		t.Error("expected decode error")
	}
}

func TestHealthCheck_PingFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatal(err)
	}
	defer sqlDB.Close()
	mock.ExpectPing().WillReturnError(errors.New("database is locked"))

	h := Wrap(sqlDB).HealthCheck()
	if h.Status != health.StatusError || h.Message != "database is locked" {
		t.Errorf("health: %+v", h)
	}
}
