package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/taiagent/taiagent/internal/store"
)

// isolate clears provider variables from the environment and returns a fresh config dir.
func isolate(t *testing.T) string {
	t.Helper()
	for _, name := range []string{
		"GROQ_API_KEY", "OPENAI_API_KEY", "DEEPSEEK_API_KEY", "ANTHROPIC_API_KEY",
		"GOOGLE_API_KEY", "GOOGLE_CX", "OLLAMA_HOST",
		"TAIAGENT_PROVIDER", "TAIAGENT_MODEL", "TAIAGENT_BASE_URL", "TAIAGENT_API_KEY",
	} {
		t.Setenv(name, "")
	}
	return t.TempDir()
}

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	if testing.Verbose() && errOut.Len() > 0 {
		t.Logf("stderr:\n%s", errOut.String())
	}
	return out.String(), err
}

// completionServer answers every chat completion with reply and counts requests.
func completionServer(t *testing.T, reply string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"` + reply + `"},"finish_reason":"stop"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "taiagent dev ("), out)
}

func TestTools_ListsBuiltins(t *testing.T) {
	dir := isolate(t)
	out, err := execute(t, "", "tools", "--config-dir", dir)
	require.NoError(t, err)
	for _, name := range []string{"google_search", "duckduckgo_search", "read_url", "get_current_time", "calculate", "nop"} {
		assert.Contains(t, out, name)
	}
}

func TestConfigError_UnknownProvider(t *testing.T) {
	dir := isolate(t)
	_, err := execute(t, "", "tools", "--config-dir", dir, "--provider", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "nope"`)
}

func TestAsk_PersistsSessionAndHistoryShowsIt(t *testing.T) {
	dir := isolate(t)
	srv, calls := completionServer(t, "It is sunny.")
	t.Setenv("TAIAGENT_BASE_URL", srv.URL)

	out, err := execute(t, "", "ask", "--config-dir", dir, "--provider", "openai-compat", "what", "is", "the", "weather")
	require.NoError(t, err)
	assert.Equal(t, "It is sunny.\n", out)
	assert.Equal(t, int32(1), calls.Load())

	out, err = execute(t, "", "history", "--config-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "what is the weather")
	assert.Contains(t, out, "openai-compat/qwen-qwq-32b")

	db, err := store.Open(context.Background(), filepath.Join(dir, "taiagent.db"))
	require.NoError(t, err)
	sessions, err := db.ListSessions(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.Len(t, sessions, 1)

	out, err = execute(t, "", "history", "--config-dir", dir, "--session", sessions[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "user: what is the weather")
	assert.Contains(t, out, "assistant: It is sunny.")
}

func TestChat_ConsoleRoundTrip(t *testing.T) {
	dir := isolate(t)
	srv, calls := completionServer(t, "Hello there.")
	t.Setenv("TAIAGENT_BASE_URL", srv.URL)

	out, err := execute(t, "hi\n退出\n", "chat", "--config-dir", dir, "--provider", "openai-compat")
	require.NoError(t, err)
	assert.Contains(t, out, "taiagent dev (openai-compat/qwen-qwq-32b)")
	assert.Contains(t, out, "AI: Hello there.")
	assert.Contains(t, out, "Goodbye.")
	assert.Equal(t, int32(1), calls.Load())
}

func TestTasksRun_PlanFileThenShow(t *testing.T) {
	dir := isolate(t)
	srv, calls := completionServer(t, "done")
	t.Setenv("TAIAGENT_BASE_URL", srv.URL)

	planPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(planPath, []byte(`request: check the news
steps:
  - index: 1
    description: find today's headlines
  - index: 2
    description: summarize them
`), 0o600))

	out, err := execute(t, "", "tasks", "run", "--config-dir", dir, "--provider", "openai-compat", "--plan", planPath, "--delay", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, "completed (2/2 steps succeeded)")
	assert.Contains(t, out, "succeeded")
	assert.Equal(t, int32(2), calls.Load())

	m := regexp.MustCompile(`run (\S+): `).FindStringSubmatch(out)
	require.Len(t, m, 2, out)

	out, err = execute(t, "", "tasks", "show", "--config-dir", dir, m[1])
	require.NoError(t, err)
	assert.Contains(t, out, "request: check the news")
	assert.Contains(t, out, "find today's headlines")
	assert.Contains(t, out, "summarize them")
}

func TestTasksRun_NeedsRequestOrPlan(t *testing.T) {
	dir := isolate(t)
	_, err := execute(t, "", "tasks", "run", "--config-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "give a request or --plan")
}

func TestDoctor_ReportsMissingKey(t *testing.T) {
	dir := isolate(t)
	out, err := execute(t, "", "doctor", "--config-dir", dir, "--json")
	require.NoError(t, err)
	require.True(t, gjson.Valid(out), out)

	assert.Equal(t, "error", gjson.Get(out, "status").String())
	assert.Equal(t, "ok", gjson.Get(out, "components.database.status").String())
	assert.Equal(t, "ok", gjson.Get(out, "components.config.status").String())
	assert.Equal(t, "error", gjson.Get(out, "components.provider.status").String())
	assert.Contains(t, gjson.Get(out, "components.provider.message").String(), "GROQ_API_KEY")
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "first line", summarize("  first line\nsecond\n"))
	long := strings.Repeat("界", summaryRunes+5)
	got := summarize(long)
	assert.Equal(t, summaryRunes, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}
