package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taiagent/taiagent/internal/config"
	"github.com/taiagent/taiagent/internal/core"
	"github.com/taiagent/taiagent/internal/registry"
)

func TestChat_ObjectArguments(t *testing.T) {
	var req ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = w.Write([]byte(`{"model":"llama3.1","message":{"role":"assistant","content":"","tool_calls":[
			{"function":{"name":"get_current_time","arguments":{"format":"date"}}},
			{"function":{"name":"nop","arguments":{"reason":"x"}}}
		]},"done":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "llama3.1")
	temp := 0.6
	c.Temperature = &temp
	history := []core.Message{
		{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{{ID: "call_a", Type: "function",
			Function: core.FunctionCall{Name: "google_search", Arguments: core.TextArguments(`{"query":"go"}`)}}}},
		{Role: core.RoleTool, ToolCallID: "call_a", Name: "google_search", Content: "results"},
	}
	reply, err := c.Chat(context.Background(), history, []core.ToolDefinition{{Type: "function", Function: core.FunctionSpec{Name: "nop"}}})
	require.NoError(t, err)

	assert.False(t, req.Stream)
	assert.Equal(t, 0.6, req.Options["temperature"])
	require.Len(t, req.Messages, 2)
	assert.JSONEq(t, `{"query":"go"}`, string(req.Messages[0].ToolCalls[0].Function.Arguments), "text payloads go out as objects")
	assert.Equal(t, "google_search", req.Messages[1].ToolName)
	require.Len(t, req.Tools, 1)

	require.Len(t, reply.ToolCalls, 2)
	ids := map[string]bool{}
	for _, tc := range reply.ToolCalls {
		assert.True(t, strings.HasPrefix(tc.ID, "call_"))
		assert.Equal(t, "function", tc.Type)
		ids[tc.ID] = true
	}
	assert.Len(t, ids, 2, "synthesized ids are unique")
	args, err := reply.ToolCalls[0].Function.Arguments.Map()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"format": "date"}, args)
}

func TestChat_Errors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var body ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch body.Model {
		case "missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"model \"missing\" not found, try pulling it first"}`))
		case "busy":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "empty":
			_, _ = w.Write([]byte(`{"done":true}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "missing")
	_, err := c.Chat(context.Background(), nil, nil)
	assert.ErrorIs(t, err, core.ErrProviderAPI)
	assert.ErrorContains(t, err, "try pulling it first")

	c.Model = "busy"
	c.Backoff = time.Millisecond
	atomic.StoreInt32(&calls, 0)
	_, err = c.Chat(context.Background(), nil, nil)
	assert.ErrorIs(t, err, core.ErrTransport)
	assert.EqualValues(t, 4, atomic.LoadInt32(&calls))

	c.Model = "empty"
	_, err = c.Chat(context.Background(), nil, nil)
	assert.ErrorIs(t, err, core.ErrMalformedResponse)
}

func TestVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/version", r.URL.Path)
		_, _ = w.Write([]byte(`{"version":"0.5.7"}`))
	}))
	defer srv.Close()
	v, err := NewClient(srv.URL, "m").Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.5.7", v)
}

func TestRegisteredFactory(t *testing.T) {
	cfg := &config.Config{Provider: "ollama", Model: "qwen2.5", Ollama: config.Ollama{Host: "http://gpu:11434"}, Temperature: 0.6}
	client, err := registry.NewClient(cfg)
	require.NoError(t, err)
	c := client.(*Client)
	assert.Equal(t, "http://gpu:11434", c.BaseURL)
	assert.Equal(t, "qwen2.5", c.Model)
}
