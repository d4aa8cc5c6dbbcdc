package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoArgs struct {
	Text  string `json:"text" jsonschema:"required" jsonschema_description:"Text to echo back."`
	Times int    `json:"times,omitempty" jsonschema_description:"Repeat count."`
}

func echoTool() *funcTool[echoArgs] {
	return Func("echo", "Echo the text.", func(ctx context.Context, a echoArgs) (any, error) {
		if a.Times == 0 {
			a.Times = 1
		}
		out := ""
		for i := 0; i < a.Times; i++ {
			out += a.Text
		}
		return out, nil
	}).(*funcTool[echoArgs])
}

func TestRegistry_RegisterLookup(t *testing.T) {
	reg, err := NewRegistry(echoTool())
	require.NoError(t, err)

	got, ok := reg.Lookup("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", got.Name())

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)

	err = reg.Register(echoTool())
	assert.Error(t, err, "duplicate names must be rejected")
}

func TestRegistry_DefinitionsSorted(t *testing.T) {
	nop := Func("nop", "Do nothing.", func(ctx context.Context, a struct {
		Reason string `json:"reason"`
	}) (any, error) {
		return a.Reason, nil
	})
	reg, err := NewRegistry(nop, echoTool())
	require.NoError(t, err)

	assert.Equal(t, []string{"echo", "nop"}, reg.Names())
	defs := reg.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "echo", defs[0].Function.Name)
	assert.Equal(t, "function", defs[0].Type)
}

func TestRegistry_Subset(t *testing.T) {
	nop := Func("nop", "Do nothing.", func(ctx context.Context, a struct{}) (any, error) { return nil, nil })
	reg, err := NewRegistry(nop, echoTool())
	require.NoError(t, err)

	sub := reg.Subset("nop", "unknown")
	assert.Equal(t, []string{"nop"}, sub.Names())
	assert.Equal(t, []string{"echo", "nop"}, reg.Names(), "parent registry untouched")
}

func TestRegistry_Suggest(t *testing.T) {
	reg, err := NewRegistry(echoTool(),
		Func("google_search", "Search.", func(ctx context.Context, a struct{}) (any, error) { return nil, nil }))
	require.NoError(t, err)

	assert.Equal(t, "google_search", reg.Suggest("googl_search"))
	assert.Equal(t, "google_search", reg.Suggest("Google_Search"))
	assert.Equal(t, "", reg.Suggest("send_email_to_everyone"))
}

func TestFunc_SchemaAndCall(t *testing.T) {
	tool := echoTool()
	raw, err := json.Marshal(tool.Definition().Function.Parameters)
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(raw, &schema))
	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	text := props["text"].(map[string]any)
	assert.Equal(t, "Text to echo back.", text["description"])
	assert.Equal(t, []any{"text"}, schema["required"])

	out, err := tool.Call(context.Background(), map[string]any{"text": "ab", "times": float64(2)})
	require.NoError(t, err)
	assert.Equal(t, "abab", out)

	out, err = tool.Call(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "", out)

	_, err = tool.Call(context.Background(), map[string]any{"times": "many"})
	assert.Error(t, err)
}

type stringer struct{}

func (stringer) String() string { return "stringer!" }

func TestSerialize(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "plain", "plain"},
		{"int", 42, "42"},
		{"float", 1.5, "1.5"},
		{"bool", true, "true"},
		{"map", map[string]any{"a": 1}, `{"a":1}`},
		{"slice", []string{"x", "y"}, `["x","y"]`},
		{"struct", struct {
			A string `json:"a"`
		}{"b"}, `{"a":"b"}`},
		{"pointer to struct", &struct {
			N int `json:"n"`
		}{3}, `{"n":3}`},
		{"stringer", stringer{}, "stringer!"},
		{"duration", 2 * time.Second, "2s"},
		{"bytes", []byte("raw"), "raw"},
		{"error", errors.New("boom"), "boom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Serialize(tc.in))
		})
	}
}

func TestErrorResult(t *testing.T) {
	assert.JSONEq(t, `{"error":"boom"}`, ErrorResult(errors.New("boom")))
}
