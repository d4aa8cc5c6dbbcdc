package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message (OpenAI wire format).
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"` // For role=tool messages
}

// ToolCall is a single tool invocation request.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function and carries its argument payload.
type FunctionCall struct {
	Name      string    `json:"name"`
	Arguments Arguments `json:"arguments"`
}

// Reply is the model's answer to one query.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolDefinition describes a tool available to the model.
type ToolDefinition struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec describes the function signature.
type FunctionSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  interface{} `json:"parameters,omitempty"` // JSON Schema
}

// Arguments holds a tool call's argument payload exactly as the provider sent it.
// OpenAI-style APIs send a JSON string that contains an object; Ollama sends the
// object itself. Both forms marshal back unchanged.
type Arguments json.RawMessage

// TextArguments wraps argument text (as OpenAI-style APIs send it).
func TextArguments(s string) Arguments {
	b, _ := json.Marshal(s)
	return Arguments(b)
}

// ObjectArguments wraps a structured argument mapping (as Ollama sends it).
func ObjectArguments(v any) (Arguments, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	return Arguments(b), nil
}

// MarshalJSON emits the payload verbatim. A zero payload is sent as "{}".
func (a Arguments) MarshalJSON() ([]byte, error) {
	if len(bytes.TrimSpace(a)) == 0 {
		return []byte(`"{}"`), nil
	}
	return []byte(a), nil
}

// UnmarshalJSON keeps the raw payload.
func (a *Arguments) UnmarshalJSON(data []byte) error {
	if a == nil {
		return fmt.Errorf("core.Arguments: UnmarshalJSON on nil pointer")
	}
	*a = append((*a)[:0], data...)
	return nil
}

// IsText reports whether the payload was sent as a JSON string.
func (a Arguments) IsText() bool {
	t := bytes.TrimSpace(a)
	return len(t) > 0 && t[0] == '"'
}

// Text returns the payload as argument text: the decoded string for the text
// form, the compact JSON for the structured form.
func (a Arguments) Text() string {
	t := bytes.TrimSpace(a)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return "{}"
	}
	if t[0] == '"' {
		var s string
		if err := json.Unmarshal(t, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, t); err != nil {
		return string(t)
	}
	return buf.String()
}

// Object returns the payload as a JSON object for wires that expect one.
// Unparseable text yields an empty object.
func (a Arguments) Object() json.RawMessage {
	m, err := a.Map()
	if err != nil {
		return json.RawMessage(`{}`)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// Map normalizes either payload form into a key/value mapping. An empty or
// null payload yields an empty map. Anything that does not decode to an object
// is ErrMalformedArguments.
func (a Arguments) Map() (map[string]any, error) {
	t := bytes.TrimSpace(a)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return map[string]any{}, nil
	}
	if t[0] == '"' {
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedArguments, err)
		}
		t = bytes.TrimSpace([]byte(s))
		if len(t) == 0 || bytes.Equal(t, []byte("null")) {
			return map[string]any{}, nil
		}
	}
	var m map[string]any
	if err := json.Unmarshal(t, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// NewCallID returns a fresh tool-call id for providers that do not send one.
func NewCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
