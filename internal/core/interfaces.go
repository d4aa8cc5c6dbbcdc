package core

import (
	"context"
)

// ChatClient abstracts a chat-completion API (Groq, Ollama, langchaingo models, etc).
// tools may be empty; when set, the provider lets the model choose ("auto").
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (Reply, error)
}

// Tool is one callable entry of a ToolRunner.
type Tool interface {
	Name() string
	Definition() ToolDefinition
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ToolRunner is the explicit capability table handed to the loop.
type ToolRunner interface {
	Lookup(name string) (Tool, bool)
	Definitions() []ToolDefinition
}
