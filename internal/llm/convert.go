package llm

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/taiagent/taiagent/internal/core"
)

// toMessageContent converts a transcript into langchaingo messages.
// Assistant tool calls come first in their message: some providers only read
// the leading part of an assistant message.
func toMessageContent(messages []core.Message) ([]llms.MessageContent, error) {
	out := make([]llms.MessageContent, 0, len(messages))
	for i, m := range messages {
		switch m.Role {
		case core.RoleSystem:
			out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, m.Content))
		case core.RoleUser:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, m.Content))
		case core.RoleAssistant:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			for _, tc := range m.ToolCalls {
				typ := tc.Type
				if typ == "" {
					typ = "function"
				}
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:   tc.ID,
					Type: typ,
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments.Text(),
					},
				})
			}
			if m.Content != "" || len(mc.Parts) == 0 {
				mc.Parts = append(mc.Parts, llms.TextPart(m.Content))
			}
			out = append(out, mc)
		case core.RoleTool:
			out = append(out, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: m.ToolCallID,
					Name:       m.Name,
					Content:    m.Content,
				}},
			})
		default:
			return nil, fmt.Errorf("message %d: unsupported role %q", i, m.Role)
		}
	}
	return out, nil
}

func toTools(defs []core.ToolDefinition) []llms.Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]llms.Tool, 0, len(defs))
	for _, d := range defs {
		typ := d.Type
		if typ == "" {
			typ = "function"
		}
		out = append(out, llms.Tool{
			Type: typ,
			Function: &llms.FunctionDefinition{
				Name:        d.Function.Name,
				Description: d.Function.Description,
				Parameters:  d.Function.Parameters,
			},
		})
	}
	return out
}

// fromResponse folds every choice into one reply. Anthropic returns one
// choice per content block (text, tool_use); OpenAI returns one choice.
func fromResponse(resp *llms.ContentResponse) (core.Reply, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return core.Reply{}, fmt.Errorf("%w: no choices", core.ErrMalformedResponse)
	}
	var (
		reply core.Reply
		text  []string
	)
	for _, choice := range resp.Choices {
		if choice == nil {
			continue
		}
		if choice.Content != "" {
			text = append(text, choice.Content)
		}
		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			id := tc.ID
			if id == "" {
				id = core.NewCallID()
			}
			reply.ToolCalls = append(reply.ToolCalls, core.ToolCall{
				ID:   id,
				Type: "function",
				Function: core.FunctionCall{
					Name:      tc.FunctionCall.Name,
					Arguments: core.TextArguments(tc.FunctionCall.Arguments),
				},
			})
		}
	}
	reply.Content = strings.Join(text, "\n")
	return reply, nil
}
