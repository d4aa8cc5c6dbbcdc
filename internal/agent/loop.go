// Package agent runs the tool-calling conversation loop: query the model,
// execute the tools it asks for, feed the results back, repeat until it
// answers in plain text.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/taiagent/taiagent/internal/core"
	"github.com/taiagent/taiagent/internal/telemetry"
	"github.com/taiagent/taiagent/internal/tools"
)

// DefaultFailureText is what Respond answers when a run fails.
const DefaultFailureText = "System error, please try again later."

// ErrMaxRounds is returned when the model keeps calling tools past Loop.MaxRounds.
var ErrMaxRounds = errors.New("agent: round limit reached")

// UnknownToolPolicy decides what happens to a call naming an unregistered tool.
type UnknownToolPolicy int

const (
	// SkipUnknown drops the call; the transcript gets no entry for it.
	SkipUnknown UnknownToolPolicy = iota
	// ReportUnknown answers the call with an error result naming the closest tool.
	ReportUnknown
)

// ParseUnknownToolPolicy accepts "skip" (or "") and "report".
func ParseUnknownToolPolicy(s string) (UnknownToolPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return SkipUnknown, nil
	case "report":
		return ReportUnknown, nil
	}
	return SkipUnknown, fmt.Errorf("unknown tool policy %q (want skip or report)", s)
}

// IssueKind classifies a non-fatal anomaly.
type IssueKind string

const (
	IssueUnknownTool        IssueKind = "unknown_tool"
	IssueMalformedArguments IssueKind = "malformed_arguments"
)

// Issue is a tool call the loop could not honour as asked.
type Issue struct {
	Kind   IssueKind `json:"kind"`
	Round  int       `json:"round"`
	CallID string    `json:"call_id"`
	Tool   string    `json:"tool"`
	Detail string    `json:"detail,omitempty"`
}

// Result is the outcome of Run.
type Result struct {
	Transcript []core.Message
	Text       string
	Rounds     int
	Issues     []Issue
}

// Suggester proposes a registered name for a misspelt one. *tools.Registry implements it.
type Suggester interface {
	Suggest(name string) string
}

// Loop drives one model through tool calls until it answers.
type Loop struct {
	Client             core.ChatClient
	Tools              core.ToolRunner
	Logger             *slog.Logger
	Tracer             trace.Tracer
	MaxRounds          int // 0 = unbounded
	UnknownTools       UnknownToolPolicy
	MaxToolOutputRunes int // 0 = no truncation
	FailureText        string
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l *Loop) tracer() trace.Tracer {
	if l.Tracer == nil {
		return telemetry.Tracer()
	}
	return l.Tracer
}

// Respond runs the loop and never fails: on error it logs and returns
// FailureText with the transcript as it stood when the error happened.
func (l *Loop) Respond(ctx context.Context, transcript []core.Message) (string, []core.Message) {
	res, err := l.Run(ctx, transcript)
	if err != nil {
		l.logger().Error("agent run failed", "error", err, "rounds", res.Rounds)
		if l.FailureText != "" {
			return l.FailureText, res.Transcript
		}
		return DefaultFailureText, res.Transcript
	}
	return res.Text, res.Transcript
}

// Run queries the model with transcript and executes requested tools until the
// model replies without tool calls. transcript is not modified. On error the
// returned Result still holds the partial transcript.
func (l *Loop) Run(ctx context.Context, transcript []core.Message) (*Result, error) {
	if l.Client == nil {
		return &Result{Transcript: slices.Clone(transcript)}, errors.New("agent: no chat client")
	}
	res := &Result{Transcript: slices.Clone(transcript)}
	var defs []core.ToolDefinition
	if l.Tools != nil {
		defs = l.Tools.Definitions()
	}

	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if l.MaxRounds > 0 && round > l.MaxRounds {
			return res, fmt.Errorf("%w (%d)", ErrMaxRounds, l.MaxRounds)
		}
		res.Rounds = round

		done, err := l.round(ctx, round, defs, res)
		if err != nil {
			return res, fmt.Errorf("agent: round %d: %w", round, err)
		}
		if done {
			return res, nil
		}
	}
}

func (l *Loop) round(ctx context.Context, round int, defs []core.ToolDefinition, res *Result) (bool, error) {
	ctx, span := l.tracer().Start(ctx, "agent.round", trace.WithAttributes(attribute.Int("round", round)))
	defer span.End()

	reply, err := l.Client.Chat(ctx, res.Transcript, defs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	span.SetAttributes(attribute.Int("tool_calls", len(reply.ToolCalls)))

	if len(reply.ToolCalls) == 0 {
		res.Transcript = append(res.Transcript, core.Message{Role: core.RoleAssistant, Content: reply.Content})
		res.Text = reply.Content
		return true, nil
	}

	l.logger().Debug("model requested tools", "round", round, "count", len(reply.ToolCalls))
	for _, tc := range reply.ToolCalls {
		l.callTool(ctx, round, reply.Content, tc, res)
	}
	return false, nil
}

// callTool executes one call and appends the assistant echo plus the tool
// result. Unknown tools under SkipUnknown append nothing.
func (l *Loop) callTool(ctx context.Context, round int, content string, tc core.ToolCall, res *Result) {
	name := tc.Function.Name
	echo := core.Message{Role: core.RoleAssistant, Content: content, ToolCalls: []core.ToolCall{tc}}

	var tool core.Tool
	ok := false
	if l.Tools != nil {
		tool, ok = l.Tools.Lookup(name)
	}
	if !ok {
		res.Issues = append(res.Issues, Issue{Kind: IssueUnknownTool, Round: round, CallID: tc.ID, Tool: name})
		if l.UnknownTools != ReportUnknown {
			l.logger().Warn("tool call skipped", "tool", name, "call_id", tc.ID, "reason", "unknown tool")
			return
		}
		l.logger().Warn("unknown tool reported", "tool", name, "call_id", tc.ID)
		res.Transcript = append(res.Transcript, echo, toolMessage(tc, l.unknownToolResult(name)))
		return
	}

	args, err := tc.Function.Arguments.Map()
	if err != nil {
		res.Issues = append(res.Issues, Issue{Kind: IssueMalformedArguments, Round: round, CallID: tc.ID, Tool: name, Detail: err.Error()})
		l.logger().Warn("tool arguments malformed", "tool", name, "call_id", tc.ID, "error", err)
		args = map[string]any{}
	}

	ctx, span := l.tracer().Start(ctx, "agent.tool", trace.WithAttributes(
		attribute.String("tool", name),
		attribute.String("call_id", tc.ID),
	))
	out, err := tool.Call(ctx, args)
	var result string
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger().Warn("tool call failed", "tool", name, "call_id", tc.ID, "error", err)
		result = tools.ErrorResult(err)
	} else {
		result = tools.Serialize(out)
	}
	span.End()

	result = tools.TruncateToolOutput(result, l.MaxToolOutputRunes)
	res.Transcript = append(res.Transcript, echo, toolMessage(tc, result))
}

func (l *Loop) unknownToolResult(name string) string {
	payload := struct {
		Error      string `json:"error"`
		DidYouMean string `json:"did_you_mean,omitempty"`
	}{Error: fmt.Sprintf("unknown tool %q", name)}
	if s, ok := l.Tools.(Suggester); ok {
		payload.DidYouMean = s.Suggest(name)
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func toolMessage(tc core.ToolCall, content string) core.Message {
	return core.Message{Role: core.RoleTool, ToolCallID: tc.ID, Name: tc.Function.Name, Content: content}
}
