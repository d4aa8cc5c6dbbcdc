package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taiagent/taiagent/internal/core"
)

// PlannerInstructions tell the model how to split a request.
const PlannerInstructions = `You analyze the user's request and produce an execution plan.
- Break the request down into simple steps following its natural-language logic.
- Do not modify the user's input; divide it into distinct tasks exactly as they are presented.
- Each task corresponds to one action mentioned in the request, and each action is a single step.
- Return the steps as a JSON list where each object has two fields: "index", an integer starting from 1, and "description", a string that repeats the user's request for that task.
- Keep the steps logically ordered and easy to follow.`

// Planner asks a model to split a request into steps.
type Planner struct {
	Client core.ChatClient
	Now    func() time.Time
	Logger *slog.Logger
}

func (p *Planner) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// Plan returns the steps for request.
func (p *Planner) Plan(ctx context.Context, request string) (Plan, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return Plan{}, fmt.Errorf("plan: empty request")
	}
	system := PlannerInstructions + "\n\nThe current time is " + p.now().Format("2006-01-02 15:04:05 MST") + "."
	reply, err := p.Client.Chat(ctx, []core.Message{
		{Role: core.RoleSystem, Content: system},
		{Role: core.RoleUser, Content: request},
	}, nil)
	if err != nil {
		return Plan{}, fmt.Errorf("plan: %w", err)
	}
	steps, err := ExtractSteps(reply.Content)
	if err != nil {
		logger := p.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("plan reply unusable", "error", err, "reply", truncate(reply.Content, 200))
		return Plan{}, fmt.Errorf("plan: %w", err)
	}
	return Plan{Request: request, Steps: steps}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
