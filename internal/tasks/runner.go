package tasks

import (
	"context"
	"errors"
	"strings"

	"github.com/taiagent/taiagent/internal/agent"
	"github.com/taiagent/taiagent/internal/core"
)

// StepInstructions are appended to the system prompt for step execution.
const StepInstructions = `You are carrying out one step of a larger plan.
- Use duckduckgo_search or google_search to find the latest information and always include sources.
- Use read_url to read the main content of a given URL.
- Use calculate for statistics over a set of numbers.
- Use tables to display data.`

// AgentRunner runs each step as a fresh conversation through an agent loop.
type AgentRunner struct {
	Loop         *agent.Loop
	SystemPrompt string
}

// RunStep implements StepRunner. Loop failures are returned so the executor retries.
func (r *AgentRunner) RunStep(ctx context.Context, step Step) (string, error) {
	prompt := r.SystemPrompt
	if prompt == "" {
		prompt = agent.DefaultSystemPrompt + "\n\n" + StepInstructions
	}
	res, err := r.Loop.Run(ctx, []core.Message{
		{Role: core.RoleSystem, Content: prompt},
		{Role: core.RoleUser, Content: step.Description},
	})
	if err != nil {
		return "", err
	}
	text := StripReasoning(res.Text)
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty answer")
	}
	return text, nil
}
