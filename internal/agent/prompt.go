package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// PromptFile is the optional system prompt override in the config dir.
const PromptFile = "SYSTEM.md"

// DefaultSystemPrompt opens every conversation.
const DefaultSystemPrompt = `You are an AI assistant capable of calling external tools to complete user requests.

### Rules:
1. Always make sure arguments passed to tools are clean: no unnecessary escape characters (such as \, %, &) and nothing that breaks JSON. This rule has the highest priority.
2. For any request involving the current time or date, call get_current_time first.
3. Never assume the current time from your training data; always use the time returned by get_current_time.
4. If a task needs a date reference (searching news, scheduling events), call get_current_time first and use its result.`

// LoadSystemPrompt returns <configDir>/SYSTEM.md when present and non-empty,
// otherwise DefaultSystemPrompt.
func LoadSystemPrompt(configDir string) (string, error) {
	if configDir == "" {
		return DefaultSystemPrompt, nil
	}
	b, err := os.ReadFile(filepath.Join(configDir, PromptFile))
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSystemPrompt, nil
	}
	if err != nil {
		return DefaultSystemPrompt, fmt.Errorf("read %s: %w", PromptFile, err)
	}
	if s := strings.TrimSpace(string(b)); s != "" {
		return s, nil
	}
	return DefaultSystemPrompt, nil
}
