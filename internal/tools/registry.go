package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/taiagent/taiagent/internal/core"
)

// Registry is the capability table handed to the agent loop: tool name -> implementation.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]core.Tool
}

// NewRegistry creates a registry holding the given tools. Duplicate names are an error.
func NewRegistry(tools ...core.Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]core.Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool.
func (r *Registry) Register(t core.Tool) error {
	if t == nil {
		return fmt.Errorf("register tool: nil tool")
	}
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return fmt.Errorf("register tool: empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tools == nil {
		r.tools = make(map[string]core.Tool)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("register tool %q: already registered", name)
	}
	r.tools[name] = t
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (core.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the tool declarations sent to the model, sorted by name.
func (r *Registry) Definitions() []core.ToolDefinition {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]core.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Subset returns a new registry with only the allowed tools. Unknown names are ignored.
func (r *Registry) Subset(allowed ...string) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &Registry{tools: make(map[string]core.Tool)}
	for _, name := range allowed {
		if t, ok := r.tools[name]; ok {
			out.tools[name] = t
		}
	}
	return out
}

// maxSuggestDistance bounds how far a misspelt tool name may be from a suggestion.
const maxSuggestDistance = 4

// Suggest returns the registered name closest to name, or "" when nothing is close.
func (r *Registry) Suggest(name string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, candidate := range r.Names() {
		d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(candidate))
		if d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

var _ core.ToolRunner = (*Registry)(nil)
