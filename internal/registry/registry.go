// Package registry maps provider names to chat client factories. Provider
// packages register themselves from init; the CLI picks one by config.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/taiagent/taiagent/internal/config"
	"github.com/taiagent/taiagent/internal/core"
)

// ClientFactory builds a chat client from the resolved configuration.
type ClientFactory func(cfg *config.Config) (core.ChatClient, error)

var (
	mu         sync.RWMutex
	LLMClients = make(map[string]ClientFactory)
)

// RegisterClient adds (or replaces) the factory for name.
func RegisterClient(name string, f ClientFactory) {
	mu.Lock()
	defer mu.Unlock()
	LLMClients[name] = f
}

// GetClientFactory returns the factory registered under name.
func GetClientFactory(name string) (ClientFactory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := LLMClients[name]
	return f, ok
}

// Providers lists registered provider names, sorted.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(LLMClients))
	for name := range LLMClients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClient builds the client for cfg.Provider.
func NewClient(cfg *config.Config) (core.ChatClient, error) {
	f, ok := GetClientFactory(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("registry: no client registered for provider %q (have %v)", cfg.Provider, Providers())
	}
	client, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", cfg.Provider, err)
	}
	return client, nil
}
