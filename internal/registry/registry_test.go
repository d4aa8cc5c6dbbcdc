package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taiagent/taiagent/internal/config"
	"github.com/taiagent/taiagent/internal/core"
)

type stubClient struct{ model string }

func (s stubClient) Chat(ctx context.Context, _ []core.Message, _ []core.ToolDefinition) (core.Reply, error) {
	return core.Reply{Content: s.model}, nil
}

func TestNewClient(t *testing.T) {
	RegisterClient("stub-test", func(cfg *config.Config) (core.ChatClient, error) {
		return stubClient{model: cfg.Model}, nil
	})
	RegisterClient("broken-test", func(cfg *config.Config) (core.ChatClient, error) {
		return nil, errors.New("no key")
	})
	assert.Contains(t, Providers(), "stub-test")

	c, err := NewClient(&config.Config{Provider: "stub-test", Model: "m1"})
	require.NoError(t, err)
	reply, err := c.Chat(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "m1", reply.Content)

	_, err = NewClient(&config.Config{Provider: "broken-test"})
	assert.ErrorContains(t, err, "no key")

	_, err = NewClient(&config.Config{Provider: "missing"})
	assert.ErrorContains(t, err, `"missing"`)
}
