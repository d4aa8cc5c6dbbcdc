// Package llm adapts langchaingo models (OpenAI, DeepSeek, Anthropic) to core.ChatClient.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/taiagent/taiagent/internal/config"
	"github.com/taiagent/taiagent/internal/core"
	"github.com/taiagent/taiagent/internal/health"
	"github.com/taiagent/taiagent/internal/registry"
)

func init() {
	registry.RegisterClient("openai", func(cfg *config.Config) (core.ChatClient, error) {
		return NewOpenAI(settingsFrom(cfg))
	})
	registry.RegisterClient("deepseek", func(cfg *config.Config) (core.ChatClient, error) {
		return NewDeepSeek(settingsFrom(cfg))
	})
	registry.RegisterClient("anthropic", func(cfg *config.Config) (core.ChatClient, error) {
		return NewAnthropic(settingsFrom(cfg))
	})
}

// DeepSeekBaseURL is DeepSeek's OpenAI-compatible endpoint.
const DeepSeekBaseURL = "https://api.deepseek.com/v1"

// defaultAnthropicMaxTokens is sent because the Messages API requires max_tokens.
const defaultAnthropicMaxTokens = 4096

// Settings are the provider-independent knobs for the constructors.
type Settings struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	HTTPClient  *http.Client
}

func settingsFrom(cfg *config.Config) Settings {
	return Settings{
		APIKey:      cfg.ProviderAPIKey(),
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		HTTPClient:  &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Client wraps a langchaingo model.
type Client struct {
	Name        string
	Model       llms.Model
	Temperature float64
	MaxTokens   int

	health *health.Tracker
}

// New wraps model under the given provider name.
func New(name string, model llms.Model, temperature float64) *Client {
	return &Client{Name: name, Model: model, Temperature: temperature, health: health.NewTracker(name)}
}

// NewOpenAI builds a client for the OpenAI API (or any OpenAI-compatible BaseURL).
func NewOpenAI(s Settings) (*Client, error) {
	opts := []openai.Option{openai.WithToken(s.APIKey), openai.WithModel(s.Model)}
	if s.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(s.BaseURL))
	}
	if s.HTTPClient != nil {
		opts = append(opts, openai.WithHTTPClient(s.HTTPClient))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return New("openai", m, s.Temperature), nil
}

// NewDeepSeek builds a client for DeepSeek through its OpenAI-compatible API.
func NewDeepSeek(s Settings) (*Client, error) {
	if s.BaseURL == "" {
		s.BaseURL = DeepSeekBaseURL
	}
	c, err := NewOpenAI(s)
	if err != nil {
		return nil, fmt.Errorf("deepseek: %w", err)
	}
	c.Name = "deepseek"
	c.health = health.NewTracker("deepseek")
	return c, nil
}

// NewAnthropic builds a client for the Anthropic Messages API.
func NewAnthropic(s Settings) (*Client, error) {
	opts := []anthropic.Option{anthropic.WithToken(s.APIKey), anthropic.WithModel(s.Model)}
	if s.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(s.BaseURL))
	}
	if s.HTTPClient != nil {
		opts = append(opts, anthropic.WithHTTPClient(s.HTTPClient))
	}
	m, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	c := New("anthropic", m, s.Temperature)
	c.MaxTokens = defaultAnthropicMaxTokens
	return c, nil
}

// Chat implements core.ChatClient.
func (c *Client) Chat(ctx context.Context, messages []core.Message, tools []core.ToolDefinition) (core.Reply, error) {
	reply, err := c.chat(ctx, messages, tools)
	if c.health != nil && ctx.Err() == nil {
		if err != nil {
			c.health.RecordError(err)
		} else {
			c.health.RecordSuccess()
		}
	}
	return reply, err
}

func (c *Client) chat(ctx context.Context, messages []core.Message, tools []core.ToolDefinition) (core.Reply, error) {
	content, err := toMessageContent(messages)
	if err != nil {
		return core.Reply{}, fmt.Errorf("%s: %w", c.Name, err)
	}
	opts := []llms.CallOption{llms.WithTemperature(c.Temperature)}
	if c.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.MaxTokens))
	}
	if lt := toTools(tools); len(lt) > 0 {
		opts = append(opts, llms.WithTools(lt), llms.WithToolChoice("auto"))
	}

	resp, err := c.Model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return core.Reply{}, c.classify(ctx, err)
	}
	reply, err := fromResponse(resp)
	if err != nil {
		return core.Reply{}, fmt.Errorf("%s: %w", c.Name, err)
	}
	return reply, nil
}

// classify maps langchaingo errors onto the core taxonomy. langchaingo does not
// expose status codes, so anything but an empty reply or a cancelled context
// counts as transport.
func (c *Client) classify(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", c.Name, ctx.Err())
	case errors.Is(err, openai.ErrEmptyResponse), errors.Is(err, anthropic.ErrEmptyResponse):
		return fmt.Errorf("%s: %w: %v", c.Name, core.ErrMalformedResponse, err)
	default:
		return fmt.Errorf("%s: %w: %v", c.Name, core.ErrTransport, err)
	}
}

// HealthCheck returns the health status of the client.
func (c *Client) HealthCheck() health.ComponentHealth {
	if c.health == nil {
		return health.ComponentHealth{Name: c.Name, Status: health.StatusUnknown}
	}
	return c.health.HealthCheck()
}
