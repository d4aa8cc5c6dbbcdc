// Package groq is a raw HTTP client for OpenAI-compatible chat completion
// APIs, Groq by default.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/taiagent/taiagent/internal/config"
	"github.com/taiagent/taiagent/internal/core"
	"github.com/taiagent/taiagent/internal/health"
	"github.com/taiagent/taiagent/internal/registry"
)

func init() {
	registry.RegisterClient("groq", func(cfg *config.Config) (core.ChatClient, error) {
		return fromConfig(cfg, "groq", DefaultBaseURL)
	})
	registry.RegisterClient("openai-compat", func(cfg *config.Config) (core.ChatClient, error) {
		return fromConfig(cfg, "openai-compat", "")
	})
}

// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

const (
	defaultMaxRetries = 3
	defaultBackoff    = time.Second
)

// ChatRequest is the request body for chat completions.
type ChatRequest struct {
	Model       string                `json:"model"`
	Messages    []core.Message        `json:"messages"`
	Temperature *float64              `json:"temperature,omitempty"`
	Tools       []core.ToolDefinition `json:"tools,omitempty"`
	ToolChoice  interface{}           `json:"tool_choice,omitempty"` // "auto" or object
}

// ChatResponse includes tool_calls in the choice message.
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content   json.RawMessage `json:"content"`
			Role      string          `json:"role"`
			ToolCalls []core.ToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	Name        string // provider name used in errors and health; default "groq"
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float64
	HTTP        *http.Client
	Logger      *slog.Logger
	MaxRetries  int           // retries after the first attempt
	Backoff     time.Duration // first retry delay, doubled each retry

	health *health.Tracker
}

// NewClient creates a Groq client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	return &Client{
		Name:       "groq",
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    DefaultBaseURL,
		HTTP:       http.DefaultClient,
		MaxRetries: defaultMaxRetries,
		Backoff:    defaultBackoff,
		health:     health.NewTracker("groq"),
	}
}

func fromConfig(cfg *config.Config, name, baseURL string) (*Client, error) {
	key := cfg.ProviderAPIKey()
	if key == "" && name == "groq" {
		return nil, fmt.Errorf("GROQ_API_KEY is not set")
	}
	c := NewClient(key, cfg.Model)
	c.Name = name
	c.health = health.NewTracker(name)
	c.BaseURL = baseURL
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	if c.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required")
	}
	temp := cfg.Temperature
	c.Temperature = &temp
	c.HTTP = &http.Client{Timeout: cfg.RequestTimeout}
	return c, nil
}

// WithTemperature sets the sampling temperature and returns c.
func (c *Client) WithTemperature(t float64) *Client {
	c.Temperature = &t
	return c
}

func (c *Client) name() string {
	if c.Name == "" {
		return "groq"
	}
	return c.Name
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Chat sends messages and optional tools; returns content and any tool_calls.
// Network errors, 429 and 5xx are retried with exponential backoff; when
// retries run out the error wraps core.ErrTransport.
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
	name := c.name()
	if c.APIKey == "" && name == "groq" {
		return core.Reply{}, fmt.Errorf("%s: API key not set", name)
	}
	if c.Model == "" {
		return core.Reply{}, fmt.Errorf("%s: model not set", name)
	}
	body := ChatRequest{
		Model:       c.Model,
		Messages:    wireMessages(messages),
		Temperature: c.Temperature,
		Tools:       tools,
	}
	if len(tools) > 0 {
		body.ToolChoice = "auto"
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return core.Reply{}, fmt.Errorf("%s: encode request: %w", name, err)
	}

	status, bodyBytes, err := c.post(ctx, "/chat/completions", raw)
	if err != nil {
		return core.Reply{}, err
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return core.Reply{}, fmt.Errorf("%s: %w: HTTP %d: %s", name, core.ErrTransport, status, apiErrorMessage(bodyBytes))
	}
	if status != http.StatusOK {
		return core.Reply{}, fmt.Errorf("%s: %w: HTTP %d: %s", name, core.ErrProviderAPI, status, apiErrorMessage(bodyBytes))
	}

	var out ChatResponse
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return core.Reply{}, fmt.Errorf("%s: %w: decode: %v", name, core.ErrMalformedResponse, err)
	}
	if out.Error != nil {
		return core.Reply{}, fmt.Errorf("%s: %w: %s", name, core.ErrMalformedResponse, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return core.Reply{}, fmt.Errorf("%s: %w: no choices in response (body: %s)", name, core.ErrMalformedResponse, string(bodyBytes))
	}
	msg := out.Choices[0].Message
	reply := core.Reply{Content: parseContent(msg.Content), ToolCalls: msg.ToolCalls}
	for i := range reply.ToolCalls {
		tc := &reply.ToolCalls[i]
		if tc.Type == "" {
			tc.Type = "function"
		}
		if tc.ID == "" {
			tc.ID = core.NewCallID()
		}
	}
	return reply, nil
}

// post sends raw to path, retrying network errors, 429 and 5xx. It returns the
// final status and body; a network error that outlives the retries wraps ErrTransport.
func (c *Client) post(ctx context.Context, path string, raw []byte) (int, []byte, error) {
	name := c.name()
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxRetries := c.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var (
		status    int
		bodyBytes []byte
		lastErr   error
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.logger().Warn("retrying chat request", "provider", name, "attempt", attempt, "max_retries", maxRetries, "backoff", backoff)
			if err := sleep(ctx, backoff); err != nil {
				return 0, nil, fmt.Errorf("%s: %w", name, err)
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
		if err != nil {
			return 0, nil, fmt.Errorf("%s: %w", name, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return 0, nil, fmt.Errorf("%s: %w", name, ctx.Err())
			}
			c.logger().Warn("chat request failed", "provider", name, "error", err)
			lastErr = err
			continue
		}
		lastErr = nil
		status = resp.StatusCode
		bodyBytes, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if status >= 500 || status == http.StatusTooManyRequests {
			c.logger().Warn("retryable chat response", "provider", name, "status", status)
			continue
		}
		break
	}
	if lastErr != nil {
		return 0, nil, fmt.Errorf("%s: %w: request failed after %d retries: %v", name, core.ErrTransport, maxRetries, lastErr)
	}
	return status, bodyBytes, nil
}

// wireMessages rewrites argument payloads into the text form OpenAI-style
// APIs require. Other fields pass through.
func wireMessages(messages []core.Message) []core.Message {
	out := make([]core.Message, len(messages))
	for i, m := range messages {
		out[i] = m
		if len(m.ToolCalls) == 0 {
			continue
		}
		calls := make([]core.ToolCall, len(m.ToolCalls))
		for j, tc := range m.ToolCalls {
			calls[j] = tc
			if tc.Type == "" {
				calls[j].Type = "function"
			}
			if !tc.Function.Arguments.IsText() {
				calls[j].Function.Arguments = core.TextArguments(tc.Function.Arguments.Text())
			}
		}
		out[i].ToolCalls = calls
	}
	return out
}

// apiErrorMessage pulls error.message out of an error body, else returns the body.
func apiErrorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return msg.String()
	}
	return string(body)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
