// Package ollama talks to a local Ollama server through its native /api/chat
// endpoint. Tool-call arguments travel as JSON objects in both directions and
// replies carry no call ids, so ids are synthesized.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/taiagent/taiagent/internal/config"
	"github.com/taiagent/taiagent/internal/core"
	"github.com/taiagent/taiagent/internal/health"
	"github.com/taiagent/taiagent/internal/registry"
)

func init() {
	registry.RegisterClient("ollama", func(cfg *config.Config) (core.ChatClient, error) {
		host := cfg.Ollama.Host
		if cfg.BaseURL != "" {
			host = cfg.BaseURL
		}
		c := NewClient(host, cfg.Model)
		temp := cfg.Temperature
		c.Temperature = &temp
		c.HTTP = &http.Client{Timeout: cfg.RequestTimeout}
		return c, nil
	})
}

// DefaultHost is where `ollama serve` listens by default.
const DefaultHost = "http://localhost:11434"

// Message is one entry of an Ollama chat transcript.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
}

// ToolCall is a tool invocation as Ollama encodes it.
type ToolCall struct {
	ID       string           `json:"id,omitempty"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction carries the arguments as an object.
type ToolCallFunction struct {
	Index     int             `json:"index,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ChatRequest is the /api/chat body.
type ChatRequest struct {
	Model    string                `json:"model"`
	Messages []Message             `json:"messages"`
	Tools    []core.ToolDefinition `json:"tools,omitempty"`
	Stream   bool                  `json:"stream"`
	Options  map[string]any        `json:"options,omitempty"`
}

// ChatResponse is a non-streamed /api/chat answer.
type ChatResponse struct {
	Model   string   `json:"model"`
	Message *Message `json:"message"`
	Done    bool     `json:"done"`
	Error   string   `json:"error,omitempty"`
}

// Client calls an Ollama server.
type Client struct {
	BaseURL     string
	Model       string
	Temperature *float64
	HTTP        *http.Client
	Logger      *slog.Logger
	MaxRetries  int
	Backoff     time.Duration

	health *health.Tracker
}

// NewClient creates a client for the server at baseURL (DefaultHost when empty).
func NewClient(baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultHost
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Model:      model,
		HTTP:       http.DefaultClient,
		MaxRetries: 3,
		Backoff:    time.Second,
		health:     health.NewTracker("ollama"),
	}
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
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
	if c.Model == "" {
		return core.Reply{}, fmt.Errorf("ollama: model not set")
	}
	body := ChatRequest{
		Model:    c.Model,
		Messages: toWire(messages),
		Tools:    tools,
	}
	if c.Temperature != nil {
		body.Options = map[string]any{"temperature": *c.Temperature}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return core.Reply{}, fmt.Errorf("ollama: encode request: %w", err)
	}

	status, bodyBytes, err := c.post(ctx, "/api/chat", raw)
	if err != nil {
		return core.Reply{}, err
	}
	var out ChatResponse
	decodeErr := json.Unmarshal(bodyBytes, &out)
	if status == http.StatusTooManyRequests || status >= 500 {
		return core.Reply{}, fmt.Errorf("ollama: %w: HTTP %d: %s", core.ErrTransport, status, errorText(out, bodyBytes))
	}
	if status != http.StatusOK {
		return core.Reply{}, fmt.Errorf("ollama: %w: HTTP %d: %s", core.ErrProviderAPI, status, errorText(out, bodyBytes))
	}
	if decodeErr != nil {
		return core.Reply{}, fmt.Errorf("ollama: %w: decode: %v", core.ErrMalformedResponse, decodeErr)
	}
	if out.Error != "" {
		return core.Reply{}, fmt.Errorf("ollama: %w: %s", core.ErrMalformedResponse, out.Error)
	}
	if out.Message == nil {
		return core.Reply{}, fmt.Errorf("ollama: %w: no message in response", core.ErrMalformedResponse)
	}
	return fromWire(*out.Message), nil
}

func errorText(out ChatResponse, body []byte) string {
	if out.Error != "" {
		return out.Error
	}
	return string(body)
}

// post sends raw to path, retrying network errors, 429 and 5xx with doubling backoff.
func (c *Client) post(ctx context.Context, path string, raw []byte) (int, []byte, error) {
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var (
		status  int
		body    []byte
		lastErr error
	)
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger().Warn("retrying chat request", "provider", "ollama", "attempt", attempt, "max_retries", c.MaxRetries, "backoff", backoff)
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return 0, nil, fmt.Errorf("ollama: %w", ctx.Err())
			case <-t.C:
			}
			backoff *= 2
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
		if err != nil {
			return 0, nil, fmt.Errorf("ollama: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return 0, nil, fmt.Errorf("ollama: %w", ctx.Err())
			}
			c.logger().Warn("chat request failed", "provider", "ollama", "error", err)
			lastErr = err
			continue
		}
		lastErr = nil
		status = resp.StatusCode
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if status >= 500 || status == http.StatusTooManyRequests {
			continue
		}
		break
	}
	if lastErr != nil {
		return 0, nil, fmt.Errorf("ollama: %w: request failed after %d retries: %v", core.ErrTransport, c.MaxRetries, lastErr)
	}
	return status, body, nil
}

// Version asks the server for its version; doctor uses it as a reachability probe.
func (c *Client) Version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/version", nil)
	if err != nil {
		return "", err
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: %w: %v", core.ErrTransport, err)
	}
	defer resp.Body.Close()
	var out struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ollama: %w: %v", core.ErrMalformedResponse, err)
	}
	return out.Version, nil
}

// HealthCheck returns the health status of the client.
func (c *Client) HealthCheck() health.ComponentHealth {
	if c.health == nil {
		return health.ComponentHealth{Name: "ollama", Status: health.StatusUnknown}
	}
	return c.health.HealthCheck()
}

func toWire(messages []core.Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		wm := Message{Role: m.Role, Content: m.Content}
		if m.Role == core.RoleTool {
			wm.ToolName = m.Name
		}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, ToolCall{
				ID: tc.ID,
				Function: ToolCallFunction{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments.Object(),
				},
			})
		}
		out = append(out, wm)
	}
	return out
}

func fromWire(m Message) core.Reply {
	reply := core.Reply{Content: m.Content}
	for _, tc := range m.ToolCalls {
		id := tc.ID
		if id == "" {
			id = core.NewCallID()
		}
		reply.ToolCalls = append(reply.ToolCalls, core.ToolCall{
			ID:   id,
			Type: "function",
			Function: core.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: core.Arguments(tc.Function.Arguments),
			},
		})
	}
	return reply
}
