// Package builtin holds the tools every agent session starts with.
package builtin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/taiagent/taiagent/internal/core"
	"github.com/taiagent/taiagent/internal/tools"
)

// Options configures the built-in tools. Zero values fall back to defaults.
type Options struct {
	HTTPClient *http.Client
	Logger     *slog.Logger

	GoogleAPIKey    string
	GoogleCX        string
	GoogleSearchURL string // default DefaultGoogleSearchURL

	DuckDuckGoURL string // default DefaultDuckDuckGoURL

	UserAgent        string
	MinFetchInterval time.Duration // per host, default 1s
	MaxPageRunes     int           // read_url content cap, default 20000

	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.GoogleSearchURL == "" {
		o.GoogleSearchURL = DefaultGoogleSearchURL
	}
	if o.DuckDuckGoURL == "" {
		o.DuckDuckGoURL = DefaultDuckDuckGoURL
	}
	if o.UserAgent == "" {
		o.UserAgent = "taiagent/1.0"
	}
	if o.MinFetchInterval == 0 {
		o.MinFetchInterval = time.Second
	}
	if o.MaxPageRunes == 0 {
		o.MaxPageRunes = 20000
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// All returns every built-in tool configured with opts.
func All(opts Options) []core.Tool {
	opts = opts.withDefaults()
	limiter := NewRateLimiter(opts.MinFetchInterval)
	return []core.Tool{
		NewGoogleSearch(opts, limiter),
		NewDuckDuckGoSearch(opts, limiter),
		NewReadURL(opts, limiter),
		NewCurrentTime(opts.Now),
		NewCalculate(),
		NewNop(),
	}
}

// NewRegistry returns a tools.Registry holding every built-in tool.
func NewRegistry(opts Options) (*tools.Registry, error) {
	return tools.NewRegistry(All(opts)...)
}
