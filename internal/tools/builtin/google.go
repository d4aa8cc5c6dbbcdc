package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/taiagent/taiagent/internal/core"
	"github.com/taiagent/taiagent/internal/tools"
)

// DefaultGoogleSearchURL is the Custom Search JSON API endpoint.
const DefaultGoogleSearchURL = "https://www.googleapis.com/customsearch/v1"

const (
	googleResultCount = 3
	googleHeader      = "【Google 搜索结果】:\n"
	googleNoResults   = "（未找到相关搜索结果。）"
)

type googleSearchArgs struct {
	Query string `json:"query" jsonschema:"required" jsonschema_description:"Search query string."`
}

// NewGoogleSearch returns the google_search tool. Failures come back as text so the
// model can read them; only a cancelled context is an error.
func NewGoogleSearch(opts Options, limiter *RateLimiter) core.Tool {
	opts = opts.withDefaults()
	return tools.Func("google_search", "Search for relevant information on the Internet.",
		func(ctx context.Context, args googleSearchArgs) (any, error) {
			out, err := googleSearch(ctx, opts, limiter, args.Query)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				opts.Logger.Warn("google search failed", "query", args.Query, "error", err)
				return fmt.Sprintf("（搜索请求失败: %v。）", err), nil
			}
			return out, nil
		})
}

func googleSearch(ctx context.Context, opts Options, limiter *RateLimiter, query string) (string, error) {
	if opts.GoogleAPIKey == "" || opts.GoogleCX == "" {
		return "", fmt.Errorf("google search: GOOGLE_API_KEY and GOOGLE_CX must be set")
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("google search: empty query")
	}
	if limiter != nil {
		if err := limiter.Wait(ctx, "google"); err != nil {
			return "", err
		}
	}
	params := url.Values{}
	params.Set("key", opts.GoogleAPIKey)
	params.Set("cx", opts.GoogleCX)
	params.Set("q", query)
	params.Set("num", fmt.Sprint(googleResultCount))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.GoogleSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
	}
	return formatGoogleResults(body), nil
}

func formatGoogleResults(body []byte) string {
	items := gjson.GetBytes(body, "items").Array()
	if len(items) == 0 {
		return googleNoResults
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("- [%s](%s): %s",
			stringOr(item.Get("title"), "无标题"),
			stringOr(item.Get("link"), "#"),
			stringOr(item.Get("snippet"), "无摘要"),
		))
	}
	return googleHeader + strings.Join(lines, "\n")
}

func stringOr(r gjson.Result, fallback string) string {
	if !r.Exists() {
		return fallback
	}
	return r.String()
}
