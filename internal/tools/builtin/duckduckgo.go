package builtin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/taiagent/taiagent/internal/core"
	"github.com/taiagent/taiagent/internal/tools"
)

// DefaultDuckDuckGoURL is the JavaScript-free DuckDuckGo results page.
const DefaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"

const defaultDuckDuckGoResults = 5

type duckDuckGoArgs struct {
	Query      string `json:"query" jsonschema:"required" jsonschema_description:"The query to search for."`
	MaxResults int    `json:"max_results,omitempty" jsonschema_description:"Maximum number of results to return (default 5)."`
}

// SearchHit is one DuckDuckGo result.
type SearchHit struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Body  string `json:"body"`
}

// NewDuckDuckGoSearch returns the duckduckgo_search tool.
func NewDuckDuckGoSearch(opts Options, limiter *RateLimiter) core.Tool {
	opts = opts.withDefaults()
	return tools.Func("duckduckgo_search",
		"Search DuckDuckGo for the latest information. Returns titles, links and snippets; always cite the links you use.",
		func(ctx context.Context, args duckDuckGoArgs) (any, error) {
			if strings.TrimSpace(args.Query) == "" {
				return nil, fmt.Errorf("duckduckgo_search: query is required")
			}
			n := args.MaxResults
			if n <= 0 {
				n = defaultDuckDuckGoResults
			}
			if limiter != nil {
				if err := limiter.Wait(ctx, "duckduckgo"); err != nil {
					return nil, err
				}
			}
			hits, err := duckDuckGoSearch(ctx, opts, args.Query, n)
			if err != nil {
				return nil, fmt.Errorf("duckduckgo_search: %w", err)
			}
			return hits, nil
		})
}

func duckDuckGoSearch(ctx context.Context, opts Options, query string, limit int) ([]SearchHit, error) {
	form := url.Values{}
	form.Set("q", query)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.DuckDuckGoURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", opts.UserAgent)

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}

	hits := []SearchHit{}
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		href, _ := link.Attr("href")
		title := collapseSpace(link.Text())
		if title == "" || href == "" {
			return true
		}
		hits = append(hits, SearchHit{
			Title: title,
			Href:  resolveDuckDuckGoLink(href),
			Body:  collapseSpace(s.Find(".result__snippet").Text()),
		})
		return len(hits) < limit
	})
	return hits, nil
}

// resolveDuckDuckGoLink unwraps DuckDuckGo's redirect links (//duckduckgo.com/l/?uddg=...).
func resolveDuckDuckGoLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
