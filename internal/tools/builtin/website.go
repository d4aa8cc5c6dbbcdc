package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"

	"github.com/taiagent/taiagent/internal/core"
	"github.com/taiagent/taiagent/internal/tools"
)

// ErrDisallowed is returned when robots.txt forbids fetching a page.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// maxPageBytes bounds how much of a page is read.
const maxPageBytes = 5 << 20

type readURLArgs struct {
	URL string `json:"url" jsonschema:"required" jsonschema_description:"The URL of the website to read. Must start with http:// or https://."`
}

// Document is the text extracted from one page.
type Document struct {
	Name     string            `json:"name"`
	MetaData map[string]string `json:"meta_data"`
	Content  string            `json:"content"`
}

// pageReader fetches pages politely: robots.txt per host, spaced requests.
type pageReader struct {
	opts    Options
	limiter *RateLimiter

	mu     sync.Mutex
	robots map[string]*robotstxt.RobotsData
}

// NewReadURL returns the read_url tool.
func NewReadURL(opts Options, limiter *RateLimiter) core.Tool {
	r := &pageReader{
		opts:    opts.withDefaults(),
		limiter: limiter,
		robots:  make(map[string]*robotstxt.RobotsData),
	}
	return tools.Func("read_url", "Read a web page and return its title and visible text.",
		func(ctx context.Context, args readURLArgs) (any, error) {
			doc, err := r.Read(ctx, args.URL)
			if err != nil {
				return nil, fmt.Errorf("read_url: %w", err)
			}
			return []Document{doc}, nil
		})
}

// Read fetches rawURL and extracts its text.
func (r *pageReader) Read(ctx context.Context, rawURL string) (Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Document{}, fmt.Errorf("invalid url %q", rawURL)
	}
	allowed, err := r.allowed(ctx, u)
	if err != nil {
		return Document{}, err
	}
	if !allowed {
		return Document{}, fmt.Errorf("%s: %w", u.String(), ErrDisallowed)
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, u.Host); err != nil {
			return Document{}, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Document{}, err
	}
	req.Header.Set("User-Agent", r.opts.UserAgent)
	resp, err := r.opts.HTTPClient.Do(req)
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("GET %s: HTTP %d", u.String(), resp.StatusCode)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return Document{}, fmt.Errorf("decode %s: %w", u.String(), err)
	}
	page, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return Document{}, fmt.Errorf("parse %s: %w", u.String(), err)
	}
	page.Find("script, style, noscript, template, svg").Remove()

	title := collapseSpace(page.Find("title").First().Text())
	text := collapseSpace(page.Find("body").Text())
	if text == "" {
		text = collapseSpace(page.Text())
	}
	doc := Document{
		Name:     title,
		MetaData: map[string]string{"url": u.String()},
		Content:  tools.TruncateToolOutput(text, r.opts.MaxPageRunes),
	}
	if doc.Name == "" {
		doc.Name = u.String()
	}
	return doc, nil
}

// allowed consults (and caches) the host's robots.txt. An unreachable or missing
// robots.txt allows everything.
func (r *pageReader) allowed(ctx context.Context, u *url.URL) (bool, error) {
	r.mu.Lock()
	data, ok := r.robots[u.Host]
	r.mu.Unlock()
	if !ok {
		data = r.fetchRobots(ctx, u)
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		r.mu.Lock()
		r.robots[u.Host] = data
		r.mu.Unlock()
	}
	if data == nil {
		return true, nil
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.TestAgent(path, r.opts.UserAgent), nil
}

func (r *pageReader) fetchRobots(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.opts.UserAgent)
	resp, err := r.opts.HTTPClient.Do(req)
	if err != nil {
		r.opts.Logger.Debug("robots.txt unavailable", "host", u.Host, "error", err)
		return nil
	}
	defer resp.Body.Close()
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		r.opts.Logger.Debug("robots.txt unparseable", "host", u.Host, "error", err)
		return nil
	}
	return data
}
