// Package fetch implements the tiered retrieval layer: a shared HTTP
// client with per-host politeness delays and retrying, plus helpers for
// the three fetch tiers (structured feed, static markup, rendered
// browser) and the fallthrough chain that tries them in order.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// ErrStructural marks a failure that retrying cannot fix: the resource
// is gone, empty, or no longer shaped the way the caller expects. Tier
// chains fall through immediately on structural failures.
var ErrStructural = errors.New("structural failure")

// IsStructural reports whether err is a structural (non-retryable)
// fetch failure.
func IsStructural(err error) bool {
	return errors.Is(err, ErrStructural)
}

// Config holds the shared client settings.
type Config struct {
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	// HostDelay is the minimum gap between consecutive requests to the
	// same host.
	HostDelay  time.Duration
	MaxRetries int
}

// Client performs rate-limited, retrying HTTP fetches for every tier.
// One Client is shared across all source adapters for a run; its
// limiter map is the run's only cross-source state.
type Client struct {
	HTTPClient *http.Client
	Config     Config

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient returns a client with a tuned transport. A zero MaxRetries
// is raised to 1 so every request gets at least one attempt.
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: cfg.Timeout, Transport: tr},
		Config:     cfg,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// limiter returns the per-host limiter, creating it on first use. With
// burst 1 and rate 1/HostDelay this enforces the configured minimum gap
// between requests to one host.
func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limiters == nil {
		c.limiters = make(map[string]*rate.Limiter)
	}
	l, ok := c.limiters[host]
	if !ok {
		if c.Config.HostDelay > 0 {
			l = rate.NewLimiter(rate.Every(c.Config.HostDelay), 1)
		} else {
			l = rate.NewLimiter(rate.Inf, 1)
		}
		c.limiters[host] = l
	}
	return l
}

// Get fetches rawURL and returns the response body. Transient failures
// (network errors, 5xx, 429) are retried with exponential backoff and
// jitter up to MaxRetries attempts; structural failures (other 4xx,
// empty body) return immediately wrapped in ErrStructural.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: parse url %q: %w", rawURL, err)
	}

	op := func() ([]byte, error) {
		if err := c.limiter(u.Host).Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		body, err := c.do(ctx, rawURL)
		if err != nil && IsStructural(err) {
			return nil, backoff.Permanent(err)
		}
		return body, err
	}

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(c.Config.MaxRetries)),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch: get %q: %w", rawURL, err)
	}
	return body, nil
}

// do performs a single request attempt.
func (c *Client) do(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: new request: %v", ErrStructural, err)
	}
	if c.Config.UserAgent != "" {
		req.Header.Set("User-Agent", c.Config.UserAgent)
	}
	if c.Config.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", c.Config.AcceptLanguage)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("status %s", resp.Status)
	default:
		return nil, fmt.Errorf("%w: status %s", ErrStructural, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrStructural)
	}
	return body, nil
}

// Document fetches rawURL and parses it as an HTML document. Parse
// failures are structural.
func (c *Client) Document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fetch: parse html %q: %w: %v", rawURL, ErrStructural, err)
	}
	return doc, nil
}
