package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// Renderer drives a headless browser for sources that materialize their
// listings with client-side script. Last-resort tier: a fresh browser
// context per navigation, torn down before returning.
type Renderer struct {
	UserAgent  string
	NavTimeout time.Duration
}

// NewRenderer returns a renderer with the given identity and per-page
// deadline. A zero timeout defaults to 45s.
func NewRenderer(userAgent string, navTimeout time.Duration) *Renderer {
	if navTimeout <= 0 {
		navTimeout = 45 * time.Second
	}
	return &Renderer{UserAgent: userAgent, NavTimeout: navTimeout}
}

// Render navigates to rawURL, waits for waitSelector to be ready, and
// returns the post-render DOM parsed as a document. Browser startup
// failure (no Chrome on the host) is an ordinary tier failure.
func (r *Renderer) Render(ctx context.Context, rawURL, waitSelector string) (*goquery.Document, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if r.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	navCtx, navCancel := context.WithTimeout(browserCtx, r.NavTimeout)
	defer navCancel()

	var html string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch: render %q: %w", rawURL, err)
	}
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("fetch: render %q: %w: empty dom", rawURL, ErrStructural)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("fetch: parse rendered dom %q: %w: %v", rawURL, ErrStructural, err)
	}
	return doc, nil
}
