package fetch

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
)

// Feed fetches rawURL through the shared client and parses it as an
// RSS/Atom feed. Fetching through Get keeps the user agent and host
// delay applied; malformed or empty feeds are structural failures.
func (c *Client) Feed(ctx context.Context, rawURL string) (*gofeed.Feed, error) {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	parser := gofeed.NewParser()
	feed, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fetch: parse feed %q: %w: %v", rawURL, ErrStructural, err)
	}
	if len(feed.Items) == 0 {
		return nil, fmt.Errorf("fetch: feed %q: %w: no items", rawURL, ErrStructural)
	}
	return feed, nil
}
