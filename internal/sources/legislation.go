package sources

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/keeptracknz/collector/internal/config"
	"github.com/keeptracknz/collector/internal/fetch"
	"github.com/keeptracknz/collector/internal/logging"
	"github.com/keeptracknz/collector/internal/normalize"
	"github.com/keeptracknz/collector/internal/schema"
)

const legislationBase = "https://www.legislation.govt.nz"

// actsMarker distinguishes acts from the bills and regulations that
// share the publication feed.
const actsMarker = "Information type: Acts"

// Feed entries carry a "Key: value" metadata block in their content.
var (
	feedYearPattern    = regexp.MustCompile(`Year:\s*(\d{4})`)
	feedNumberPattern  = regexp.MustCompile(`No:\s*(\d+)`)
	feedVersionPattern = regexp.MustCompile(`Version:\s*([^<]+)`)
	feedCurrentPattern = regexp.MustCompile(`Current as at date:\s*([^<]+)`)

	actURLPattern     = regexp.MustCompile(`/act/public/(\d{4})/(\d+)/`)
	actVersionPattern = regexp.MustCompile(`/(\d+)\.0/`)
	leadingDigits     = regexp.MustCompile(`^(\d+)`)
)

// actMinisters maps policy keywords in an act's title to the minister
// who owns that area. Ordered: the first hit wins.
var actMinisters = []struct {
	keyword  string
	minister string
}{
	{"taxation", "Hon Nicola Willis"},
	{"tax", "Hon Nicola Willis"},
	{"budget", "Hon Nicola Willis"},
	{"appropriation", "Hon Nicola Willis"},
	{"education", "Hon Erica Stanford"},
	{"health", "Hon Dr Shane Reti"},
	{"housing", "Hon Chris Bishop"},
	{"building", "Hon Chris Bishop"},
	{"transport", "Hon Simeon Brown"},
	{"road", "Hon Simeon Brown"},
	{"justice", "Hon Paul Goldsmith"},
	{"crime", "Hon Mark Mitchell"},
	{"police", "Hon Mark Mitchell"},
	{"environment", "Hon Penny Simmonds"},
	{"immigration", "Hon Erica Stanford"},
	{"defence", "Hon Judith Collins"},
	{"treaty", "Hon David Seymour"},
}

// Legislation collects enacted public acts from legislation.govt.nz.
// The official Atom feed is the primary tier; the recently published
// listing is the fallback when the feed is down or empty.
type Legislation struct {
	client *fetch.Client
	cfg    config.SourceConfig
	base   string
	log    *slog.Logger
}

// NewLegislation returns the enacted-legislation adapter.
func NewLegislation(client *fetch.Client, cfg config.SourceConfig) *Legislation {
	return &Legislation{client: client, cfg: cfg, base: legislationBase, log: logging.New("legislation")}
}

func (l *Legislation) ID() schema.SourceSystem { return schema.Legislation }

func (l *Legislation) Name() string { return "legislation" }

// Fetch runs the legislation tier chain.
func (l *Legislation) Fetch(ctx context.Context) ([]schema.RawRecord, []fetch.TierOutcome, error) {
	tiers := []fetch.Tier{
		{Name: "feed", Run: l.fetchFeed},
		{Name: "static", Run: l.fetchStatic},
	}
	return fetch.RunTiers(ctx, l.log, tiers, fetch.MinRecords(l.cfg.MinRecords))
}

// fetchFeed reads the publication feed and keeps the Acts entries.
func (l *Legislation) fetchFeed(ctx context.Context) ([]schema.RawRecord, error) {
	feed, err := l.client.Feed(ctx, l.base+"/subscribe/nzpco-rss.xml")
	if err != nil {
		return nil, err
	}

	var records []schema.RawRecord
	for _, item := range feed.Items {
		content := item.Content
		if content == "" {
			content = item.Description
		}
		if !strings.Contains(content, actsMarker) {
			continue
		}
		if rec, ok := l.fromFeedEntry(item, content); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// fromFeedEntry maps one Acts entry to a raw record. The metadata
// block is authoritative; the act URL backs it up when a line is
// missing.
func (l *Legislation) fromFeedEntry(item *gofeed.Item, content string) (schema.RawRecord, bool) {
	title := normalize.Clean(item.Title)
	if title == "" || item.Link == "" {
		return schema.RawRecord{}, false
	}

	rec := schema.RawRecord{
		Source: schema.Legislation,
		Title:  title,
		URL:    normalize.ResolveURL(l.base, item.Link),
		Date:   item.Published,
		Entity: actEntity(title),
	}
	if item.PublishedParsed != nil {
		rec.Date = item.PublishedParsed.Format("2006-01-02")
	}

	year, number := actKey(content, rec.URL)
	if year != "" && number != "" {
		rec.SetField("act_number", fmt.Sprintf("%s No %s", year, number))
	}
	rec.SetField("version", actVersion(content, rec.URL))
	if m := feedCurrentPattern.FindStringSubmatch(content); m != nil {
		rec.SetField("commencement_date", normalize.Clean(m[1]))
	}
	return rec, true
}

// fetchStatic scrapes the recently published listing. Sparser than the
// feed: no metadata block, so year, serial and version all come from
// the act URLs, and the records carry no date.
func (l *Legislation) fetchStatic(ctx context.Context) ([]schema.RawRecord, error) {
	doc, err := l.client.Document(ctx, l.base+"/new-legislation")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var records []schema.RawRecord
	doc.Find(`a[href*="/act/public/"]`).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		title := normalize.Clean(link.Text())
		if href == "" || title == "" {
			return
		}
		rawURL := normalize.ResolveURL(l.base, href)
		m := actURLPattern.FindStringSubmatch(rawURL)
		if m == nil {
			return
		}
		key := m[1] + "-" + m[2]
		if seen[key] {
			return
		}
		seen[key] = true

		rec := schema.RawRecord{
			Source: schema.Legislation,
			Title:  title,
			URL:    rawURL,
			Entity: actEntity(title),
		}
		if number := strings.TrimLeft(m[2], "0"); number != "" {
			rec.SetField("act_number", fmt.Sprintf("%s No %s", m[1], number))
		}
		rec.SetField("version", actVersion("", rawURL))
		records = append(records, rec)
	})
	return records, nil
}

// actKey extracts the act's year and serial from the entry metadata,
// falling back to the /act/public/{year}/{number}/ URL segments.
func actKey(content, rawURL string) (year, number string) {
	if m := feedYearPattern.FindStringSubmatch(content); m != nil {
		year = m[1]
	}
	if m := feedNumberPattern.FindStringSubmatch(content); m != nil {
		number = m[1]
	}
	if year == "" || number == "" {
		if m := actURLPattern.FindStringSubmatch(rawURL); m != nil {
			if year == "" {
				year = m[1]
			}
			if number == "" {
				number = strings.TrimLeft(m[2], "0")
			}
		}
	}
	return year, number
}

// actVersion resolves the version serial: the URL's /N.0/ segment is
// authoritative, then a leading number in the metadata's Version line,
// else 1 (first published form).
func actVersion(content, rawURL string) string {
	if m := actVersionPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	if m := feedVersionPattern.FindStringSubmatch(content); m != nil {
		if d := leadingDigits.FindString(strings.TrimSpace(m[1])); d != "" {
			return d
		}
	}
	return "1"
}

// actEntity names the responsible minister from title keywords, or
// Parliament when no portfolio area matches.
func actEntity(title string) string {
	folded := normalize.Fold(title)
	for _, m := range actMinisters {
		if strings.Contains(folded, m.keyword) {
			return m.minister
		}
	}
	return "Parliament"
}
