package sources

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/keeptracknz/collector/internal/config"
	"github.com/keeptracknz/collector/internal/fetch"
	"github.com/keeptracknz/collector/internal/logging"
	"github.com/keeptracknz/collector/internal/normalize"
	"github.com/keeptracknz/collector/internal/schema"
)

const beehiveBase = "https://www.beehive.govt.nz"

// beehiveSections lists the two listing paths and the document type
// their entries carry.
var beehiveSections = []struct {
	path    string
	docType string
}{
	{"/release", "Press Release"},
	{"/speech", "Speech"},
}

// beehiveRowSelectors locate one announcement per node on a listing.
var beehiveRowSelectors = []string{
	".view-content .views-row",
	".release-list .release-item",
	".speech-list .speech-item",
	".content-list .content-item",
	"article",
	".node-teaser",
	".announcement",
}

var (
	rtHonPattern = regexp.MustCompile(`Rt\.?\s+Hon\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)
	honPattern   = regexp.MustCompile(`Hon\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)
	slashDate    = regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]\d{4})`)
)

// beehiveMinisters resolves bare surnames in headlines to the full
// styled name. Ordered: the first hit wins.
var beehiveMinisters = []struct {
	key  string
	name string
}{
	{"luxon", "Rt Hon Christopher Luxon"},
	{"peters", "Rt Hon Winston Peters"},
	{"seymour", "Hon David Seymour"},
	{"bishop", "Hon Chris Bishop"},
	{"willis", "Hon Nicola Willis"},
	{"mitchell", "Hon Mark Mitchell"},
	{"brown", "Hon Simeon Brown"},
	{"stanford", "Hon Erica Stanford"},
	{"reti", "Hon Dr Shane Reti"},
	{"jones", "Hon Shane Jones"},
	{"doocey", "Hon Matt Doocey"},
	{"van velden", "Hon Brooke van Velden"},
	{"costley", "Hon Andrew Costley"},
}

// beehivePortfolios maps headline keywords to portfolios. Longer
// phrases sit before their substrings so the specific match wins.
var beehivePortfolios = []struct {
	keyword   string
	portfolio string
}{
	{"deputy prime minister", "Deputy Prime Minister"},
	{"prime minister", "Prime Minister"},
	{"finance", "Finance"},
	{"treasury", "Finance"},
	{"health", "Health"},
	{"education", "Education"},
	{"housing", "Housing"},
	{"transport", "Transport"},
	{"justice", "Justice"},
	{"defence", "Defence"},
	{"foreign affairs", "Foreign Affairs"},
	{"trade", "Trade"},
	{"environment", "Environment"},
	{"climate", "Climate Change"},
	{"energy", "Energy"},
	{"agriculture", "Agriculture"},
	{"fisheries", "Fisheries"},
	{"forestry", "Forestry"},
	{"immigration", "Immigration"},
	{"customs", "Customs"},
	{"internal affairs", "Internal Affairs"},
	{"social development", "Social Development"},
	{"women", "Women"},
	{"maori development", "Māori Development"},
	{"pacific peoples", "Pacific Peoples"},
	{"seniors", "Seniors"},
	{"disability issues", "Disability Issues"},
	{"workplace relations", "Workplace Relations"},
	{"commerce", "Commerce and Consumer Affairs"},
	{"sport", "Sport and Recreation"},
	{"arts", "Arts, Culture and Heritage"},
	{"conservation", "Conservation"},
	{"emergency management", "Emergency Management"},
}

// Beehive collects ministerial releases and speeches from
// beehive.govt.nz. The static tier reads both listings with plain
// HTTP; the browser tier repeats them through a rendered page when the
// site's anti-automation layer defeats that.
type Beehive struct {
	client   *fetch.Client
	renderer *fetch.Renderer
	cfg      config.SourceConfig
	base     string
	log      *slog.Logger
}

// NewBeehive returns the announcements adapter. A nil renderer drops
// the browser tier from the chain.
func NewBeehive(client *fetch.Client, renderer *fetch.Renderer, cfg config.SourceConfig) *Beehive {
	return &Beehive{client: client, renderer: renderer, cfg: cfg, base: beehiveBase, log: logging.New("beehive")}
}

func (b *Beehive) ID() schema.SourceSystem { return schema.Beehive }

func (b *Beehive) Name() string { return "beehive" }

// Fetch runs the beehive tier chain.
func (b *Beehive) Fetch(ctx context.Context) ([]schema.RawRecord, []fetch.TierOutcome, error) {
	tiers := []fetch.Tier{
		{Name: "static", Run: b.fetchStatic},
	}
	if b.renderer != nil {
		tiers = append(tiers, fetch.Tier{Name: "browser", Run: b.fetchBrowser})
	}
	return fetch.RunTiers(ctx, b.log, tiers, fetch.MinRecords(b.cfg.MinRecords))
}

// fetchStatic reads both listings with plain HTTP. Listing pages are
// zero-indexed; paging stops at the first page that adds nothing.
func (b *Beehive) fetchStatic(ctx context.Context) ([]schema.RawRecord, error) {
	var records []schema.RawRecord
	var lastErr error
	for _, section := range beehiveSections {
		for page := 0; page < b.cfg.MaxPages; page++ {
			pageURL := fmt.Sprintf("%s%s?page=%d", b.base, section.path, page)
			doc, err := b.client.Document(ctx, pageURL)
			if err != nil {
				b.log.Warn("listing fetch failed", "url", pageURL, "error", err)
				lastErr = err
				break
			}
			if b.extractListing(doc, section.docType, &records) == 0 {
				break
			}
		}
	}
	if len(records) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return records, nil
}

// fetchBrowser repeats the listings through a rendered browser. Same
// extraction, different transport; only the first page of each
// section is rendered.
func (b *Beehive) fetchBrowser(ctx context.Context) ([]schema.RawRecord, error) {
	var records []schema.RawRecord
	var lastErr error
	for _, section := range beehiveSections {
		doc, err := b.renderer.Render(ctx, b.base+section.path, ".view-content")
		if err != nil {
			b.log.Warn("render failed", "path", section.path, "error", err)
			lastErr = err
			continue
		}
		b.extractListing(doc, section.docType, &records)
	}
	if len(records) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return records, nil
}

// extractListing pulls every announcement row from one listing page
// into out, returning how many rows the page yielded.
func (b *Beehive) extractListing(doc *goquery.Document, docType string, out *[]schema.RawRecord) int {
	rows := selectAny(doc, beehiveRowSelectors)
	if rows == nil {
		// Last resort: bare announcement links under the content area.
		rows = doc.Find(`.main-content a[href*="/release/"], .main-content a[href*="/speech/"], #content a[href*="/release/"], #content a[href*="/speech/"]`)
		if rows.Length() == 0 {
			return 0
		}
	}

	count := 0
	rows.Each(func(_ int, row *goquery.Selection) {
		if rec, ok := b.extractRow(row, docType); ok {
			*out = append(*out, rec)
			count++
		}
	})
	return count
}

// extractRow builds a record from one listing row. A row is anything
// from a full teaser node down to a bare anchor.
func (b *Beehive) extractRow(row *goquery.Selection, docType string) (schema.RawRecord, bool) {
	link := row
	if !row.Is("a") {
		link = row.Find("a").First()
	}
	if link.Length() == 0 {
		return schema.RawRecord{}, false
	}
	title := normalize.Clean(link.Text())
	href, _ := link.Attr("href")
	if title == "" || href == "" {
		return schema.RawRecord{}, false
	}

	date := firstText(row, ".date", ".published", ".timestamp", "time", ".field-name-post-date", ".submitted")
	if date == "" {
		if m := slashDate.FindStringSubmatch(row.Text()); m != nil {
			date = m[1]
		}
	}

	rec := schema.RawRecord{
		Source:  schema.Beehive,
		Title:   title,
		URL:     normalize.ResolveURL(b.base, href),
		Date:    date,
		Entity:  beehiveMinister(title),
		Summary: teaserSummary(row, title),
	}
	rec.SetField("document_type", docType)
	rec.SetField("portfolio", beehivePortfolio(title))
	return rec, true
}

// teaserSummary reads the teaser body if the row carries one. Some
// teasers repeat the headline; identical text is not a summary.
func teaserSummary(row *goquery.Selection, title string) string {
	text := firstText(row, ".views-field-body", ".field-name-body", ".teaser", "p")
	if text == title {
		return ""
	}
	return text
}

// beehiveMinister extracts the announcing minister from a headline:
// an explicit Rt Hon/Hon styling first, then known surnames, then the
// generic Government.
func beehiveMinister(title string) string {
	if m := rtHonPattern.FindStringSubmatch(title); m != nil {
		return "Rt Hon " + m[1]
	}
	if m := honPattern.FindStringSubmatch(title); m != nil {
		return "Hon " + m[1]
	}
	folded := normalize.Fold(title)
	for _, m := range beehiveMinisters {
		if strings.Contains(folded, m.key) {
			return m.name
		}
	}
	return "Government"
}

func beehivePortfolio(title string) string {
	folded := normalize.Fold(title)
	for _, p := range beehivePortfolios {
		if strings.Contains(folded, p.keyword) {
			return p.portfolio
		}
	}
	return ""
}
