package sources

import (
	"context"
	"encoding/json"
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

const billsBase = "https://bills.parliament.nz"

// currentParliament stamps every bill with the sitting parliament.
const currentParliament = "54"

var (
	billNumberURLPattern   = regexp.MustCompile(`BILL(\d+)`)
	billNumberTitlePattern = regexp.MustCompile(`(?i)Bill\s+(\d+)`)
)

// billRowSelectors locate one bill per node on the search listing.
var billRowSelectors = []string{
	".bill-item",
	".bill-card",
	".search-result",
	"[data-bill-id]",
	"article",
	".legislation-item",
}

// billStageSelectors locate progress rows on a bill's detail page.
var billStageSelectors = []string{
	".stage-history tr",
	".timeline .stage",
	".progress .step",
	".stages li",
}

var billSummarySelectors = []string{
	".summary",
	".description",
	".bill-summary",
	".explanatory-note",
	`meta[name="description"]`,
	".content p",
}

// Bills collects bills before the House from bills.parliament.nz. The
// JSON endpoint is tried first; the paginated Tab=Current search
// listing is the workhorse tier, enriched per bill with the detail
// page's summary and stage history.
type Bills struct {
	client *fetch.Client
	cfg    config.SourceConfig
	base   string
	log    *slog.Logger
}

// NewBills returns the parliament bills adapter.
func NewBills(client *fetch.Client, cfg config.SourceConfig) *Bills {
	return &Bills{client: client, cfg: cfg, base: billsBase, log: logging.New("bills")}
}

func (b *Bills) ID() schema.SourceSystem { return schema.Parliament }

func (b *Bills) Name() string { return "bills" }

// Fetch runs the bills tier chain.
func (b *Bills) Fetch(ctx context.Context) ([]schema.RawRecord, []fetch.TierOutcome, error) {
	tiers := []fetch.Tier{
		{Name: "api", Run: b.fetchAPI},
		{Name: "static", Run: b.fetchStatic},
	}
	return fetch.RunTiers(ctx, b.log, tiers, fetch.MinRecords(b.cfg.MinRecords))
}

// billsAPIResponse matches the undocumented search endpoint. Key names
// have drifted before, so the envelope and the items both accept the
// variants seen in the wild.
type billsAPIResponse struct {
	Items   []billsAPIItem `json:"items"`
	Bills   []billsAPIItem `json:"bills"`
	Results []billsAPIItem `json:"results"`
}

type billsAPIItem struct {
	BillNumber       json.Number     `json:"billNumber"`
	BillNumberAlt    json.Number     `json:"bill_number"`
	Title            string          `json:"title"`
	Name             string          `json:"name"`
	URL              string          `json:"url"`
	Link             string          `json:"link"`
	Sponsor          json.RawMessage `json:"sponsor"`
	SponsoringMember json.RawMessage `json:"sponsoringMember"`
	IntroductionDate string          `json:"introductionDate"`
	DateIntroduced   string          `json:"dateIntroduced"`
}

func (b *Bills) fetchAPI(ctx context.Context) ([]schema.RawRecord, error) {
	body, err := b.client.Get(ctx, b.base+"/api/bills/search")
	if err != nil {
		return nil, err
	}
	var resp billsAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("bills api: %w: %v", fetch.ErrStructural, err)
	}

	items := resp.Items
	if len(items) == 0 {
		items = resp.Bills
	}
	if len(items) == 0 {
		items = resp.Results
	}

	var records []schema.RawRecord
	for _, item := range items {
		title := normalize.Clean(firstNonEmpty(item.Title, item.Name))
		rawURL := firstNonEmpty(item.URL, item.Link)
		if title == "" || rawURL == "" {
			continue
		}
		rawURL = normalize.ResolveURL(b.base, rawURL)

		rec := schema.RawRecord{
			Source: schema.Parliament,
			Title:  title,
			URL:    rawURL,
			Date:   firstNonEmpty(item.IntroductionDate, item.DateIntroduced),
			Entity: firstNonEmpty(sponsorName(item.Sponsor), sponsorName(item.SponsoringMember)),
		}
		number := firstNonEmpty(item.BillNumber.String(), item.BillNumberAlt.String())
		if number == "" {
			number = billNumber(title, rawURL)
		}
		rec.SetField("bill_number", number)
		rec.SetField("parliament_number", currentParliament)
		records = append(records, rec)
	}
	return records, nil
}

// sponsorName decodes a sponsor value that is either a bare string or
// an object carrying displayName/name.
func sponsorName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		DisplayName string `json:"displayName"`
		Name        string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return firstNonEmpty(obj.DisplayName, obj.Name)
	}
	return ""
}

// fetchStatic walks the Tab=Current search listing page by page, then
// enriches each bill from its detail page. A failed later page keeps
// what earlier pages yielded; a failed first page fails the tier.
func (b *Bills) fetchStatic(ctx context.Context) ([]schema.RawRecord, error) {
	var records []schema.RawRecord
	for page := 1; page <= b.cfg.MaxPages; page++ {
		pageURL := fmt.Sprintf("%s/bills-proposed-laws?Tab=Current&Page=%d", b.base, page)
		doc, err := b.client.Document(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			b.log.Warn("listing page failed, keeping earlier pages", "page", page, "error", err)
			break
		}

		rows := selectAny(doc, billRowSelectors)
		if rows == nil {
			if page == 1 {
				return nil, fmt.Errorf("bills listing: %w: no bill rows", fetch.ErrStructural)
			}
			break
		}

		before := len(records)
		rows.Each(func(_ int, row *goquery.Selection) {
			if rec, ok := b.extractListed(row); ok {
				records = append(records, rec)
			}
		})
		if len(records) == before {
			break
		}
	}

	for i := range records {
		b.enrich(ctx, &records[i])
	}
	return records, nil
}

// extractListed pulls one bill from a listing row.
func (b *Bills) extractListed(row *goquery.Selection) (schema.RawRecord, bool) {
	title := firstText(row, "h2", "h3", ".title", ".bill-title", "a")
	href, _ := row.Find("a").First().Attr("href")
	if title == "" || href == "" {
		return schema.RawRecord{}, false
	}

	rec := schema.RawRecord{
		Source: schema.Parliament,
		Title:  title,
		URL:    normalize.ResolveURL(b.base, href),
		Date:   firstText(row, ".date", ".introduced", "time"),
		Entity: firstText(row, ".sponsor", ".member", ".mp-name"),
	}
	rec.SetField("bill_number", billNumber(title, rec.URL))
	rec.SetField("parliament_number", currentParliament)
	return rec, true
}

// billNumber extracts the bill's serial from the URL (preferred) or
// the title. Empty when neither carries one; the normalizer then falls
// back to a content-hash ID.
func billNumber(title, rawURL string) string {
	if m := billNumberURLPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	if m := billNumberTitlePattern.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return ""
}

// enrich adds the detail page's summary and stage history to rec.
// Detail failures keep the listing data; the record is still useful
// without them.
func (b *Bills) enrich(ctx context.Context, rec *schema.RawRecord) {
	doc, err := b.client.Document(ctx, rec.URL)
	if err != nil {
		b.log.Warn("bill detail fetch failed", "url", rec.URL, "error", err)
		return
	}
	if summary := billSummary(doc); summary != "" {
		rec.Summary = summary
	}
	rec.Stages = billStages(doc)
}

// billSummary finds descriptive text on the detail page. Body text
// under fifty characters is navigation residue, not a summary.
func billSummary(doc *goquery.Document) string {
	for _, sel := range billSummarySelectors {
		found := doc.Find(sel).First()
		if found.Length() == 0 {
			continue
		}
		if strings.HasPrefix(sel, "meta") {
			if content, ok := found.Attr("content"); ok {
				if c := normalize.Clean(content); c != "" {
					return c
				}
			}
			continue
		}
		if text := normalize.Clean(found.Text()); len(text) > 50 {
			return text
		}
	}
	return ""
}

// billStages reads the stage table or timeline. A row is either a
// single "Name - Date" line or separate name and date nodes; rows
// missing either part are skipped.
func billStages(doc *goquery.Document) []schema.RawStage {
	rows := selectAny(doc, billStageSelectors)
	if rows == nil {
		return nil
	}
	var stages []schema.RawStage
	rows.Each(func(_ int, row *goquery.Selection) {
		name, date := splitStageRow(row)
		if name != "" && date != "" {
			stages = append(stages, schema.RawStage{Name: name, Date: date})
		}
	})
	return stages
}

func splitStageRow(row *goquery.Selection) (name, date string) {
	text := normalize.Clean(row.Text())
	if i := strings.Index(text, " - "); i > 0 {
		return strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+3:])
	}
	name = firstText(row, ".stage-name", ".stage", "th", "td:first-child")
	date = firstText(row, ".date", ".stage-date", "td:last-child")
	return name, date
}
