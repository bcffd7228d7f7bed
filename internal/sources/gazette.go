package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/keeptracknz/collector/internal/config"
	"github.com/keeptracknz/collector/internal/fetch"
	"github.com/keeptracknz/collector/internal/logging"
	"github.com/keeptracknz/collector/internal/normalize"
	"github.com/keeptracknz/collector/internal/schema"
)

const (
	gazetteBase   = "https://gazette.govt.nz"
	digitalNZBase = "https://api.digitalnz.org/v3/records.json"
)

// noticeTypes maps the two-letter code embedded in notice references
// to its display name.
var noticeTypes = map[string]string{
	"vr": "Vice Regal",
	"go": "General",
	"al": "Advertising",
	"dl": "Deaths and Legacies",
	"co": "Corporate",
	"la": "Land",
}

// noticeURLPatterns match the {year}-{type}{number} reference in the
// URL shapes the site has used.
var noticeURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/notice/id/(\d{4})-([a-z]{2})(\d+)`),
	regexp.MustCompile(`/notice/(\d{4})-([a-z]{2})(\d+)`),
	regexp.MustCompile(`/(\d{4})-([a-z]{2})(\d+)`),
}

var gazetteHonPattern = regexp.MustCompile(`Hon\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)

// gazetteDepartments maps title keywords to the issuing department.
var gazetteDepartments = []struct {
	keyword string
	dept    string
}{
	{"internal affairs", "Department of Internal Affairs"},
	{"justice", "Ministry of Justice"},
	{"health", "Ministry of Health"},
	{"education", "Ministry of Education"},
	{"transport", "Ministry of Transport"},
}

// gazettePortfolios maps notice keywords to portfolios. Ordered: the
// first hit wins.
var gazettePortfolios = []struct {
	keyword   string
	portfolio string
}{
	{"justice", "Justice"},
	{"health", "Health"},
	{"education", "Education"},
	{"transport", "Transport"},
	{"environment", "Environment"},
	{"housing", "Housing"},
	{"economic development", "Economic Development"},
	{"internal affairs", "Internal Affairs"},
	{"social development", "Social Development"},
	{"defence", "Defence"},
	{"foreign affairs", "Foreign Affairs"},
	{"immigration", "Immigration"},
	{"agriculture", "Agriculture"},
	{"forestry", "Forestry"},
	{"fisheries", "Fisheries"},
	{"energy", "Energy"},
	{"customs", "Customs"},
	{"police", "Police"},
	{"corrections", "Corrections"},
}

// Gazette collects official notices from gazette.govt.nz. The
// DigitalNZ aggregation API is the primary tier when a key is
// configured; the public notice search is the fallback and the only
// tier without one.
type Gazette struct {
	client  *fetch.Client
	cfg     config.SourceConfig
	base    string
	apiBase string
	log     *slog.Logger
}

// NewGazette returns the gazette notices adapter.
func NewGazette(client *fetch.Client, cfg config.SourceConfig) *Gazette {
	return &Gazette{client: client, cfg: cfg, base: gazetteBase, apiBase: digitalNZBase, log: logging.New("gazette")}
}

func (g *Gazette) ID() schema.SourceSystem { return schema.Gazette }

func (g *Gazette) Name() string { return "gazette" }

// Fetch runs the gazette tier chain. Without an API key the
// aggregation tier is skipped entirely.
func (g *Gazette) Fetch(ctx context.Context) ([]schema.RawRecord, []fetch.TierOutcome, error) {
	var tiers []fetch.Tier
	if g.cfg.APIKey != "" {
		tiers = append(tiers, fetch.Tier{Name: "api", Run: g.fetchAPI})
	}
	tiers = append(tiers, fetch.Tier{Name: "static", Run: g.fetchStatic})
	return fetch.RunTiers(ctx, g.log, tiers, fetch.MinRecords(g.cfg.MinRecords))
}

// digitalNZEnvelope is the slice of the DigitalNZ response the
// adapter consumes.
type digitalNZEnvelope struct {
	Search struct {
		Results []digitalNZRecord `json:"results"`
	} `json:"search"`
}

type digitalNZRecord struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	LandingURL  string   `json:"landing_url"`
	Date        string   `json:"date"`
	Creator     []string `json:"creator"`
}

func (g *Gazette) fetchAPI(ctx context.Context) ([]schema.RawRecord, error) {
	q := url.Values{}
	q.Set("api_key", g.cfg.APIKey)
	q.Set("text", "New Zealand Gazette")
	q.Add("and[category][]", "Government")
	q.Add("and[content_partner][]", "New Zealand Gazette Office")
	q.Set("sort", "date")
	q.Set("direction", "desc")
	q.Set("per_page", strconv.Itoa(g.perPage()))
	q.Set("fields", "title,description,landing_url,date,creator,subject,type,rights")

	body, err := g.client.Get(ctx, g.apiBase+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var envelope digitalNZEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("gazette api: %w: %v", fetch.ErrStructural, err)
	}

	var records []schema.RawRecord
	for _, r := range envelope.Search.Results {
		if rec, ok := fromDigitalNZ(r); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// perPage sizes the single API page from the configured page budget,
// within the service's 100-record cap.
func (g *Gazette) perPage() int {
	n := g.cfg.MaxPages * 20
	if n < 20 {
		n = 20
	}
	if n > 100 {
		n = 100
	}
	return n
}

// fromDigitalNZ maps one aggregation record onto a raw notice.
func fromDigitalNZ(r digitalNZRecord) (schema.RawRecord, bool) {
	title := normalize.Clean(r.Title)
	if title == "" || r.LandingURL == "" {
		return schema.RawRecord{}, false
	}

	rec := schema.RawRecord{
		Source:  schema.Gazette,
		Title:   title,
		URL:     r.LandingURL,
		Date:    r.Date,
		Summary: r.Description,
	}

	ref, typeName := noticeInfo(rec.URL)
	creator := ""
	if len(r.Creator) > 0 {
		creator = normalize.Clean(r.Creator[0])
	}
	if creator != "" {
		rec.Entity = creator
	} else {
		rec.Entity = noticeEntity(title, typeName)
	}

	rec.SetField("notice_ref", ref)
	rec.SetField("notice_number", ref)
	rec.SetField("notice_type", typeName)
	rec.SetField("portfolio", noticePortfolio(title+" "+creator))
	return rec, true
}

// fetchStatic scrapes the public notice search, newest first. Each
// result row links the notice and carries the publish date in its
// first cell.
func (g *Gazette) fetchStatic(ctx context.Context) ([]schema.RawRecord, error) {
	searchURL := fmt.Sprintf("%s/home/search?sortField=publish_date&sortOrder=desc&from=0", g.base)
	doc, err := g.client.Document(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	var records []schema.RawRecord
	doc.Find(`a[href*="/notice/id/"]`).Each(func(_ int, link *goquery.Selection) {
		if rec, ok := g.extractSearchRow(link); ok {
			records = append(records, rec)
		}
	})
	return records, nil
}

// extractSearchRow builds a record from one result link and its
// surrounding table row.
func (g *Gazette) extractSearchRow(link *goquery.Selection) (schema.RawRecord, bool) {
	title := normalize.Clean(link.Text())
	href, _ := link.Attr("href")
	if title == "" || href == "" {
		return schema.RawRecord{}, false
	}

	rec := schema.RawRecord{
		Source: schema.Gazette,
		Title:  title,
		URL:    normalize.ResolveURL(g.base, href),
	}

	ref, typeName := noticeInfo(rec.URL)
	if row := link.Closest("tr"); row.Length() > 0 {
		cells := row.Find("td")
		if cells.Length() > 0 {
			rec.Date = normalize.Clean(cells.First().Text())
		}
		// The type column outranks the URL code when they disagree.
		if cells.Length() > 2 {
			if t := normalize.Clean(cells.Eq(2).Text()); t != "" {
				typeName = t
			}
		}
	}

	rec.Entity = noticeEntity(title, typeName)
	rec.SetField("notice_ref", ref)
	rec.SetField("notice_number", ref)
	rec.SetField("notice_type", typeName)
	rec.SetField("portfolio", noticePortfolio(title))
	return rec, true
}

// noticeInfo extracts the {year}-{type}{number} reference and display
// type from a notice URL. The reference keys the canonical ID.
func noticeInfo(rawURL string) (ref, typeName string) {
	for _, pattern := range noticeURLPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			ref = fmt.Sprintf("%s-%s%s", m[1], m[2], m[3])
			typeName = noticeTypes[m[2]]
			if typeName == "" {
				typeName = "General"
			}
			return ref, typeName
		}
	}
	return "", "General"
}

// noticeEntity decides who issued the notice. Vice Regal notices are
// always the Governor-General; otherwise a named minister or a known
// department, with Government as the last resort.
func noticeEntity(title, typeName string) string {
	if typeName == "Vice Regal" {
		return "Governor-General"
	}
	if m := gazetteHonPattern.FindStringSubmatch(title); m != nil {
		return "Hon " + m[1]
	}
	folded := normalize.Fold(title)
	for _, d := range gazetteDepartments {
		if strings.Contains(folded, d.keyword) {
			return d.dept
		}
	}
	return "Government"
}

func noticePortfolio(text string) string {
	folded := normalize.Fold(text)
	for _, p := range gazettePortfolios {
		if strings.Contains(folded, p.keyword) {
			return p.portfolio
		}
	}
	return ""
}
