// Package sources implements the per-site collection adapters. Each
// adapter owns one government publication channel: its endpoints, its
// fetch tier chain, and the selector and keyword tables that pull
// records out of whatever the site currently serves. Adapters emit
// RawRecords with source-native field values; date parsing, text
// cleanup and ID derivation belong to the normalizer.
package sources

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/keeptracknz/collector/internal/config"
	"github.com/keeptracknz/collector/internal/fetch"
	"github.com/keeptracknz/collector/internal/normalize"
	"github.com/keeptracknz/collector/internal/schema"
)

// Source is one collection adapter. Fetch runs the adapter's tier
// chain and returns the first accepted result set plus the outcome of
// every tier tried. Adapters hold no mutable state, so distinct
// sources may be fetched concurrently.
type Source interface {
	ID() schema.SourceSystem
	Name() string
	Fetch(ctx context.Context) ([]schema.RawRecord, []fetch.TierOutcome, error)
}

// Deps carries the shared fetch machinery into the adapters. Renderer
// is nil when the browser tier is disabled; adapters then omit that
// tier from their chain.
type Deps struct {
	Client   *fetch.Client
	Renderer *fetch.Renderer
}

// FromConfig builds the enabled adapters in reconciliation priority
// order. A non-empty only list restricts the result to the named
// adapters.
func FromConfig(cfg config.Config, deps Deps, only ...string) []Source {
	wanted := func(name string) bool {
		if len(only) == 0 {
			return true
		}
		for _, o := range only {
			if strings.EqualFold(strings.TrimSpace(o), name) {
				return true
			}
		}
		return false
	}

	var out []Source
	if cfg.Sources.Legislation.Enabled && wanted("legislation") {
		out = append(out, NewLegislation(deps.Client, cfg.Sources.Legislation))
	}
	if cfg.Sources.Bills.Enabled && wanted("bills") {
		out = append(out, NewBills(deps.Client, cfg.Sources.Bills))
	}
	if cfg.Sources.Gazette.Enabled && wanted("gazette") {
		out = append(out, NewGazette(deps.Client, cfg.Sources.Gazette))
	}
	if cfg.Sources.Beehive.Enabled && wanted("beehive") {
		out = append(out, NewBeehive(deps.Client, deps.Renderer, cfg.Sources.Beehive))
	}
	return out
}

// Names lists the adapter names FromConfig understands, in priority
// order. The CLI validates --source values against this.
func Names() []string {
	return []string{"legislation", "bills", "gazette", "beehive"}
}

// Info describes one adapter for operator-facing listings.
type Info struct {
	Name     string
	System   schema.SourceSystem
	Endpoint string
	Tiers    []string
	Enabled  bool
}

// Catalog returns the adapter descriptions for the given
// configuration, reflecting which tiers each adapter would actually
// try on a run.
func Catalog(cfg config.Config) []Info {
	gazetteTiers := []string{"static"}
	if cfg.Sources.Gazette.APIKey != "" {
		gazetteTiers = []string{"api", "static"}
	}
	beehiveTiers := []string{"static"}
	if cfg.Browser.Enabled {
		beehiveTiers = append(beehiveTiers, "browser")
	}
	return []Info{
		{Name: "legislation", System: schema.Legislation, Endpoint: legislationBase, Tiers: []string{"feed", "static"}, Enabled: cfg.Sources.Legislation.Enabled},
		{Name: "bills", System: schema.Parliament, Endpoint: billsBase, Tiers: []string{"api", "static"}, Enabled: cfg.Sources.Bills.Enabled},
		{Name: "gazette", System: schema.Gazette, Endpoint: gazetteBase, Tiers: gazetteTiers, Enabled: cfg.Sources.Gazette.Enabled},
		{Name: "beehive", System: schema.Beehive, Endpoint: beehiveBase, Tiers: beehiveTiers, Enabled: cfg.Sources.Beehive.Enabled},
	}
}

// selectAny returns the matches of the first selector that finds
// anything. Selector lists absorb the sites' periodic markup churn:
// extraction keys off whichever shape the page currently has.
func selectAny(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if s := doc.Find(sel); s.Length() > 0 {
			return s
		}
	}
	return nil
}

// firstText returns the cleaned text of the first selector that
// yields any under root.
func firstText(root *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		found := root.Find(sel).First()
		if found.Length() == 0 {
			continue
		}
		if t := normalize.Clean(found.Text()); t != "" {
			return t
		}
	}
	return ""
}

// firstNonEmpty returns the first non-empty value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
