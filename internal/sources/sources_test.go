package sources

import (
	"testing"
	"time"

	"github.com/keeptracknz/collector/internal/config"
	"github.com/keeptracknz/collector/internal/fetch"
	"github.com/keeptracknz/collector/internal/schema"
)

func testFetchClient() *fetch.Client {
	return fetch.NewClient(fetch.Config{
		Timeout:    5 * time.Second,
		UserAgent:  "keeptrack-test/1.0",
		MaxRetries: 1,
	})
}

func TestFromConfig_AllEnabled(t *testing.T) {
	cfg := config.Default()
	got := FromConfig(cfg, Deps{Client: testFetchClient()})
	if len(got) != 4 {
		t.Fatalf("adapters = %d, want 4", len(got))
	}
	order := []schema.SourceSystem{schema.Legislation, schema.Parliament, schema.Gazette, schema.Beehive}
	for i, src := range got {
		if src.ID() != order[i] {
			t.Errorf("adapter[%d] = %s, want %s", i, src.ID(), order[i])
		}
	}
}

func TestFromConfig_DisabledSourceSkipped(t *testing.T) {
	cfg := config.Default()
	cfg.Sources.Gazette.Enabled = false
	got := FromConfig(cfg, Deps{Client: testFetchClient()})
	if len(got) != 3 {
		t.Fatalf("adapters = %d, want 3", len(got))
	}
	for _, src := range got {
		if src.ID() == schema.Gazette {
			t.Error("disabled gazette adapter still built")
		}
	}
}

func TestFromConfig_OnlyFilter(t *testing.T) {
	cfg := config.Default()
	got := FromConfig(cfg, Deps{Client: testFetchClient()}, "bills", "Beehive")
	if len(got) != 2 {
		t.Fatalf("adapters = %d, want 2", len(got))
	}
	if got[0].Name() != "bills" || got[1].Name() != "beehive" {
		t.Errorf("filtered adapters = %s, %s", got[0].Name(), got[1].Name())
	}
}

func TestCatalog_ReflectsConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Sources.Gazette.APIKey = "test-key"
	cfg.Browser.Enabled = false

	byName := make(map[string]Info)
	for _, info := range Catalog(cfg) {
		byName[info.Name] = info
	}
	if len(byName) != 4 {
		t.Fatalf("catalog entries = %d, want 4", len(byName))
	}

	if tiers := byName["gazette"].Tiers; len(tiers) != 2 || tiers[0] != "api" {
		t.Errorf("gazette tiers with key = %v", tiers)
	}
	if tiers := byName["beehive"].Tiers; len(tiers) != 1 || tiers[0] != "static" {
		t.Errorf("beehive tiers without browser = %v", tiers)
	}

	cfg.Sources.Gazette.APIKey = ""
	for _, info := range Catalog(cfg) {
		if info.Name == "gazette" {
			if len(info.Tiers) != 1 || info.Tiers[0] != "static" {
				t.Errorf("gazette tiers without key = %v", info.Tiers)
			}
		}
	}
}

func TestNames_MatchCatalog(t *testing.T) {
	names := Names()
	catalog := Catalog(config.Default())
	if len(names) != len(catalog) {
		t.Fatalf("names = %d, catalog = %d", len(names), len(catalog))
	}
	for i, info := range catalog {
		if names[i] != info.Name {
			t.Errorf("names[%d] = %q, catalog has %q", i, names[i], info.Name)
		}
	}
}
