package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keeptracknz/collector/internal/config"
	"github.com/keeptracknz/collector/internal/schema"
)

const billsListingPage = `<html><body>
<div class="search-results">
  <div class="bill-item">
    <h2>Fast-track Approvals Bill</h2>
    <a href="/v/6/fast-track-approvals-BILL12345">Read the bill</a>
    <span class="sponsor">Hon Chris Bishop</span>
    <span class="date">7 March 2024</span>
  </div>
  <div class="bill-item">
    <h2>Gangs Legislation Amendment Bill</h2>
    <a href="/v/6/gangs-legislation-BILL54321">Read the bill</a>
    <span class="sponsor">Hon Paul Goldsmith</span>
    <span class="date">26 February 2024</span>
  </div>
</div>
</body></html>`

const billDetailPage = `<html><head>
<meta name="description" content="Establishes a one-stop consenting regime for projects of national and regional significance.">
</head><body>
<table class="stage-history">
  <tr><th>Stage</th><th>Date</th></tr>
  <tr><td>Introduction</td><td>7 March 2024</td></tr>
  <tr><td>First Reading</td><td>4 April 2024</td></tr>
</table>
</body></html>`

func TestBills_StaticTier(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/bills-proposed-laws", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("Tab") != "Current" {
			t.Errorf("listing request missing Tab=Current: %s", r.URL)
		}
		_, _ = w.Write([]byte(billsListingPage))
	})
	mux.HandleFunc("/v/6/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(billDetailPage))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	b := NewBills(testFetchClient(), config.SourceConfig{Enabled: true, MaxPages: 1, MinRecords: 2})
	b.base = server.URL

	records, outcomes, err := b.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	// The JSON endpoint 404s in this fixture, so the static tier wins.
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	if outcomes[0].Tier != "api" || outcomes[0].Used {
		t.Errorf("api outcome = %+v, want unused", outcomes[0])
	}
	if outcomes[1].Tier != "static" || !outcomes[1].Used || outcomes[1].Records != 2 {
		t.Errorf("static outcome = %+v", outcomes[1])
	}

	rec := records[0]
	if rec.Source != schema.Parliament {
		t.Errorf("source = %s", rec.Source)
	}
	if rec.Title != "Fast-track Approvals Bill" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.URL != server.URL+"/v/6/fast-track-approvals-BILL12345" {
		t.Errorf("url = %q", rec.URL)
	}
	if rec.Date != "7 March 2024" {
		t.Errorf("date = %q", rec.Date)
	}
	if rec.Entity != "Hon Chris Bishop" {
		t.Errorf("entity = %q", rec.Entity)
	}
	if got := rec.Field("bill_number"); got != "12345" {
		t.Errorf("bill_number = %q", got)
	}
	if got := rec.Field("parliament_number"); got != "54" {
		t.Errorf("parliament_number = %q", got)
	}
	if rec.Summary == "" {
		t.Error("summary not taken from detail page")
	}
	if len(rec.Stages) != 2 {
		t.Fatalf("stages = %d, want 2 (header row must not count)", len(rec.Stages))
	}
	if rec.Stages[0].Name != "Introduction" || rec.Stages[0].Date != "7 March 2024" {
		t.Errorf("stage[0] = %+v", rec.Stages[0])
	}
}

func TestBills_APITier(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/bills/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bills":[
			{"billNumber":12345,"title":"Fast-track Approvals Bill","url":"/v/6/fast-track-approvals-BILL12345","sponsor":{"displayName":"Hon Chris Bishop"},"introductionDate":"2024-03-07"},
			{"bill_number":"54321","name":"Gangs Legislation Amendment Bill","link":"/v/6/gangs-legislation-BILL54321","sponsoringMember":"Hon Paul Goldsmith"}
		]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	b := NewBills(testFetchClient(), config.SourceConfig{Enabled: true, MaxPages: 1, MinRecords: 2})
	b.base = server.URL

	records, outcomes, err := b.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(outcomes) != 1 || !outcomes[0].Used || outcomes[0].Tier != "api" {
		t.Fatalf("outcomes = %+v, want api tier used", outcomes)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	if got := records[0].Field("bill_number"); got != "12345" {
		t.Errorf("numeric bill number = %q", got)
	}
	if records[0].Entity != "Hon Chris Bishop" {
		t.Errorf("object sponsor = %q", records[0].Entity)
	}
	if records[0].Date != "2024-03-07" {
		t.Errorf("date = %q", records[0].Date)
	}

	if got := records[1].Field("bill_number"); got != "54321" {
		t.Errorf("string bill number via alt key = %q", got)
	}
	if records[1].Entity != "Hon Paul Goldsmith" {
		t.Errorf("string sponsor via alt key = %q", records[1].Entity)
	}
	if records[1].Title != "Gangs Legislation Amendment Bill" {
		t.Errorf("title via name key = %q", records[1].Title)
	}
}

func TestBills_DetailFailureKeepsListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/bills-proposed-laws", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(billsListingPage))
	})
	// No detail handler: every enrichment fetch 404s.
	server := httptest.NewServer(mux)
	defer server.Close()

	b := NewBills(testFetchClient(), config.SourceConfig{Enabled: true, MaxPages: 1, MinRecords: 2})
	b.base = server.URL

	records, _, err := b.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Summary != "" || len(records[0].Stages) != 0 {
		t.Errorf("record enriched despite dead detail page: %+v", records[0])
	}
}

func TestBillNumber(t *testing.T) {
	tests := []struct {
		title string
		url   string
		want  string
	}{
		{"Fast-track Approvals Bill", "https://bills.parliament.nz/v/6/fast-track-BILL12345", "12345"},
		{"Appropriation Bill 204", "https://bills.parliament.nz/v/6/appropriation", "204"},
		{"Fast-track Approvals Bill", "https://bills.parliament.nz/v/6/fast-track", ""},
	}
	for _, tt := range tests {
		if got := billNumber(tt.title, tt.url); got != tt.want {
			t.Errorf("billNumber(%q, %q) = %q, want %q", tt.title, tt.url, got, tt.want)
		}
	}
}
