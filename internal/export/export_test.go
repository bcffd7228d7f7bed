package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/keeptracknz/collector/internal/schema"
)

var testClock = time.Date(2026, 1, 15, 4, 30, 0, 0, time.UTC)

func testMeta() Meta {
	return Meta{
		GeneratedAt: testClock,
		Labels:      []string{"Housing", "Economy", "Justice"},
	}
}

func action(id, date string, src schema.SourceSystem) schema.CanonicalAction {
	return schema.CanonicalAction{
		ID:           id,
		Title:        "Title for " + id,
		Date:         date,
		SourceSystem: src,
		URL:          "https://example.govt.nz/" + id,
		Labels:       []string{"Economy"},
	}
}

type exportedDoc struct {
	Labels   []string                 `json:"labels"`
	Actions  []schema.CanonicalAction `json:"actions"`
	Metadata struct {
		GeneratedAt  string         `json:"generated_at"`
		TotalCount   int            `json:"total_count"`
		SourceCounts map[string]int `json:"source_counts"`
		LabelCounts  map[string]int `json:"label_counts"`
		DateRange    struct {
			Earliest string `json:"earliest"`
			Latest   string `json:"latest"`
		} `json:"date_range"`
	} `json:"_metadata"`
}

func TestRender_Deterministic(t *testing.T) {
	a := action("leg-2024-52-v1", "2024-11-14", schema.Legislation)
	b := action("parl-2024-131541", "2024-03-21", schema.Parliament)
	c := action("bee-0000-h3f2a1c9d", "", schema.Beehive)

	first, firstTS, err := Render([]schema.CanonicalAction{a, b, c}, testMeta())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	second, secondTS, err := Render([]schema.CanonicalAction{c, b, a}, testMeta())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("data.json differs across input orderings")
	}
	if !bytes.Equal(firstTS, secondTS) {
		t.Error("actions.ts differs across input orderings")
	}
}

func TestRender_SortOrder(t *testing.T) {
	in := []schema.CanonicalAction{
		action("bee-0000-hundated", "", schema.Beehive),
		action("parl-2024-100", "2024-03-21", schema.Parliament),
		action("leg-2024-52-v1", "2024-11-14", schema.Legislation),
		action("gaz-2024-go99", "2024-11-14", schema.Gazette),
	}
	data, _, err := Render(in, testMeta())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	var doc exportedDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	var ids []string
	for _, a := range doc.Actions {
		ids = append(ids, a.ID)
	}
	want := []string{"gaz-2024-go99", "leg-2024-52-v1", "parl-2024-100", "bee-0000-hundated"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_NormalizesEmptyFields(t *testing.T) {
	a := schema.CanonicalAction{
		ID:           "bee-2024-minimal",
		Title:        "Minimal",
		SourceSystem: schema.Beehive,
	}
	data, _, err := Render([]schema.CanonicalAction{a}, testMeta())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Contains(data, []byte(`"labels": []`)) {
		t.Error("nil labels not exported as empty array")
	}
	if !bytes.Contains(data, []byte(`"metadata": {}`)) {
		t.Error("nil metadata not exported as empty object")
	}
	if bytes.Contains(data, []byte("null")) {
		t.Error("export contains null")
	}
}

func TestRender_KeepsLiteralAmpersand(t *testing.T) {
	a := action("parl-2024-7", "2024-05-01", schema.Parliament)
	a.URL = "https://bills.parliament.nz/v/6/x?Tab=Current&b=1"
	data, ts, err := Render([]schema.CanonicalAction{a}, testMeta())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for name, out := range map[string][]byte{"data.json": data, "actions.ts": ts} {
		if bytes.Contains(out, []byte(`&`)) {
			t.Errorf("%s escapes ampersands", name)
		}
		if !bytes.Contains(out, []byte("Tab=Current&b=1")) {
			t.Errorf("%s lost the query string", name)
		}
	}
}

func TestRender_Metadata(t *testing.T) {
	in := []schema.CanonicalAction{
		action("leg-2024-52-v1", "2024-11-14", schema.Legislation),
		action("parl-2024-100", "2024-03-21", schema.Parliament),
		action("parl-2024-101", "2024-06-02", schema.Parliament),
	}
	data, _, err := Render(in, testMeta())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	var doc exportedDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if doc.Metadata.GeneratedAt != "2026-01-15T04:30:00Z" {
		t.Errorf("generated_at = %q", doc.Metadata.GeneratedAt)
	}
	if doc.Metadata.TotalCount != 3 {
		t.Errorf("total_count = %d, want 3", doc.Metadata.TotalCount)
	}
	wantSources := map[string]int{"LEGISLATION": 1, "PARLIAMENT": 2}
	if diff := cmp.Diff(wantSources, doc.Metadata.SourceCounts); diff != "" {
		t.Errorf("source_counts mismatch (-want +got):\n%s", diff)
	}
	if doc.Metadata.LabelCounts["Economy"] != 3 {
		t.Errorf("label_counts[Economy] = %d, want 3", doc.Metadata.LabelCounts["Economy"])
	}
	if doc.Metadata.DateRange.Earliest != "2024-03-21" || doc.Metadata.DateRange.Latest != "2024-11-14" {
		t.Errorf("date_range = %+v", doc.Metadata.DateRange)
	}
	if diff := cmp.Diff([]string{"Economy", "Housing", "Justice"}, doc.Labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_DoesNotMutateInput(t *testing.T) {
	in := []schema.CanonicalAction{
		action("parl-2024-100", "2024-03-21", schema.Parliament),
		{ID: "bee-2024-minimal", Title: "Minimal", SourceSystem: schema.Beehive},
	}
	if _, _, err := Render(in, testMeta()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if in[0].ID != "parl-2024-100" || in[1].Labels != nil || in[1].Metadata != nil {
		t.Error("Render mutated its input")
	}
}

func TestWrite_Artifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	in := []schema.CanonicalAction{action("parl-2024-100", "2024-03-21", schema.Parliament)}
	if err := Write(dir, in, testMeta()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, DataFile))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var doc exportedDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("data.json invalid: %v", err)
	}
	if !bytes.HasSuffix(data, []byte("\n")) {
		t.Error("data.json missing trailing newline")
	}

	ts, err := os.ReadFile(filepath.Join(dir, TSFile))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, want := range []string{
		"DO NOT EDIT MANUALLY",
		"export type SourceSystem",
		"export interface CanonicalAction",
		"export const labels: string[]",
		"export const actions: CanonicalAction[]",
	} {
		if !strings.Contains(string(ts), want) {
			t.Errorf("actions.ts missing %q", want)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("output dir has %d entries, want 2", len(entries))
	}
}

func TestWrite_Overwrites(t *testing.T) {
	dir := t.TempDir()
	first := []schema.CanonicalAction{action("parl-2024-100", "2024-03-21", schema.Parliament)}
	second := []schema.CanonicalAction{action("parl-2024-200", "2024-06-01", schema.Parliament)}

	if err := Write(dir, first, testMeta()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Write(dir, second, testMeta()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, DataFile))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Contains(data, []byte("parl-2024-200")) || bytes.Contains(data, []byte("parl-2024-100")) {
		t.Error("second write did not replace first")
	}
}
