// Package report writes the machine-readable summary of one collection
// run: a JSON report for operational tooling and a Prometheus textfile
// for the node-exporter textfile collector.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keeptracknz/collector/internal/dedupe"
	"github.com/keeptracknz/collector/internal/export"
	"github.com/keeptracknz/collector/internal/fetch"
)

// FileName is the JSON report's name under the output directory.
const FileName = "run-report.json"

// SourceReport summarizes one source's run: which tiers ran, how many
// records each stage kept, and the failure reason if the source was
// abandoned.
type SourceReport struct {
	Source   string              `json:"source"`
	Fetched  int                 `json:"fetched"`
	Kept     int                 `json:"kept"`
	Survived int                 `json:"survived"`
	Tiers    []fetch.TierOutcome `json:"tiers,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// RunReport is the full per-run summary.
type RunReport struct {
	RunID           string              `json:"run_id"`
	StartedAt       string              `json:"started_at"`
	FinishedAt      string              `json:"finished_at"`
	DurationSeconds float64             `json:"duration_seconds"`
	Sources         []SourceReport      `json:"sources"`
	TotalActions    int                 `json:"total_actions"`
	Merges          []dedupe.MergeAudit `json:"merges,omitempty"`
	LabelCounts     map[string]int      `json:"label_counts,omitempty"`
	Published       bool                `json:"published"`
	AbortReason     string              `json:"abort_reason,omitempty"`
}

// WriteJSON writes the report into dir as run-report.json.
func WriteJSON(dir string, r RunReport) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal: %w", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: create dir %q: %w", dir, err)
	}
	if err := export.WriteFileAtomic(filepath.Join(dir, FileName), data); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}
