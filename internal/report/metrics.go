package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteMetrics writes the run's gauges to path in the Prometheus
// textfile-collector format. The registry is per-run; a batch job has
// nothing to scrape, so the textfile is the handoff point.
func WriteMetrics(path string, r RunReport) error {
	reg := prometheus.NewRegistry()

	success := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "keeptrack_run_success",
		Help: "1 if the run published its dataset, 0 otherwise.",
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "keeptrack_run_duration_seconds",
		Help: "Wall-clock duration of the run.",
	})
	total := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "keeptrack_actions_total",
		Help: "Canonical actions in the reconciled set.",
	})
	merges := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "keeptrack_merges_total",
		Help: "Duplicate pairs merged during reconciliation.",
	})
	bySource := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "keeptrack_actions_by_source",
		Help: "Surviving actions attributed to each source.",
	}, []string{"source"})
	tierUsed := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "keeptrack_source_tier_used",
		Help: "1 for the fetch tier each source ended up using.",
	}, []string{"source", "tier"})

	reg.MustRegister(success, duration, total, merges, bySource, tierUsed)

	if r.Published {
		success.Set(1)
	}
	duration.Set(r.DurationSeconds)
	total.Set(float64(r.TotalActions))
	merges.Set(float64(len(r.Merges)))
	for _, s := range r.Sources {
		bySource.WithLabelValues(s.Source).Set(float64(s.Survived))
		for _, tier := range s.Tiers {
			if tier.Used {
				tierUsed.WithLabelValues(s.Source, tier.Tier).Set(1)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("report: write metrics %q: %w", path, err)
	}
	return nil
}
