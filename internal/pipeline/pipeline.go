// Package pipeline runs one collection cycle end to end: fan out the
// source adapters, normalize what they return, reconcile duplicates,
// label the survivors, and publish the dataset unless the safety guard
// says the result cannot be trusted.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/keeptracknz/collector/internal/config"
	"github.com/keeptracknz/collector/internal/dedupe"
	"github.com/keeptracknz/collector/internal/export"
	"github.com/keeptracknz/collector/internal/fetch"
	"github.com/keeptracknz/collector/internal/label"
	"github.com/keeptracknz/collector/internal/ledger"
	"github.com/keeptracknz/collector/internal/logging"
	"github.com/keeptracknz/collector/internal/normalize"
	"github.com/keeptracknz/collector/internal/report"
	"github.com/keeptracknz/collector/internal/schema"
	"github.com/keeptracknz/collector/internal/sources"
)

// ErrSafetyGuard is returned when the run aborts instead of publishing:
// the reconciled set was empty, or sharply smaller than the last
// published run. The run report and ledger row are still written so the
// abort is visible; the exported dataset is left untouched.
var ErrSafetyGuard = errors.New("safety guard tripped")

// Options adjusts a single run.
type Options struct {
	// DryRun stops after labeling: no export, no report, no ledger row.
	DryRun bool
	// Force publishes even when the collected set falls below the
	// guard fraction. An empty set is never published, forced or not.
	Force bool
}

// Result is what a finished run hands back to the CLI.
type Result struct {
	Report  report.RunReport
	Actions []schema.CanonicalAction
}

// sourceRun is one adapter's slot in the fan-out.
type sourceRun struct {
	source  sources.Source
	records []schema.RawRecord
	tiers   []fetch.TierOutcome
	err     error
}

// Run executes one collection cycle over the given adapters. Per-source
// fetch failures are isolated: a dead source contributes zero records
// and an error note in the report while the others proceed.
func Run(ctx context.Context, cfg config.Config, adapters []sources.Source, opts Options) (*Result, error) {
	log := logging.New("pipeline")
	started := time.Now().UTC()

	rep := report.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: started.Format(time.RFC3339),
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("pipeline: no sources selected")
	}
	log.Info("run started", "run_id", rep.RunID, "sources", len(adapters), "dry_run", opts.DryRun)

	// Fetch all sources concurrently. Errors land in the slots, never
	// in the group, so one exhausted source cannot cancel the rest.
	runs := make([]sourceRun, len(adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range adapters {
		runs[i].source = src
		g.Go(func() error {
			runs[i].records, runs[i].tiers, runs[i].err = src.Fetch(gctx)
			return nil
		})
	}
	_ = g.Wait() // failures live in the slots

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: cancelled: %w", err)
	}

	var actions []schema.CanonicalAction
	for i := range runs {
		r := &runs[i]
		sr := report.SourceReport{
			Source:  r.source.Name(),
			Fetched: len(r.records),
			Tiers:   r.tiers,
		}
		if r.err != nil {
			sr.Error = r.err.Error()
			log.Warn("source abandoned for this run", "source", r.source.Name(), "error", r.err)
		}
		for _, raw := range r.records {
			action, err := normalize.Normalize(raw)
			if err != nil {
				log.Warn("record dropped", "source", r.source.Name(), "url", raw.URL, "reason", err)
				continue
			}
			actions = append(actions, action)
			sr.Kept++
		}
		rep.Sources = append(rep.Sources, sr)
	}

	survivors, audits := dedupe.Reconcile(logging.New("dedupe"), actions, dedupe.Config{
		TitleThreshold:       cfg.Dedupe.TitleThreshold,
		DateWindowDays:       cfg.Dedupe.DateWindowDays,
		CrossSourceThreshold: cfg.Dedupe.CrossSourceThreshold,
	})
	rep.Merges = audits
	rep.TotalActions = len(survivors)

	labelCounts := make(map[string]int)
	for i := range survivors {
		survivors[i].Labels = label.Apply(survivors[i])
		for _, lb := range survivors[i].Labels {
			labelCounts[lb]++
		}
	}
	rep.LabelCounts = labelCounts

	bySystem := make(map[schema.SourceSystem]int)
	for _, a := range survivors {
		bySystem[a.SourceSystem]++
	}
	for i := range rep.Sources {
		rep.Sources[i].Survived = bySystem[runs[i].source.ID()]
	}

	result := &Result{Actions: survivors}

	if opts.DryRun {
		finish(&rep, started)
		result.Report = rep
		log.Info("dry run complete", "actions", rep.TotalActions, "merges", len(audits))
		return result, nil
	}

	led, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: open ledger: %w", err)
	}
	defer led.Close()

	abort, err := guardReason(led, cfg.Guard, rep.TotalActions, opts.Force)
	if err != nil {
		return nil, err
	}
	if abort != "" {
		rep.AbortReason = abort
		finish(&rep, started)
		result.Report = rep
		log.Error("run aborted before publish", "reason", abort)
		writeArtifacts(log, cfg, rep)
		recordRun(log, led, rep)
		return result, fmt.Errorf("pipeline: %w: %s", ErrSafetyGuard, abort)
	}

	meta := export.Meta{GeneratedAt: time.Now().UTC(), Labels: label.Predefined}
	if err := export.Write(cfg.Export.OutputDir, survivors, meta); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	rep.Published = true
	finish(&rep, started)
	result.Report = rep
	writeArtifacts(log, cfg, rep)
	recordRun(log, led, rep)

	log.Info("run published",
		"run_id", rep.RunID,
		"actions", rep.TotalActions,
		"merges", len(audits),
		"duration_s", rep.DurationSeconds,
	)
	return result, nil
}

// guardReason returns a non-empty abort reason when the run must not
// publish. The zero check holds even under Force.
func guardReason(led *ledger.Ledger, cfg config.GuardConfig, total int, force bool) (string, error) {
	if total == 0 {
		return "no actions survived the run", nil
	}
	if force || cfg.MinFraction <= 0 {
		return "", nil
	}
	last, ok, err := led.LastPublishedCount()
	if err != nil {
		return "", fmt.Errorf("pipeline: read last published count: %w", err)
	}
	if !ok {
		return "", nil
	}
	floor := cfg.MinFraction * float64(last)
	if float64(total) < floor {
		return fmt.Sprintf("%d actions is below %.0f%% of the last published %d",
			total, cfg.MinFraction*100, last), nil
	}
	return "", nil
}

// writeArtifacts writes the run report and, when configured, the
// metrics textfile. Both are advisory: failures are logged, not fatal.
func writeArtifacts(log *slog.Logger, cfg config.Config, rep report.RunReport) {
	if err := report.WriteJSON(cfg.Export.OutputDir, rep); err != nil {
		log.Warn("run report write failed", "error", err)
	}
	if cfg.Metrics.TextfilePath == "" {
		return
	}
	if err := report.WriteMetrics(cfg.Metrics.TextfilePath, rep); err != nil {
		log.Warn("metrics write failed", "error", err)
	}
}

// recordRun appends the run to the ledger.
func recordRun(log *slog.Logger, led *ledger.Ledger, rep report.RunReport) {
	counts := make(map[string]ledger.SourceCount, len(rep.Sources))
	for _, s := range rep.Sources {
		counts[s.Source] = ledger.SourceCount{Fetched: s.Fetched, Kept: s.Kept}
	}
	_, err := led.RecordRun(ledger.Run{
		RunID:        rep.RunID,
		StartedAt:    rep.StartedAt,
		FinishedAt:   rep.FinishedAt,
		SourceCounts: counts,
		Total:        rep.TotalActions,
		Merged:       len(rep.Merges),
		Published:    rep.Published,
		AbortReason:  rep.AbortReason,
	})
	if err != nil {
		log.Warn("ledger record failed", "error", err)
	}
}

func finish(rep *report.RunReport, started time.Time) {
	now := time.Now().UTC()
	rep.FinishedAt = now.Format(time.RFC3339)
	rep.DurationSeconds = now.Sub(started).Seconds()
}
