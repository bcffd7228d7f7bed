package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keeptracknz/collector/internal/fetch"
	"github.com/keeptracknz/collector/internal/format"
	"github.com/keeptracknz/collector/internal/pipeline"
	"github.com/keeptracknz/collector/internal/sources"
)

var collectFlags struct {
	output  string
	dryRun  bool
	force   bool
	sources []string
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run a full collection cycle and publish the dataset",
	RunE:  runCollect,
}

func init() {
	f := collectCmd.Flags()
	f.StringVar(&collectFlags.output, "output", "", "Override the configured output directory")
	f.BoolVar(&collectFlags.dryRun, "dry-run", false, "Collect and reconcile but write nothing")
	f.BoolVar(&collectFlags.force, "force", false, "Publish even when the safety guard would abort")
	f.StringSliceVar(&collectFlags.sources, "source", nil, "Restrict the run to the named sources (repeatable)")
}

func runCollect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if collectFlags.output != "" {
		cfg.Export.OutputDir = collectFlags.output
	}
	for _, name := range collectFlags.sources {
		if !knownSource(name) {
			return fmt.Errorf("unknown source %q (known: %s)", name, strings.Join(sources.Names(), ", "))
		}
	}

	client := fetch.NewClient(fetch.Config{
		Timeout:        cfg.HTTP.Timeout,
		UserAgent:      cfg.HTTP.UserAgent,
		AcceptLanguage: cfg.HTTP.AcceptLanguage,
		HostDelay:      cfg.HTTP.HostDelay,
		MaxRetries:     cfg.HTTP.MaxRetries,
	})
	deps := sources.Deps{Client: client}
	if cfg.Browser.Enabled {
		deps.Renderer = fetch.NewRenderer(cfg.HTTP.UserAgent, cfg.Browser.NavTimeout)
	}

	adapters := sources.FromConfig(cfg, deps, collectFlags.sources...)
	res, err := pipeline.Run(cmd.Context(), cfg, adapters, pipeline.Options{
		DryRun: collectFlags.dryRun,
		Force:  collectFlags.force,
	})
	if res != nil {
		printRunSummary(cmd, res)
	}
	if errors.Is(err, pipeline.ErrSafetyGuard) {
		return fmt.Errorf("aborted: %s", res.Report.AbortReason)
	}
	return err
}

func knownSource(name string) bool {
	for _, n := range sources.Names() {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return true
		}
	}
	return false
}

func printRunSummary(cmd *cobra.Command, res *pipeline.Result) {
	out := cmd.OutOrStdout()
	rep := res.Report

	tb := format.NewTable(format.Terminal)
	tb.Header("SOURCE", "TIER", "FETCHED", "KEPT", "SURVIVED")
	for _, s := range rep.Sources {
		tier := "-"
		for _, o := range s.Tiers {
			if o.Used {
				tier = o.Tier
			}
		}
		if s.Error != "" {
			tier = "failed"
		}
		tb.Row(s.Source, tier, s.Fetched, s.Kept, s.Survived)
	}
	tb.Footer("TOTAL", "", "", "", rep.TotalActions)
	tb.RightAlign(3, 4, 5)
	fmt.Fprintln(out, tb.String())

	switch {
	case rep.Published:
		fmt.Fprintf(out, "Published %d actions (%d merges) in %s.\n",
			rep.TotalActions, len(rep.Merges), format.FmtElapsed(rep.StartedAt, rep.FinishedAt))
	case collectFlags.dryRun:
		fmt.Fprintf(out, "Dry run: %d actions (%d merges) would publish.\n",
			rep.TotalActions, len(rep.Merges))
	}
}
