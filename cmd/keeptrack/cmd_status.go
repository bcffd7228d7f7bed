package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keeptracknz/collector/internal/format"
	"github.com/keeptracknz/collector/internal/ledger"
)

var statusFlags struct {
	limit  int
	asJSON bool
	format string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent collection runs",
	RunE:  runStatus,
}

func init() {
	f := statusCmd.Flags()
	f.IntVar(&statusFlags.limit, "limit", 10, "How many runs to show")
	f.BoolVar(&statusFlags.asJSON, "json", false, "Emit JSON instead of a table")
	f.StringVar(&statusFlags.format, "format", "table", "Table style: table or markdown")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	style, err := format.ParseStyle(statusFlags.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	led, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer led.Close()

	runs, err := led.RecentRuns(statusFlags.limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statusFlags.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	tb := format.NewTable(style)
	tb.Header("RUN", "STARTED", "TOOK", "TOTAL", "MERGED", "PUBLISHED", "NOTE")
	for _, r := range runs {
		id := r.RunID
		if len(id) > 8 {
			id = id[:8]
		}
		tb.Row(id, format.FmtWhen(r.StartedAt), format.FmtElapsed(r.StartedAt, r.FinishedAt),
			r.Total, r.Merged, format.BoolMark(r.Published), r.AbortReason)
	}
	tb.RightAlign(4, 5)
	tb.Limit(7, 48)
	fmt.Fprintln(out, tb.String())
	return nil
}
