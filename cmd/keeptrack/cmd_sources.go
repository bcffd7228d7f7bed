package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keeptracknz/collector/internal/format"
	"github.com/keeptracknz/collector/internal/sources"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured sources and their fetch tiers",
	RunE:  runSources,
}

func runSources(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tb := format.NewTable(format.Terminal)
	tb.Header("SOURCE", "SYSTEM", "ENDPOINT", "TIERS", "ENABLED")
	for _, info := range sources.Catalog(cfg) {
		tb.Row(info.Name, string(info.System), info.Endpoint,
			strings.Join(info.Tiers, ", "), format.BoolMark(info.Enabled))
	}
	fmt.Fprintln(cmd.OutOrStdout(), tb.String())
	return nil
}
