package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keeptracknz/collector/internal/config"
	"github.com/keeptracknz/collector/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	config    string
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "keeptrack",
	Short: "Collect and publish New Zealand government activity",
	Long: "Keeptrack collects bills, enacted acts, gazette notices and ministerial\n" +
		"announcements from the official sources, reconciles them into a single\n" +
		"deduplicated dataset, and publishes it for the site.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(rootFlags.logLevel)
		if err != nil {
			return err
		}
		logging.Init(level, rootFlags.logFormat)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.config, "config", "", "Path to the YAML config (defaults apply when omitted)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.Version = version
}

// loadConfig reads the configured YAML file, or the defaults when no
// --config was given.
func loadConfig() (config.Config, error) {
	return config.Load(rootFlags.config)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
