// Package config loads the collector's YAML configuration. Every field
// has a working default so the file is optional; a supplied file only
// overrides what it mentions.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// HTTPConfig tunes the shared fetch client.
type HTTPConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	UserAgent      string        `yaml:"user_agent"`
	AcceptLanguage string        `yaml:"accept_language"`
	// HostDelay is the minimum gap between consecutive requests to the
	// same host. Polite-crawler floor, applied per host per run.
	HostDelay  time.Duration `yaml:"host_delay"`
	MaxRetries int           `yaml:"max_retries"`
}

// BrowserConfig tunes the rendered-browser fetch tier.
type BrowserConfig struct {
	Enabled    bool          `yaml:"enabled"`
	NavTimeout time.Duration `yaml:"nav_timeout"`
}

// SourceConfig is the per-source block. APIKey applies only to sources
// backed by an aggregation API (gazette via DigitalNZ); others ignore it.
type SourceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	MaxPages int    `yaml:"max_pages"`
	// MinRecords is the structural-check floor: a tier yielding fewer
	// records is treated as failed and the next tier runs.
	MinRecords int    `yaml:"min_records"`
	APIKey     string `yaml:"api_key,omitempty"`
}

// SourcesConfig groups the four source blocks.
type SourcesConfig struct {
	Bills       SourceConfig `yaml:"bills"`
	Legislation SourceConfig `yaml:"legislation"`
	Gazette     SourceConfig `yaml:"gazette"`
	Beehive     SourceConfig `yaml:"beehive"`
}

// DedupeConfig carries the reconciliation policy knobs. Thresholds are
// policy, not structure: tune them here, not in code.
type DedupeConfig struct {
	TitleThreshold       float64 `yaml:"title_threshold"`
	DateWindowDays       int     `yaml:"date_window_days"`
	CrossSourceThreshold float64 `yaml:"cross_source_threshold"`
}

// GuardConfig controls the publish safety guard.
type GuardConfig struct {
	// MinFraction of the previous published run's record count below
	// which the run aborts instead of publishing.
	MinFraction float64 `yaml:"min_fraction"`
}

// ExportConfig names the artifact destinations.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// LedgerConfig locates the run-history database.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig locates the Prometheus textfile; empty disables metrics.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// Config is the root configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Browser BrowserConfig `yaml:"browser"`
	Sources SourcesConfig `yaml:"sources"`
	Dedupe  DedupeConfig  `yaml:"dedupe"`
	Guard   GuardConfig   `yaml:"guard"`
	Export  ExportConfig  `yaml:"export"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// Default returns a fully populated configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:        30 * time.Second,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 KeepTrackNZ/1.0",
			AcceptLanguage: "en-NZ,en;q=0.9",
			HostDelay:      2 * time.Second,
			MaxRetries:     3,
		},
		Browser: BrowserConfig{
			Enabled:    true,
			NavTimeout: 45 * time.Second,
		},
		Sources: SourcesConfig{
			Bills:       SourceConfig{Enabled: true, MaxPages: 3, MinRecords: 3},
			Legislation: SourceConfig{Enabled: true, MaxPages: 2, MinRecords: 1},
			Gazette:     SourceConfig{Enabled: true, MaxPages: 3, MinRecords: 3},
			Beehive:     SourceConfig{Enabled: true, MaxPages: 3, MinRecords: 3},
		},
		Dedupe: DedupeConfig{
			TitleThreshold:       0.85,
			DateWindowDays:       3,
			CrossSourceThreshold: 0.90,
		},
		Guard:   GuardConfig{MinFraction: 0.5},
		Export:  ExportConfig{OutputDir: "frontend/src/data"},
		Ledger:  LedgerConfig{Path: ".keeptrack/runs.db"},
		Metrics: MetricsConfig{TextfilePath: ""},
	}
}

// Load reads path and overlays it on Default. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	if c.HTTP.MaxRetries < 1 {
		return fmt.Errorf("http.max_retries must be at least 1")
	}
	if c.HTTP.HostDelay < 0 {
		return fmt.Errorf("http.host_delay must not be negative")
	}
	if t := c.Dedupe.TitleThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("dedupe.title_threshold %v outside (0, 1]", t)
	}
	if t := c.Dedupe.CrossSourceThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("dedupe.cross_source_threshold %v outside (0, 1]", t)
	}
	if c.Dedupe.DateWindowDays < 0 {
		return fmt.Errorf("dedupe.date_window_days must not be negative")
	}
	if f := c.Guard.MinFraction; f < 0 || f >= 1 {
		return fmt.Errorf("guard.min_fraction %v outside [0, 1)", f)
	}
	if c.Export.OutputDir == "" {
		return fmt.Errorf("export.output_dir must be set")
	}
	return nil
}

// SourceFor returns the block for the named source, or nil when the
// name is unknown.
func (c *Config) SourceFor(name string) *SourceConfig {
	switch name {
	case "bills":
		return &c.Sources.Bills
	case "legislation":
		return &c.Sources.Legislation
	case "gazette":
		return &c.Sources.Gazette
	case "beehive":
		return &c.Sources.Beehive
	}
	return nil
}
