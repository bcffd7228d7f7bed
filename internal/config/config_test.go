package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	if !cfg.Sources.Bills.Enabled || !cfg.Sources.Beehive.Enabled {
		t.Error("all sources should be enabled by default")
	}
	if cfg.Dedupe.TitleThreshold != 0.85 {
		t.Errorf("TitleThreshold = %v, want 0.85", cfg.Dedupe.TitleThreshold)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.HTTP.Timeout)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collector.yaml")
	doc := `
http:
  host_delay: 250ms
  max_retries: 5
sources:
  beehive:
    enabled: false
dedupe:
  title_threshold: 0.9
guard:
  min_fraction: 0.25
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.HostDelay != 250*time.Millisecond {
		t.Errorf("HostDelay = %v, want 250ms", cfg.HTTP.HostDelay)
	}
	if cfg.HTTP.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.HTTP.MaxRetries)
	}
	if cfg.Sources.Beehive.Enabled {
		t.Error("beehive should be disabled by the file")
	}
	if !cfg.Sources.Bills.Enabled {
		t.Error("bills should keep its default enabled=true")
	}
	if cfg.Dedupe.TitleThreshold != 0.9 {
		t.Errorf("TitleThreshold = %v, want 0.9", cfg.Dedupe.TitleThreshold)
	}
	if cfg.Guard.MinFraction != 0.25 {
		t.Errorf("MinFraction = %v, want 0.25", cfg.Guard.MinFraction)
	}
	// Untouched sections keep defaults.
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want default 30s", cfg.HTTP.Timeout)
	}
}

func TestLoad_RejectsBadThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collector.yaml")
	doc := "dedupe:\n  title_threshold: 1.5\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load accepted title_threshold 1.5")
	}
	if !strings.Contains(err.Error(), "title_threshold") {
		t.Errorf("error %q should name title_threshold", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load should fail on a missing explicit path")
	}
}

func TestSourceFor(t *testing.T) {
	cfg := Default()
	for _, name := range []string{"bills", "legislation", "gazette", "beehive"} {
		if cfg.SourceFor(name) == nil {
			t.Errorf("SourceFor(%q) = nil", name)
		}
	}
	if cfg.SourceFor("senate") != nil {
		t.Error("SourceFor(senate) should be nil")
	}
}
