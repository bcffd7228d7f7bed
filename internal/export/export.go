// Package export serializes the reconciled canonical set into the two
// published artifacts: data.json for programmatic reuse and actions.ts
// for direct embedding in the front end's source tree. Both are
// rendered from the same marshalled buffers, so they cannot diverge,
// and the output is byte-identical for identical input and clock.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/keeptracknz/collector/internal/schema"
)

// DataFile and TSFile are the artifact names written under the output
// directory.
const (
	DataFile = "data.json"
	TSFile   = "actions.ts"
)

// Meta carries the run-level values stamped into the artifacts. The
// clock is injected by the caller so tests can fix it.
type Meta struct {
	GeneratedAt time.Time
	// Labels is the vocabulary published for the front end's filter
	// list, independent of which labels the current set happens to use.
	Labels []string
}

type document struct {
	Labels   json.RawMessage `json:"labels"`
	Actions  json.RawMessage `json:"actions"`
	Metadata artifactMeta    `json:"_metadata"`
}

type artifactMeta struct {
	GeneratedAt  string         `json:"generated_at"`
	TotalCount   int            `json:"total_count"`
	SourceCounts map[string]int `json:"source_counts"`
	LabelCounts  map[string]int `json:"label_counts"`
	DateRange    dateRange      `json:"date_range"`
	GeneratedBy  string         `json:"generated_by"`
	Version      string         `json:"version"`
}

type dateRange struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}

// Write renders both artifacts and writes them atomically into dir.
// The directory is created if absent.
func Write(dir string, actions []schema.CanonicalAction, meta Meta) error {
	dataJSON, actionsTS, err := Render(actions, meta)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: create dir %q: %w", dir, err)
	}
	if err := WriteFileAtomic(filepath.Join(dir, DataFile), dataJSON); err != nil {
		return err
	}
	return WriteFileAtomic(filepath.Join(dir, TSFile), actionsTS)
}

// Render produces the bytes of data.json and actions.ts without
// touching the filesystem.
func Render(actions []schema.CanonicalAction, meta Meta) (dataJSON, actionsTS []byte, err error) {
	sorted := prepare(actions)

	labels := append([]string(nil), meta.Labels...)
	sort.Strings(labels)
	if labels == nil {
		labels = []string{}
	}

	labelsBuf, err := marshalCompact(labels)
	if err != nil {
		return nil, nil, fmt.Errorf("export: marshal labels: %w", err)
	}
	actionsBuf, err := marshalCompact(sorted)
	if err != nil {
		return nil, nil, fmt.Errorf("export: marshal actions: %w", err)
	}

	doc := document{
		Labels:   json.RawMessage(labelsBuf),
		Actions:  json.RawMessage(actionsBuf),
		Metadata: buildMeta(sorted, meta),
	}
	dataJSON, err = marshalIndented(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("export: marshal document: %w", err)
	}

	actionsTS, err = renderTypeScript(labelsBuf, actionsBuf, doc.Metadata)
	if err != nil {
		return nil, nil, err
	}
	return dataJSON, actionsTS, nil
}

// prepare copies, normalizes, and sorts the set: labels never null,
// metadata always an object, order is date descending with undated
// records last, ties broken by ascending ID.
func prepare(actions []schema.CanonicalAction) []schema.CanonicalAction {
	out := make([]schema.CanonicalAction, 0, len(actions))
	out = append(out, actions...)
	for i := range out {
		if out[i].Labels == nil {
			out[i].Labels = []string{}
		}
		if out[i].Metadata == nil {
			out[i].Metadata = &schema.ActionMetadata{}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Date, out[j].Date
		if di != dj {
			if di == "" {
				return false
			}
			if dj == "" {
				return true
			}
			return di > dj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func buildMeta(sorted []schema.CanonicalAction, meta Meta) artifactMeta {
	sourceCounts := make(map[string]int)
	labelCounts := make(map[string]int)
	var earliest, latest string
	for _, a := range sorted {
		sourceCounts[string(a.SourceSystem)]++
		for _, l := range a.Labels {
			labelCounts[l]++
		}
		if a.Date == "" {
			continue
		}
		if earliest == "" || a.Date < earliest {
			earliest = a.Date
		}
		if a.Date > latest {
			latest = a.Date
		}
	}
	return artifactMeta{
		GeneratedAt:  meta.GeneratedAt.UTC().Format(time.RFC3339),
		TotalCount:   len(sorted),
		SourceCounts: sourceCounts,
		LabelCounts:  labelCounts,
		DateRange:    dateRange{Earliest: earliest, Latest: latest},
		GeneratedBy:  "keeptrack-collector",
		Version:      "1.0",
	}
}

// marshalCompact encodes without HTML escaping so URLs keep literal
// ampersands.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// marshalIndented encodes with two-space indent and a trailing newline.
func marshalIndented(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func indentRaw(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFileAtomic writes data to path via a temp file and rename, so
// readers never observe a torn file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("export: temp for %q: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("export: write %q: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("export: chmod %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("export: close %q: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("export: rename %q: %w", path, err)
	}
	return nil
}
