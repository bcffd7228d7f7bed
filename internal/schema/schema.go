// Package schema defines the canonical data model shared by every stage
// of the collection pipeline: the source enumeration, the loosely-typed
// RawRecord produced by source adapters, and the strictly-typed
// CanonicalAction that flows from the normalizer to the exporter.
//
// This package has no imports from other collector packages. Stages
// communicate exclusively through these types.
package schema

import (
	"fmt"
	"regexp"
	"sort"
)

// SourceSystem identifies which government source produced a record.
type SourceSystem string

const (
	// Parliament tracks bills before the House (bills.parliament.nz).
	Parliament SourceSystem = "PARLIAMENT"
	// Legislation tracks enacted acts (legislation.govt.nz).
	Legislation SourceSystem = "LEGISLATION"
	// Gazette tracks official notices (gazette.govt.nz).
	Gazette SourceSystem = "GAZETTE"
	// Beehive tracks ministerial releases and speeches (beehive.govt.nz).
	Beehive SourceSystem = "BEEHIVE"
)

// AllSources lists every source in reconciliation priority order,
// highest first. An enacted act outranks the bill it came from; notices
// and announcements rank below both.
var AllSources = []SourceSystem{Legislation, Parliament, Gazette, Beehive}

// sourceRank maps each source to its merge priority; lower is stronger.
var sourceRank = map[SourceSystem]int{
	Legislation: 0,
	Parliament:  1,
	Gazette:     2,
	Beehive:     3,
}

// Rank returns the merge priority of s, lower meaning higher priority.
// Unknown sources rank below all known ones.
func (s SourceSystem) Rank() int {
	if r, ok := sourceRank[s]; ok {
		return r
	}
	return len(sourceRank)
}

// Valid reports whether s is one of the four known sources.
func (s SourceSystem) Valid() bool {
	_, ok := sourceRank[s]
	return ok
}

// Stage is one step in a bill's progress through the House, or an
// enactment milestone such as commencement.
type Stage struct {
	Name string `json:"name" yaml:"name"`
	Date string `json:"date" yaml:"date"` // ISO-8601 calendar date, may be empty
}

// ActionMetadata carries source-specific fields. Only the fields that
// apply to the action's source are populated; the rest stay empty and
// are omitted from serialized output.
type ActionMetadata struct {
	BillNumber       string  `json:"bill_number,omitempty" yaml:"bill_number,omitempty"`
	ParliamentNumber string  `json:"parliament_number,omitempty" yaml:"parliament_number,omitempty"`
	ActNumber        string  `json:"act_number,omitempty" yaml:"act_number,omitempty"`
	CommencementDate string  `json:"commencement_date,omitempty" yaml:"commencement_date,omitempty"`
	NoticeNumber     string  `json:"notice_number,omitempty" yaml:"notice_number,omitempty"`
	NoticeType       string  `json:"notice_type,omitempty" yaml:"notice_type,omitempty"`
	DocumentType     string  `json:"document_type,omitempty" yaml:"document_type,omitempty"`
	Portfolio        string  `json:"portfolio,omitempty" yaml:"portfolio,omitempty"`
	StageHistory     []Stage `json:"stage_history,omitempty" yaml:"stage_history,omitempty"`
}

// Empty reports whether no metadata field is set.
func (m *ActionMetadata) Empty() bool {
	if m == nil {
		return true
	}
	return m.BillNumber == "" && m.ParliamentNumber == "" && m.ActNumber == "" &&
		m.CommencementDate == "" && m.NoticeNumber == "" && m.NoticeType == "" &&
		m.DocumentType == "" && m.Portfolio == "" && len(m.StageHistory) == 0
}

// CanonicalAction is the unit of output: one normalized government
// action. Created by the normalizer, merged by the deduplicator,
// labeled by the labeler, written by the exporter. Identity across
// runs depends entirely on ID derivation being deterministic.
type CanonicalAction struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Date          string          `json:"date"` // ISO-8601, "" when unparseable
	SourceSystem  SourceSystem    `json:"source_system"`
	URL           string          `json:"url"`
	PrimaryEntity string          `json:"primary_entity"`
	Summary       string          `json:"summary"`
	Labels        []string        `json:"labels"`
	Metadata      *ActionMetadata `json:"metadata,omitempty"`

	// DateMissing flags a record whose source date could not be parsed.
	// Such records are retained but sort after all dated records.
	DateMissing bool `json:"-"`
}

// idPattern constrains derived IDs: a short lowercase source prefix, a
// four-digit year, and a discriminator (natural key or content hash).
var idPattern = regexp.MustCompile(`^[a-z]{3,8}-\d{4}-[a-z0-9][a-z0-9-]*$`)

// ValidID reports whether id matches the canonical ID shape.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Validate checks the invariants every exported action must hold.
func (a *CanonicalAction) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("action: empty id (title %q)", a.Title)
	}
	if !ValidID(a.ID) {
		return fmt.Errorf("action %q: malformed id", a.ID)
	}
	if a.Title == "" {
		return fmt.Errorf("action %q: empty title", a.ID)
	}
	if !a.SourceSystem.Valid() {
		return fmt.Errorf("action %q: unknown source %q", a.ID, a.SourceSystem)
	}
	if err := validateStages(a.Metadata); err != nil {
		return fmt.Errorf("action %q: %w", a.ID, err)
	}
	if err := validateLabels(a.Labels); err != nil {
		return fmt.Errorf("action %q: %w", a.ID, err)
	}
	return nil
}

// validateStages requires stage history to be chronologically
// non-decreasing. Undated stages are allowed anywhere.
func validateStages(m *ActionMetadata) error {
	if m == nil {
		return nil
	}
	last := ""
	for _, st := range m.StageHistory {
		if st.Name == "" {
			return fmt.Errorf("stage with empty name")
		}
		if st.Date == "" {
			continue
		}
		if last != "" && st.Date < last {
			return fmt.Errorf("stage %q dated %s before %s", st.Name, st.Date, last)
		}
		last = st.Date
	}
	return nil
}

func validateLabels(labels []string) error {
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if seen[l] {
			return fmt.Errorf("duplicate label %q", l)
		}
		seen[l] = true
	}
	return nil
}

// SortStages orders stages chronologically, undated stages first in
// their original relative order.
func SortStages(stages []Stage) {
	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].Date < stages[j].Date
	})
}
