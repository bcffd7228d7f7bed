package schema

// RawStage is one stage row as extracted from a source page, date still
// in the source's native format.
type RawStage struct {
	Name string
	Date string
}

// RawRecord is the loosely-typed output of a fetch tier: whatever fields
// the tier could extract, in source-native form. Owned by the source
// adapter that produced it, consumed by the normalizer, never persisted.
type RawRecord struct {
	Source  SourceSystem
	Title   string
	URL     string
	Date    string // source-native format, unparsed
	Summary string
	Entity  string

	// Fields holds source-specific extras keyed by canonical metadata
	// name: bill_number, parliament_number, act_number, version,
	// commencement_date, notice_number, notice_type, notice_ref,
	// document_type, portfolio.
	Fields map[string]string

	// Stages carries a bill's progress rows; empty for other sources.
	Stages []RawStage
}

// Field returns the named extra field, or "" when absent.
func (r *RawRecord) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// SetField records a source-specific extra, allocating the map lazily.
func (r *RawRecord) SetField(name, value string) {
	if value == "" {
		return
	}
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}
	r.Fields[name] = value
}
