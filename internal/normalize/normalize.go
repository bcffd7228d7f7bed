// Package normalize converts source-shaped RawRecords into canonical
// actions: date and URL normalization, markup stripping, deterministic
// ID derivation, and the drop rules for records too malformed to keep.
// Everything here is pure; the caller owns logging and aggregation.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/keeptracknz/collector/internal/schema"
)

// ErrDropRecord marks a RawRecord that cannot yield a minimal canonical
// action. The caller logs the reason and moves on; a dropped record
// never aborts its source.
var ErrDropRecord = errors.New("record dropped")

// summaryLimit bounds summary length after markup stripping.
const summaryLimit = 500

// idPrefix maps each source to its ID prefix.
var idPrefix = map[schema.SourceSystem]string{
	schema.Parliament:  "parl",
	schema.Legislation: "leg",
	schema.Gazette:     "gaz",
	schema.Beehive:     "bee",
}

var (
	actNumberPattern = regexp.MustCompile(`^(\d{4})\s+No\s+(\d+)$`)
	noticeRefPattern = regexp.MustCompile(`^(\d{4})-([a-z]{2})(\d+)$`)
)

// Normalize converts one RawRecord into a CanonicalAction. Records
// without a usable title or source return ErrDropRecord.
func Normalize(raw schema.RawRecord) (schema.CanonicalAction, error) {
	var action schema.CanonicalAction

	if !raw.Source.Valid() {
		return action, fmt.Errorf("%w: unknown source %q", ErrDropRecord, raw.Source)
	}
	title := CleanText(raw.Title)
	if title == "" {
		return action, fmt.Errorf("%w: empty title (url %q)", ErrDropRecord, raw.URL)
	}

	action.SourceSystem = raw.Source
	action.Title = title
	action.Summary = Truncate(CleanText(raw.Summary), summaryLimit)
	action.PrimaryEntity = Clean(raw.Entity)

	if iso, ok := ParseDate(raw.Date); ok {
		action.Date = iso
	} else {
		action.DateMissing = true
	}

	if raw.URL != "" {
		if canon, err := CanonicalURL(raw.URL); err == nil {
			action.URL = canon
		}
	}

	action.Metadata = buildMetadata(raw)
	if action.Metadata.Empty() {
		action.Metadata = nil
	}

	action.ID = DeriveID(raw, action.Date)
	if err := action.Validate(); err != nil {
		return schema.CanonicalAction{}, fmt.Errorf("%w: %v", ErrDropRecord, err)
	}
	return action, nil
}

// buildMetadata maps the raw extras onto typed metadata. Only fields
// the source supplied are set.
func buildMetadata(raw schema.RawRecord) *schema.ActionMetadata {
	m := &schema.ActionMetadata{
		BillNumber:       raw.Field("bill_number"),
		ParliamentNumber: raw.Field("parliament_number"),
		ActNumber:        raw.Field("act_number"),
		NoticeNumber:     raw.Field("notice_number"),
		NoticeType:       raw.Field("notice_type"),
		DocumentType:     raw.Field("document_type"),
		Portfolio:        raw.Field("portfolio"),
	}
	if commence := raw.Field("commencement_date"); commence != "" {
		if iso, ok := ParseDate(commence); ok {
			m.CommencementDate = iso
		}
	}
	for _, st := range raw.Stages {
		name := Clean(st.Name)
		if name == "" {
			continue
		}
		date, _ := ParseDate(st.Date)
		m.StageHistory = append(m.StageHistory, schema.Stage{Name: name, Date: date})
	}
	schema.SortStages(m.StageHistory)
	return m
}

// DeriveID computes the stable record ID. Natural keys win: act
// year+serial for legislation, bill number for parliament, the notice
// reference for gazette, the URL slug for beehive. Records without a
// natural key hash title+date+source instead, so identity stays stable
// across runs as long as those three do.
func DeriveID(raw schema.RawRecord, dateISO string) string {
	prefix := idPrefix[raw.Source]
	year := yearOf(dateISO)

	switch raw.Source {
	case schema.Legislation:
		if m := actNumberPattern.FindStringSubmatch(raw.Field("act_number")); m != nil {
			version := raw.Field("version")
			if version == "" {
				version = "1"
			}
			return fmt.Sprintf("%s-%s-%s-v%s", prefix, m[1], m[2], version)
		}
	case schema.Parliament:
		if bill := raw.Field("bill_number"); bill != "" && year != "" {
			return fmt.Sprintf("%s-%s-%s", prefix, year, bill)
		}
	case schema.Gazette:
		if m := noticeRefPattern.FindStringSubmatch(raw.Field("notice_ref")); m != nil {
			return fmt.Sprintf("%s-%s-%s%s", prefix, m[1], m[2], m[3])
		}
	case schema.Beehive:
		if slug := URLSlug(raw.URL); slug != "" && year != "" {
			return fmt.Sprintf("%s-%s-%s", prefix, year, slug)
		}
	}

	if year == "" {
		year = "0000"
	}
	return fmt.Sprintf("%s-%s-h%s", prefix, year, contentHash(raw))
}

func yearOf(dateISO string) string {
	if len(dateISO) >= 4 {
		return dateISO[:4]
	}
	return ""
}

// contentHash fingerprints a record that has no natural key.
func contentHash(raw schema.RawRecord) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s", strings.ToLower(Clean(raw.Title)), raw.Date, raw.Source)
	return hex.EncodeToString(h.Sum(nil))[:8]
}
