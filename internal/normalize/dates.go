package normalize

import (
	"strings"
	"time"
)

// dateLayouts covers every date shape the four sources have been seen
// to emit: ISO, NZ day-first numerics, long/short month names, and
// feed timestamps. Non-padded day layouts accept padded values too.
var dateLayouts = []string{
	"2006-01-02",
	"2/1/2006",
	"2-1-2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// ParseDate converts a source-native date string to an ISO-8601
// calendar date. The second return is false when no layout matches;
// callers keep the record and flag it rather than dropping it.
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
