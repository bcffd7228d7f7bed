package format

import (
	"fmt"
	"time"
)

// FmtWhen shortens an RFC3339 timestamp for table display. Unparseable
// input is returned as-is.
func FmtWhen(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return iso
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// FmtElapsed formats the span between two RFC3339 timestamps as
// "Xm Ys" or "Ys". Unparseable bounds yield "-".
func FmtElapsed(started, finished string) string {
	s, err := time.Parse(time.RFC3339, started)
	if err != nil {
		return "-"
	}
	f, err := time.Parse(time.RFC3339, finished)
	if err != nil {
		return "-"
	}
	return FmtDuration(f.Sub(s))
}

// FmtDuration formats a duration as "Xm Ys" or "Ys".
func FmtDuration(d time.Duration) string {
	sec := int(d.Seconds())
	if sec >= 60 {
		return fmt.Sprintf("%dm %ds", sec/60, sec%60)
	}
	return fmt.Sprintf("%ds", sec)
}

// BoolMark returns "✓" for true and "✗" for false.
func BoolMark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}
