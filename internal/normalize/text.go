package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	spacePattern  = regexp.MustCompile(`\s+`)
	scriptPattern = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</\s*(script|style)\s*>`)
)

// StripHTML removes markup from s: script/style blocks with their
// contents, then remaining tags, then entity decoding.
func StripHTML(s string) string {
	s = scriptPattern.ReplaceAllString(s, " ")
	s = tagPattern.ReplaceAllString(s, " ")
	return html.UnescapeString(s)
}

// Clean collapses runs of whitespace to single spaces and trims.
func Clean(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// CleanText strips markup and collapses whitespace in one pass.
func CleanText(s string) string {
	return Clean(StripHTML(s))
}

// Truncate shortens s to at most max runes, cutting at a word boundary
// and appending an ellipsis when anything was dropped.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	cut := string(r[:max])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " .,;:") + "…"
}

// folder strips combining marks after NFD decomposition, so macronned
// vowels compare equal to their plain forms (Māori == Maori).
var folder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases s and removes diacritics. Comparison form only,
// never shown to users.
func Fold(s string) string {
	out, _, err := transform.String(folder, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}
