package dedupe

import (
	"regexp"
	"strings"

	"github.com/keeptracknz/collector/internal/normalize"
)

// Tokenize splits text into lowercase, diacritic-folded tokens, trimming
// surrounding punctuation and dropping tokens shorter than three runes.
func Tokenize(text string) []string {
	words := strings.Fields(normalize.Fold(text))
	result := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?()[]{}\"'`")
		if len(w) > 2 {
			result = append(result, w)
		}
	}
	return result
}

// Jaccard computes the Jaccard coefficient between two token sets.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	setA := make(map[string]bool, len(a))
	for _, s := range a {
		setA[s] = true
	}
	setB := make(map[string]bool, len(b))
	for _, s := range b {
		setB[s] = true
	}

	intersection := 0
	for s := range setA {
		if setB[s] {
			intersection++
		}
	}

	union := len(setA)
	for s := range setB {
		if !setA[s] {
			union++
		}
	}

	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}

// TitleSimilarity scores two titles in [0, 1], insensitive to case,
// whitespace, and macrons.
func TitleSimilarity(a, b string) float64 {
	return Jaccard(Tokenize(a), Tokenize(b))
}

var yearToken = regexp.MustCompile(`^\d{4}$`)

// statuteTokens are dropped before cross-source comparison: a bill and
// the act it becomes differ exactly by these.
var statuteTokens = map[string]bool{"bill": true, "act": true}

// statuteTitleSimilarity compares titles with statute words and bare
// year tokens removed, so "Fast-track Approvals Bill" and "Fast-track
// Approvals Act 2024" score as the same measure.
func statuteTitleSimilarity(a, b string) float64 {
	return Jaccard(stripStatuteTokens(Tokenize(a)), stripStatuteTokens(Tokenize(b)))
}

func stripStatuteTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if statuteTokens[t] || yearToken.MatchString(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
