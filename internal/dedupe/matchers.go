package dedupe

import (
	"github.com/keeptracknz/collector/internal/normalize"
	"github.com/keeptracknz/collector/internal/schema"
)

// pairKey identifies a cross-source matcher by the two sources it
// relates, higher priority first.
type pairKey struct {
	High, Low schema.SourceSystem
}

// crossMatcher scores whether high and low describe the same underlying
// action. Returns the confidence and whether it clears the bar.
type crossMatcher func(high, low *schema.CanonicalAction, cfg Config) (float64, bool)

// crossMatchers registers the source-pair heuristics. The reconcile
// loop stays source-agnostic; pair-specific rules evolve here.
var crossMatchers = map[pairKey]crossMatcher{
	{schema.Legislation, schema.Parliament}: matchActToBill,
}

// matchActToBill relates an enacted act to the bill it came from. A
// bill-number reference on the act is decisive; otherwise the statute
// titles must clear the strict threshold and the responsible entity or
// portfolio must not disagree.
func matchActToBill(act, bill *schema.CanonicalAction, cfg Config) (float64, bool) {
	if act.Metadata != nil && bill.Metadata != nil &&
		act.Metadata.BillNumber != "" && act.Metadata.BillNumber == bill.Metadata.BillNumber {
		return 1.0, true
	}

	sim := statuteTitleSimilarity(act.Title, bill.Title)
	if sim < cfg.CrossSourceThreshold {
		return sim, false
	}
	if !entitiesAlign(act, bill) {
		return sim, false
	}
	return sim, true
}

// entitiesAlign accepts equal folded entities (both empty counts as
// equal) or matching non-empty portfolios.
func entitiesAlign(a, b *schema.CanonicalAction) bool {
	if normalize.Fold(a.PrimaryEntity) == normalize.Fold(b.PrimaryEntity) {
		return true
	}
	pa, pb := portfolioOf(a), portfolioOf(b)
	return pa != "" && normalize.Fold(pa) == normalize.Fold(pb)
}

func portfolioOf(a *schema.CanonicalAction) string {
	if a.Metadata == nil {
		return ""
	}
	return a.Metadata.Portfolio
}
