// Package dedupe reconciles the full canonical set across all sources:
// exact duplicates, within-source re-scrapes, and cross-source
// bill-to-act correspondence collapse into one survivor each, with an
// audit entry for every decision. Reconciliation is order-independent:
// the result depends on the fixed source priority and the matching
// rules, never on input position.
package dedupe

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/keeptracknz/collector/internal/schema"
)

// Config carries the matching policy knobs. Thresholds are policy
// choices; near misses are logged so they can be tuned from real runs.
type Config struct {
	TitleThreshold       float64
	DateWindowDays       int
	CrossSourceThreshold float64
}

// DefaultConfig returns the shipped matching policy.
func DefaultConfig() Config {
	return Config{
		TitleThreshold:       0.85,
		DateWindowDays:       3,
		CrossSourceThreshold: 0.90,
	}
}

// nearMissMargin is how far below a threshold a score may fall and
// still be worth logging for tuning.
const nearMissMargin = 0.05

// Tier names as recorded in merge audits.
const (
	TierExactURL     = "exact-url"
	TierExactID      = "exact-id"
	TierWithinSource = "within-source"
	TierCrossSource  = "cross-source"
)

// MergeAudit records one detected duplicate pair: the tier that caught
// it, both records' natural keys, the similarity score where one was
// computed, and the ID that survived the group's merge.
type MergeAudit struct {
	Tier       string  `json:"tier"`
	SurvivorID string  `json:"survivor_id"`
	LeftID     string  `json:"left_id"`
	LeftKey    string  `json:"left_key"`
	RightID    string  `json:"right_id"`
	RightKey   string  `json:"right_key"`
	Similarity float64 `json:"similarity,omitempty"`
}

type detectedPair struct {
	tier        string
	left, right int
	similarity  float64
}

// Reconcile deduplicates actions and returns the survivors plus the
// merge audit trail. The input slice is not modified.
func Reconcile(log *slog.Logger, actions []schema.CanonicalAction, cfg Config) ([]schema.CanonicalAction, []MergeAudit) {
	if len(actions) == 0 {
		return nil, nil
	}

	// Work on a canonically ordered copy so nothing downstream can see
	// the caller's ordering.
	work := make([]schema.CanonicalAction, len(actions))
	copy(work, actions)
	sort.SliceStable(work, func(i, j int) bool {
		if work[i].ID != work[j].ID {
			return work[i].ID < work[j].ID
		}
		if ri, rj := work[i].SourceSystem.Rank(), work[j].SourceSystem.Rank(); ri != rj {
			return ri < rj
		}
		return work[i].URL < work[j].URL
	})

	uf := newUnionFind(len(work))
	var pairs []detectedPair
	record := func(tier string, i, j int, sim float64) {
		if uf.union(i, j) {
			pairs = append(pairs, detectedPair{tier, i, j, sim})
		}
	}

	matchExact(work, record)
	matchWithinSource(log, work, cfg, record)
	matchCrossSource(log, work, cfg, record)

	// Collapse groups. Union roots are minimum member indices, so
	// iterating roots in ascending order is canonical.
	groups := make(map[int][]int)
	for i := range work {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}
	roots := make([]int, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	survivors := make([]schema.CanonicalAction, 0, len(groups))
	survivorByRoot := make(map[int]string, len(groups))
	for _, root := range roots {
		merged := mergeGroup(work, groups[root])
		survivors = append(survivors, merged)
		survivorByRoot[root] = merged.ID
	}

	audits := make([]MergeAudit, 0, len(pairs))
	for _, p := range pairs {
		audits = append(audits, MergeAudit{
			Tier:       p.tier,
			SurvivorID: survivorByRoot[uf.find(p.left)],
			LeftID:     work[p.left].ID,
			LeftKey:    naturalKey(work[p.left]),
			RightID:    work[p.right].ID,
			RightKey:   naturalKey(work[p.right]),
			Similarity: p.similarity,
		})
	}
	sort.Slice(audits, func(i, j int) bool {
		a, b := audits[i], audits[j]
		if a.SurvivorID != b.SurvivorID {
			return a.SurvivorID < b.SurvivorID
		}
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		if a.LeftID != b.LeftID {
			return a.LeftID < b.LeftID
		}
		return a.RightID < b.RightID
	})

	return survivors, audits
}

// matchExact unions records sharing a canonical URL or a derived ID.
func matchExact(work []schema.CanonicalAction, record func(string, int, int, float64)) {
	byURL := make(map[string][]int)
	byID := make(map[string][]int)
	for i, a := range work {
		if a.URL != "" {
			byURL[a.URL] = append(byURL[a.URL], i)
		}
		byID[a.ID] = append(byID[a.ID], i)
	}
	for _, key := range sortedKeys(byURL) {
		group := byURL[key]
		for k := 1; k < len(group); k++ {
			record(TierExactURL, group[0], group[k], 0)
		}
	}
	for _, key := range sortedKeys(byID) {
		group := byID[key]
		for k := 1; k < len(group); k++ {
			record(TierExactID, group[0], group[k], 0)
		}
	}
}

// matchWithinSource unions same-source records whose titles clear the
// similarity threshold and whose dates fall within the window. The
// scan is windowed over date order, so cost stays near-linear and the
// result is order independent. Undated records never window-match.
func matchWithinSource(log *slog.Logger, work []schema.CanonicalAction, cfg Config, record func(string, int, int, float64)) {
	bySource := make(map[schema.SourceSystem][]int)
	for i, a := range work {
		if a.Date == "" {
			continue
		}
		bySource[a.SourceSystem] = append(bySource[a.SourceSystem], i)
	}
	for _, src := range schema.AllSources {
		group := bySource[src]
		sort.Slice(group, func(a, b int) bool {
			if work[group[a]].Date != work[group[b]].Date {
				return work[group[a]].Date < work[group[b]].Date
			}
			return work[group[a]].ID < work[group[b]].ID
		})
		for x := 0; x < len(group); x++ {
			for y := x + 1; y < len(group); y++ {
				i, j := group[x], group[y]
				if daysBetween(work[i].Date, work[j].Date) > cfg.DateWindowDays {
					break
				}
				sim := TitleSimilarity(work[i].Title, work[j].Title)
				switch {
				case sim >= cfg.TitleThreshold:
					record(TierWithinSource, i, j, sim)
				case sim >= cfg.TitleThreshold-nearMissMargin:
					log.Info("near-threshold title match skipped",
						"source", src, "left", work[i].ID, "right", work[j].ID,
						"similarity", fmt.Sprintf("%.3f", sim), "threshold", cfg.TitleThreshold)
				}
			}
		}
	}
}

// matchCrossSource runs each registered source-pair matcher over the
// cartesian product of its two source groups.
func matchCrossSource(log *slog.Logger, work []schema.CanonicalAction, cfg Config, record func(string, int, int, float64)) {
	bySource := make(map[schema.SourceSystem][]int)
	for i, a := range work {
		bySource[a.SourceSystem] = append(bySource[a.SourceSystem], i)
	}

	pairsInOrder := make([]pairKey, 0, len(crossMatchers))
	for key := range crossMatchers {
		pairsInOrder = append(pairsInOrder, key)
	}
	sort.Slice(pairsInOrder, func(i, j int) bool {
		a, b := pairsInOrder[i], pairsInOrder[j]
		if a.High != b.High {
			return a.High.Rank() < b.High.Rank()
		}
		return a.Low.Rank() < b.Low.Rank()
	})

	for _, key := range pairsInOrder {
		matcher := crossMatchers[key]
		for _, hi := range bySource[key.High] {
			for _, lo := range bySource[key.Low] {
				sim, ok := matcher(&work[hi], &work[lo], cfg)
				switch {
				case ok:
					record(TierCrossSource, hi, lo, sim)
				case sim >= cfg.CrossSourceThreshold-nearMissMargin:
					log.Info("near-threshold cross-source match skipped",
						"high", work[hi].ID, "low", work[lo].ID,
						"similarity", fmt.Sprintf("%.3f", sim), "threshold", cfg.CrossSourceThreshold)
				}
			}
		}
	}
}

// mergeGroup collapses one duplicate group into its survivor. Scalars
// come from the highest-priority member; empty scalars fill from the
// next members in priority order; list fields union.
func mergeGroup(work []schema.CanonicalAction, members []int) schema.CanonicalAction {
	ordered := append([]int(nil), members...)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := work[ordered[i]], work[ordered[j]]
		if ra, rb := a.SourceSystem.Rank(), b.SourceSystem.Rank(); ra != rb {
			return ra < rb
		}
		return a.ID < b.ID
	})

	out := work[ordered[0]]
	if len(ordered) == 1 {
		return out
	}

	for _, m := range ordered[1:] {
		member := work[m]
		if out.DateMissing && !member.DateMissing {
			out.Date = member.Date
			out.DateMissing = false
		}
		if out.URL == "" {
			out.URL = member.URL
		}
		if out.Summary == "" {
			out.Summary = member.Summary
		}
		if out.PrimaryEntity == "" {
			out.PrimaryEntity = member.PrimaryEntity
		}
	}

	out.Labels = unionLabels(work, ordered)
	out.Metadata = mergeMetadata(work, ordered)
	return out
}

func unionLabels(work []schema.CanonicalAction, ordered []int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range ordered {
		for _, l := range work[m].Labels {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	sort.Strings(out)
	return out
}

// mergeMetadata merges field-wise, higher priority winning non-empty
// values, and unions stage histories chronologically.
func mergeMetadata(work []schema.CanonicalAction, ordered []int) *schema.ActionMetadata {
	merged := &schema.ActionMetadata{}
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}

	seenStage := make(map[schema.Stage]bool)
	for _, m := range ordered {
		md := work[m].Metadata
		if md == nil {
			continue
		}
		fill(&merged.BillNumber, md.BillNumber)
		fill(&merged.ParliamentNumber, md.ParliamentNumber)
		fill(&merged.ActNumber, md.ActNumber)
		fill(&merged.CommencementDate, md.CommencementDate)
		fill(&merged.NoticeNumber, md.NoticeNumber)
		fill(&merged.NoticeType, md.NoticeType)
		fill(&merged.DocumentType, md.DocumentType)
		fill(&merged.Portfolio, md.Portfolio)
		for _, st := range md.StageHistory {
			if !seenStage[st] {
				seenStage[st] = true
				merged.StageHistory = append(merged.StageHistory, st)
			}
		}
	}
	schema.SortStages(merged.StageHistory)

	if merged.Empty() {
		return nil
	}
	return merged
}

// naturalKey renders the most specific identifier a record carries,
// for audit readability.
func naturalKey(a schema.CanonicalAction) string {
	if m := a.Metadata; m != nil {
		switch {
		case m.ActNumber != "":
			return "act " + m.ActNumber
		case m.BillNumber != "":
			return "bill " + m.BillNumber
		case m.NoticeNumber != "":
			return "notice " + m.NoticeNumber
		}
	}
	if a.URL != "" {
		return a.URL
	}
	return a.ID
}

func daysBetween(a, b string) int {
	ta, errA := time.Parse("2006-01-02", a)
	tb, errB := time.Parse("2006-01-02", b)
	if errA != nil || errB != nil {
		return int(^uint(0) >> 1)
	}
	days := int(tb.Sub(ta).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

func sortedKeys(m map[string][]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// unionFind with minimum-index roots: the root of any set is its
// smallest member, which keeps group iteration canonical.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union merges the sets of a and b. Returns false when they were
// already one set.
func (u *unionFind) union(a, b int) bool {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return false
	}
	if ra > rb {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	return true
}
