package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/keeptracknz/collector/internal/schema"
)

// ErrExhausted is returned when every tier of a source's chain has
// failed. The source contributes zero records for the run; the caller
// logs a warning and carries on.
var ErrExhausted = errors.New("all fetch tiers exhausted")

// Tier is one fallback level of a source's fetch strategy. Tiers are
// tried strictly in order; adding a tier is a pure extension of the
// chain.
type Tier struct {
	Name string
	Run  func(ctx context.Context) ([]schema.RawRecord, error)
}

// TierOutcome records how one tier fared, for the run report.
type TierOutcome struct {
	Tier    string `json:"tier"`
	Used    bool   `json:"used"`
	Records int    `json:"records"`
	Reason  string `json:"reason,omitempty"`
}

// Check validates a tier's result set before it is accepted. A failed
// check causes fallthrough to the next tier.
type Check func(records []schema.RawRecord) error

// MinRecords returns a Check requiring at least min records, with a
// title and URL present on the first one. Catches a page that still
// serves HTTP 200 but no longer contains what the selectors expect.
func MinRecords(min int) Check {
	return func(records []schema.RawRecord) error {
		if len(records) < min {
			return fmt.Errorf("%d records, need %d", len(records), min)
		}
		if len(records) > 0 {
			sample := records[0]
			if sample.Title == "" || sample.URL == "" {
				return fmt.Errorf("sample record missing title or url")
			}
		}
		return nil
	}
}

// RunTiers tries each tier in order and returns the first result set
// that passes check. Every tier's outcome is recorded regardless of
// which one was used. Exhaustion returns ErrExhausted alongside the
// outcomes, never a nil outcome list.
func RunTiers(ctx context.Context, log *slog.Logger, tiers []Tier, check Check) ([]schema.RawRecord, []TierOutcome, error) {
	outcomes := make([]TierOutcome, 0, len(tiers))

	for _, tier := range tiers {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, TierOutcome{Tier: tier.Name, Reason: err.Error()})
			return nil, outcomes, err
		}

		records, err := tier.Run(ctx)
		if err != nil {
			log.Warn("tier failed", "tier", tier.Name, "structural", IsStructural(err), "error", err)
			outcomes = append(outcomes, TierOutcome{Tier: tier.Name, Reason: err.Error()})
			continue
		}
		if err := check(records); err != nil {
			log.Warn("tier result rejected", "tier", tier.Name, "error", err)
			outcomes = append(outcomes, TierOutcome{Tier: tier.Name, Records: len(records), Reason: err.Error()})
			continue
		}

		log.Info("tier succeeded", "tier", tier.Name, "records", len(records))
		outcomes = append(outcomes, TierOutcome{Tier: tier.Name, Used: true, Records: len(records)})
		return records, outcomes, nil
	}

	return nil, outcomes, ErrExhausted
}
