package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/keeptracknz/collector/internal/schema"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedTier(name string, records []schema.RawRecord, err error) Tier {
	return Tier{
		Name: name,
		Run: func(ctx context.Context) ([]schema.RawRecord, error) {
			return records, err
		},
	}
}

func someRecords(n int) []schema.RawRecord {
	out := make([]schema.RawRecord, n)
	for i := range out {
		out[i] = schema.RawRecord{
			Source: schema.Parliament,
			Title:  fmt.Sprintf("Bill %d", i),
			URL:    fmt.Sprintf("https://bills.parliament.nz/v/6/b%d", i),
		}
	}
	return out
}

func TestRunTiers_FirstTierWins(t *testing.T) {
	secondRan := false
	tiers := []Tier{
		fixedTier("feed", someRecords(3), nil),
		{Name: "static", Run: func(ctx context.Context) ([]schema.RawRecord, error) {
			secondRan = true
			return nil, nil
		}},
	}

	records, outcomes, err := RunTiers(context.Background(), discardLogger(), tiers, MinRecords(1))
	if err != nil {
		t.Fatalf("RunTiers: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("records = %d, want 3", len(records))
	}
	if secondRan {
		t.Error("second tier should not run when the first passes")
	}
	if len(outcomes) != 1 || !outcomes[0].Used || outcomes[0].Tier != "feed" {
		t.Errorf("outcomes = %+v", outcomes)
	}
}

func TestRunTiers_FallsThroughOnFailure(t *testing.T) {
	tiers := []Tier{
		fixedTier("feed", nil, fmt.Errorf("fetch feed: %w: no items", ErrStructural)),
		fixedTier("static", someRecords(5), nil),
	}

	records, outcomes, err := RunTiers(context.Background(), discardLogger(), tiers, MinRecords(1))
	if err != nil {
		t.Fatalf("RunTiers: %v", err)
	}
	if len(records) != 5 {
		t.Errorf("records = %d, want 5", len(records))
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	if outcomes[0].Used || outcomes[0].Reason == "" {
		t.Errorf("failed tier outcome = %+v", outcomes[0])
	}
	if !outcomes[1].Used {
		t.Errorf("second tier outcome = %+v", outcomes[1])
	}
}

func TestRunTiers_FallsThroughOnRejectedCheck(t *testing.T) {
	tiers := []Tier{
		fixedTier("feed", someRecords(1), nil),
		fixedTier("static", someRecords(4), nil),
	}

	records, _, err := RunTiers(context.Background(), discardLogger(), tiers, MinRecords(3))
	if err != nil {
		t.Fatalf("RunTiers: %v", err)
	}
	if len(records) != 4 {
		t.Errorf("records = %d, want 4 (from second tier)", len(records))
	}
}

func TestRunTiers_Exhaustion(t *testing.T) {
	tiers := []Tier{
		fixedTier("feed", nil, errors.New("timeout")),
		fixedTier("static", nil, errors.New("status 503")),
		fixedTier("browser", nil, errors.New("chrome not found")),
	}

	_, outcomes, err := RunTiers(context.Background(), discardLogger(), tiers, MinRecords(1))
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if len(outcomes) != 3 {
		t.Errorf("outcomes = %d, want 3", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Used {
			t.Errorf("no tier should be marked used: %+v", o)
		}
	}
}

func TestRunTiers_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tiers := []Tier{fixedTier("feed", someRecords(3), nil)}
	_, _, err := RunTiers(ctx, discardLogger(), tiers, MinRecords(1))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestMinRecords(t *testing.T) {
	check := MinRecords(2)
	if err := check(someRecords(2)); err != nil {
		t.Errorf("check rejected sufficient records: %v", err)
	}
	if err := check(someRecords(1)); err == nil {
		t.Error("check accepted too few records")
	}
	bad := someRecords(2)
	bad[0].URL = ""
	if err := check(bad); err == nil {
		t.Error("check accepted a sample record with no url")
	}
}
