package transfer

import (
	"context"
	"fmt"

	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// recordMatcher pairs a source record with zero or one destination
// records, by primary identifier or by a configured secondary unique
// field. The destination index is built once per run, before the batch
// loop.
type recordMatcher struct {
	byPrimary   bool
	sourceField string

	existing    map[string]bool   // destination record IDs
	bySecondary map[string]string // secondary field value -> destination record ID
}

// buildMatcher indexes the destination for the configured match strategy.
func (t *Transferer) buildMatcher(ctx context.Context, cfg *core.TransferConfig) (*recordMatcher, error) {
	if cfg.Match.ByPrimary() {
		ids, err := t.dest.RecordIDs(ctx, core.RecordFilter{})
		if err != nil {
			return nil, fmt.Errorf("failed to index destination records: %w", err)
		}
		existing := make(map[string]bool, len(ids))
		for _, id := range ids {
			existing[id] = true
		}
		return &recordMatcher{byPrimary: true, existing: existing}, nil
	}

	recs, err := t.dest.ReadRecords(ctx, nil, []string{cfg.Match.DestinationField}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to index destination match field: %w", err)
	}
	bySecondary := make(map[string]string, len(recs))
	for _, rec := range recs {
		val := rec.Values[cfg.Match.DestinationField]
		if val == "" {
			continue
		}
		// First record wins; the match field is configured to be unique.
		if _, dup := bySecondary[val]; !dup {
			bySecondary[val] = rec.ID
		}
	}
	return &recordMatcher{sourceField: cfg.Match.SourceField, bySecondary: bySecondary}, nil
}

// match returns the destination record ID for a source record and whether
// a destination record already exists.
func (m *recordMatcher) match(rec core.Record) (string, bool) {
	if m.byPrimary {
		return rec.ID, m.existing[rec.ID]
	}
	val := rec.Values[m.sourceField]
	if val == "" {
		return "", false
	}
	destID, ok := m.bySecondary[val]
	return destID, ok
}
