package merge

import (
	"time"

	"github.com/runwaylens/runwaylens-backend/internal/domain"
)

// Apply folds one batch of incoming metric values into a snapshot and
// returns the merged state as a new snapshot. The input snapshot is never
// mutated.
// Logic:
//  1. Start from a copy of existing, or from an all-empty metric set when existing is nil
//  2. Ignore incoming keys that are not part of the metric catalog
//  3. For each incoming non-null value, overwrite only where precedence allows it, stamping the batch provenance and timestamp
//  4. An incoming null never clears an existing value; landing on an empty metric it only adopts the batch provenance
//
// Precedence protects human data: manual entries are never overwritten by
// an automated merge, spreadsheet values yield only to a fresh spreadsheet
// import, and instrument feed values always take the latest fetch.
//
// When existing is nil the result carries metric state only. Callers that
// intend to persist it construct the snapshot with domain.NewSnapshot and
// merge into that instead.
func Apply(existing *domain.Snapshot, patch domain.MetricPatch, source domain.Provenance, now time.Time) *domain.Snapshot {
	result := cloneOrInit(existing)

	// Every catalog metric exists on the result, even when the stored
	// snapshot predates a newer metric
	for _, key := range domain.MetricKeys() {
		if _, ok := result.Metrics[key]; !ok {
			result.Metrics[key] = domain.EmptyMetricValue()
		}
	}

	stamped := now

	for key, incoming := range patch {
		// Unknown keys are ignored so feeds can evolve ahead of the catalog
		if !domain.IsKnownMetric(key) {
			continue
		}

		current := result.Metrics[key]

		if incoming == nil {
			// A null never clears data. On an empty metric it only adopts
			// the batch provenance; the timestamp stays unset because no
			// value was observed.
			if current.Value == nil {
				result.Metrics[key] = domain.MetricValue{Source: source}
			}
			continue
		}

		if !allowsOverwrite(current, source) {
			continue
		}

		value := *incoming
		result.Metrics[key] = domain.MetricValue{Value: &value, Source: source, UpdatedAt: &stamped}
	}

	return result
}

// cloneOrInit copies the existing snapshot, or starts a blank one when no
// snapshot exists yet for the period being merged
func cloneOrInit(existing *domain.Snapshot) *domain.Snapshot {
	if existing == nil {
		return &domain.Snapshot{Metrics: make(map[domain.MetricKey]domain.MetricValue)}
	}
	return existing.Clone()
}

// allowsOverwrite decides whether an incoming value may replace what a
// metric currently holds
func allowsOverwrite(current domain.MetricValue, source domain.Provenance) bool {
	// An empty metric accepts anything
	if current.Value == nil {
		return true
	}

	switch current.Source {
	case domain.ProvenanceInstrumentFeed:
		// Latest reading wins, whoever sent it
		return true
	case domain.ProvenanceSpreadsheetFeed:
		// Spreadsheet re-syncs are idempotent against themselves; nothing
		// else replaces a spreadsheet value
		return source == domain.ProvenanceSpreadsheetFeed
	case domain.ProvenanceManualEntry:
		// Human-entered values are never overwritten by a merge
		return false
	default:
		// Computed and unrecognized provenances never outrank an observation
		return true
	}
}
