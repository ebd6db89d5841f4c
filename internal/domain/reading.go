package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Reading is a single raw metric observation as received from a feed.
// Upstream systems send either a bare number (legacy payloads), a tagged
// object carrying value/source/updated_at, or null. UnmarshalJSON folds
// all three shapes into this one struct so nothing downstream has to
// care which shape arrived. Anything unparseable decodes as an absent
// value rather than an error: one odd cell must not fail a whole batch.
type Reading struct {
	Value     *decimal.Decimal
	Source    Provenance
	UpdatedAt *time.Time
}

// UnmarshalJSON accepts a bare number, a numeric string, a tagged object,
// or null
func (r *Reading) UnmarshalJSON(data []byte) error {
	*r = Reading{}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil
		}
		if raw, ok := fields["source"]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil {
				r.Source = Provenance(s)
			}
		}
		if raw, ok := fields["value"]; ok {
			r.Value = decodeReadingValue(raw)
		}
		// Timestamps only accompany actual values
		if raw, ok := fields["updated_at"]; ok && r.Value != nil {
			var ts time.Time
			if json.Unmarshal(raw, &ts) == nil {
				r.UpdatedAt = &ts
			}
		}
		return nil
	}

	r.Value = decodeReadingValue(trimmed)
	return nil
}

// decodeReadingValue parses a JSON number or numeric string into a
// decimal, returning nil for null and for anything unparseable
func decodeReadingValue(raw json.RawMessage) *decimal.Decimal {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var d decimal.Decimal
	if err := json.Unmarshal(trimmed, &d); err != nil {
		return nil
	}
	return &d
}

// ReadingBatch is one feed response for a single company and month
type ReadingBatch map[MetricKey]Reading

// Patch flattens the batch into the value patch the merge engine consumes
func (b ReadingBatch) Patch() MetricPatch {
	patch := make(MetricPatch, len(b))
	for key, reading := range b {
		patch[key] = reading.Value
	}
	return patch
}
