package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot is the merged state of all tracked metrics for one company and
// one calendar month. It is the system's only persistent aggregate: feed
// batches, manual entries, and derived values all fold into it through
// the merge engine.
type Snapshot struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Period    Month
	Metrics   map[MetricKey]MetricValue
	CreatedAt time.Time
	UpdatedAt time.Time
}

// signalKeys are the metrics whose presence makes a month worth charting.
// A snapshot where all of them are null is skipped by series building.
var signalKeys = []MetricKey{
	MetricMRR,
	MetricNetRevenue,
	MetricBurnRate,
	MetricCashBalance,
	MetricCustomers,
}

// NewSnapshot creates a snapshot for the given company and period with
// every catalog metric initialized to the empty state
func NewSnapshot(companyID uuid.UUID, period Month) *Snapshot {
	metrics := make(map[MetricKey]MetricValue, len(metricCatalog))
	for _, def := range metricCatalog {
		metrics[def.Key] = EmptyMetricValue()
	}
	return &Snapshot{
		ID:        uuid.New(),
		CompanyID: companyID,
		Period:    period,
		Metrics:   metrics,
	}
}

// Metric returns the tagged value for a key, or the empty state when the
// snapshot predates the metric
func (s *Snapshot) Metric(key MetricKey) MetricValue {
	if s == nil || s.Metrics == nil {
		return EmptyMetricValue()
	}
	if v, ok := s.Metrics[key]; ok {
		return v
	}
	return EmptyMetricValue()
}

// MetricDecimal returns the raw value for a key, nil when unset
func (s *Snapshot) MetricDecimal(key MetricKey) *decimal.Decimal {
	return s.Metric(key).Value
}

// HasSignal reports whether the snapshot carries at least one reported
// core metric. Months without signal are excluded from chart axes.
func (s *Snapshot) HasSignal() bool {
	for _, key := range signalKeys {
		if s.Metric(key).IsSet() {
			return true
		}
	}
	return false
}

// Clone returns a copy with its own metrics map so callers can build a
// new state without mutating the original. Stored decimals and timestamps
// are never modified in place, so sharing their pointers is safe.
func (s *Snapshot) Clone() *Snapshot {
	dup := *s
	dup.Metrics = make(map[MetricKey]MetricValue, len(s.Metrics))
	for key, value := range s.Metrics {
		dup.Metrics[key] = value
	}
	return &dup
}

// Validate ensures the snapshot adheres to domain rules
// Returns an error if validation fails
func (s *Snapshot) Validate() error {
	if s.CompanyID == uuid.Nil {
		return errors.New("snapshot company ID cannot be empty")
	}
	if s.Period.IsZero() {
		return errors.New("snapshot period cannot be empty")
	}
	for key, value := range s.Metrics {
		if err := value.Validate(); err != nil {
			return fmt.Errorf("metric %s: %w", key, err)
		}
	}
	return nil
}
