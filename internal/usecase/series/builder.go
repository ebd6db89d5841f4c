package series

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/runwaylens/runwaylens-backend/internal/domain"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Options controls how raw metric values are normalized into chart points
type Options struct {
	// Percent interprets magnitudes <= 1 as fractions and scales them to
	// percentages
	Percent bool
	// AllowNegative keeps negative values; when false a negative value is
	// discarded to null instead of charted as an implausible rate
	AllowNegative bool
}

// OptionsFor derives the chart options for a catalog metric
func OptionsFor(def domain.MetricDefinition) Options {
	return Options{
		Percent:       def.Kind == domain.KindPercent,
		AllowNegative: def.AllowNegative,
	}
}

// Build renders one metric across a company's months as a dense series:
// every calendar month between the first and last month with data appears
// exactly once, and months without data carry a null value so charts show
// gaps instead of connecting across them.
// Logic:
//  1. Sort snapshots ascending by period (input order is not trusted)
//  2. Drop months with no signal so an empty company cannot produce a misleading chart
//  3. Enumerate every calendar month from the first to the last kept period inclusive
//  4. Extract the metric value where a kept snapshot exists
//  5. Normalize percent conventions and discard disallowed negatives
func Build(snapshots []*domain.Snapshot, key domain.MetricKey, opts Options) []domain.ChartPoint {
	// Copy before sorting to avoid mutating the caller's slice
	sorted := make([]*domain.Snapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Period.Before(sorted[j].Period)
	})

	// Keep only months that carry signal
	byMonth := make(map[domain.Month]*domain.Snapshot)
	var first, last domain.Month
	found := false
	for _, snapshot := range sorted {
		if snapshot == nil || !snapshot.HasSignal() {
			continue
		}
		if !found {
			first = snapshot.Period
			found = true
		}
		last = snapshot.Period
		byMonth[snapshot.Period] = snapshot
	}

	if !found {
		return []domain.ChartPoint{}
	}

	// Enumerate the dense axis. Months with no kept snapshot stay null so
	// "no data" is distinguishable from "zero".
	points := make([]domain.ChartPoint, 0)
	for month := first; !month.After(last); month = month.Next() {
		point := domain.ChartPoint{
			Label:     month.Label(),
			PeriodKey: month.Key(),
		}
		if snapshot, ok := byMonth[month]; ok {
			point.Value = normalizeValue(snapshot.MetricDecimal(key), opts)
		}
		points = append(points, point)
	}

	return points
}

// normalizeValue applies the percent dual convention and the negative
// policy to one raw value
func normalizeValue(raw *decimal.Decimal, opts Options) *decimal.Decimal {
	if raw == nil {
		return nil
	}

	value := *raw
	if opts.Percent {
		value = NormalizePercent(value)
	}

	if !opts.AllowNegative && value.IsNegative() {
		return nil
	}

	return &value
}

// NormalizePercent scales fractional percentages to full percentages.
// Upstream feeds inconsistently report rates as 0.03 or 3; a magnitude of
// at most 1 is read as a fraction.
func NormalizePercent(value decimal.Decimal) decimal.Decimal {
	if value.Abs().LessThanOrEqual(one) {
		return value.Mul(hundred)
	}
	return value
}
