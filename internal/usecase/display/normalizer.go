package display

import (
	"github.com/shopspring/decimal"

	"github.com/runwaylens/runwaylens-backend/internal/domain"
	"github.com/runwaylens/runwaylens-backend/internal/usecase/derive"
	"github.com/runwaylens/runwaylens-backend/internal/usecase/series"
)

// Normalizer turns a merged snapshot into display-ready KPI cards
type Normalizer struct {
	Formatter *Formatter
}

// NewNormalizer creates a new Normalizer instance
func NewNormalizer(formatter *Formatter) *Normalizer {
	return &Normalizer{Formatter: formatter}
}

// Normalize produces one card per catalog metric in display order.
// Formatted is never empty: unavailable values render as the placeholder.
// A nil snapshot renders every metric as missing.
// Logic:
//  1. Map provenance to status: feeds and manual entries are reported, computed is derived, absent is missing
//  2. A runway without a value falls back to the burn guardrail: a non-burning month is not applicable rather than missing
//  3. Percent values get the same dual-convention normalization charts use
//  4. Burn is clamped for display exactly like derivation clamps it, with the warning attached
func (n *Normalizer) Normalize(snapshot *domain.Snapshot, currency string) []domain.MetricResult {
	catalog := domain.MetricCatalog()
	results := make([]domain.MetricResult, 0, len(catalog))
	for _, def := range catalog {
		results = append(results, n.normalizeMetric(snapshot, def, currency))
	}
	return results
}

func (n *Normalizer) normalizeMetric(snapshot *domain.Snapshot, def domain.MetricDefinition, currency string) domain.MetricResult {
	metric := snapshot.Metric(def.Key)

	result := domain.MetricResult{
		Key:       def.Key,
		Label:     def.Label,
		Status:    domain.StatusMissing,
		Formatted: Placeholder,
	}

	value := metric.Value
	var warnings []string

	// Burn is never surfaced negative
	if def.Key == domain.MetricBurnRate {
		normalized, clamped := derive.NormalizeBurn(value)
		value = normalized
		if clamped {
			warnings = append(warnings, derive.WarningCashFlowPositive)
		}
	}

	if value != nil {
		display := *value
		if def.Kind == domain.KindPercent {
			display = series.NormalizePercent(display)
		}

		result.Value = &display
		result.Status = statusForProvenance(metric.Source)
		result.Source = metric.Source
		result.UpdatedAt = metric.UpdatedAt
		result.Formatted = n.format(display, def.Kind, currency)
		result.Note = noteForStatus(result.Status, metric.Source)
		result.Warnings = warnings
		return result
	}

	// Runway nulls distinguish "unknown" from "does not apply"
	if def.Key == domain.MetricRunwayMonths {
		burn, _ := derive.NormalizeBurn(snapshot.MetricDecimal(domain.MetricBurnRate))
		if burn != nil && !burn.IsPositive() {
			result.Status = domain.StatusNotApplicable
		}
	}

	result.Note = noteForStatus(result.Status, metric.Source)
	result.Warnings = warnings
	return result
}

func (n *Normalizer) format(value decimal.Decimal, kind domain.MetricKind, currency string) string {
	switch kind {
	case domain.KindCurrency:
		return n.Formatter.Currency(value, currency)
	case domain.KindPercent:
		return n.Formatter.Percent(value)
	case domain.KindCount:
		return n.Formatter.Count(value)
	case domain.KindMonths:
		return n.Formatter.Months(value)
	default:
		return value.String()
	}
}

// statusForProvenance maps where a value came from to how the card explains it
func statusForProvenance(source domain.Provenance) domain.MetricStatus {
	switch source {
	case domain.ProvenanceComputed:
		return domain.StatusDerived
	default:
		// Feeds, manual entries, and unrecognized provenances all
		// observed the value somewhere outside this system
		return domain.StatusReported
	}
}

// noteForStatus produces the short explanation shown under a card
func noteForStatus(status domain.MetricStatus, source domain.Provenance) string {
	switch status {
	case domain.StatusReported:
		switch source {
		case domain.ProvenanceInstrumentFeed:
			return "Reported by the payments feed"
		case domain.ProvenanceSpreadsheetFeed:
			return "Imported from the spreadsheet"
		case domain.ProvenanceManualEntry:
			return "Entered manually"
		default:
			return "Reported"
		}
	case domain.StatusDerived:
		return "Calculated from reported metrics"
	case domain.StatusNotApplicable:
		return "Not applicable while cash-flow positive"
	default:
		return "No data for this period"
	}
}
