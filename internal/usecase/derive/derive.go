package derive

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/runwaylens/runwaylens-backend/internal/domain"
)

// WarningCashFlowPositive annotates a month whose raw burn was negative,
// meaning the company added cash instead of burning it
const WarningCashFlowPositive = "cash-flow positive"

var (
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// Input carries the merged values the derivation depends on. Any of them
// may be nil when the underlying metric has no value for the month.
type Input struct {
	MRR         *decimal.Decimal
	PreviousMRR *decimal.Decimal
	CashBalance *decimal.Decimal
	RawBurn     *decimal.Decimal
}

// Result holds the derived metrics, each tagged with computed provenance.
// RunwayStatus distinguishes a runway that is unknown from one that does
// not apply because the company is not burning cash.
type Result struct {
	ARR          domain.MetricValue
	MRRGrowthMoM domain.MetricValue
	RunwayMonths domain.MetricValue
	RunwayStatus domain.MetricStatus
	Warnings     []string
}

// Calculate derives ARR, month-over-month MRR growth, and runway from the
// merged metrics of one month.
// Logic:
//  1. arr = mrr * 12 (run rate), null when mrr is unknown
//  2. growth = round(((mrr - previous) / previous) * 100, 1), null unless both MRRs are known and previous > 0
//  3. burn is clamped to zero when negative; a clamped month is annotated "cash-flow positive"
//  4. runway = round(cash / burn, 1) only when burn > 0 and cash is known; burn <= 0 makes runway not applicable rather than infinite
//
// Derivation never fails: unknown inputs produce null outputs, not errors.
func Calculate(in Input, now time.Time) Result {
	result := Result{
		ARR:          domain.EmptyMetricValue(),
		MRRGrowthMoM: domain.EmptyMetricValue(),
		RunwayMonths: domain.EmptyMetricValue(),
		RunwayStatus: domain.StatusMissing,
	}

	// 1. Annualized run rate
	if in.MRR != nil {
		result.ARR = domain.NewMetricValue(in.MRR.Mul(twelve), domain.ProvenanceComputed, now)
	}

	// 2. Growth needs a comparable positive baseline
	if in.MRR != nil && in.PreviousMRR != nil && in.PreviousMRR.IsPositive() {
		growth := in.MRR.Sub(*in.PreviousMRR).Div(*in.PreviousMRR).Mul(hundred).Round(1)
		result.MRRGrowthMoM = domain.NewMetricValue(growth, domain.ProvenanceComputed, now)
	}

	// 3. Burn guardrail
	burn, clamped := NormalizeBurn(in.RawBurn)
	if clamped {
		result.Warnings = append(result.Warnings, WarningCashFlowPositive)
	}

	// 4. Runway
	switch {
	case burn == nil:
		result.RunwayStatus = domain.StatusMissing
	case !burn.IsPositive():
		// Runway is undefined while the company is not burning cash:
		// not infinite, not zero
		result.RunwayStatus = domain.StatusNotApplicable
	case in.CashBalance == nil:
		result.RunwayStatus = domain.StatusMissing
	default:
		runway := in.CashBalance.Div(*burn).Round(1)
		result.RunwayMonths = domain.NewMetricValue(runway, domain.ProvenanceComputed, now)
		result.RunwayStatus = domain.StatusDerived
	}

	return result
}

// FromSnapshot assembles the derivation input from a month's merged
// snapshot and the previous month's snapshot (nil when absent)
func FromSnapshot(current, previous *domain.Snapshot) Input {
	return Input{
		MRR:         current.MetricDecimal(domain.MetricMRR),
		PreviousMRR: previous.MetricDecimal(domain.MetricMRR),
		CashBalance: current.MetricDecimal(domain.MetricCashBalance),
		RawBurn:     current.MetricDecimal(domain.MetricBurnRate),
	}
}

// NormalizeBurn clamps a negative raw burn (net cash inflow) to zero so a
// negative burn is never surfaced. Returns the normalized burn and whether
// clamping occurred. A nil burn stays nil.
func NormalizeBurn(raw *decimal.Decimal) (*decimal.Decimal, bool) {
	if raw == nil {
		return nil, false
	}
	if raw.IsNegative() {
		zero := decimal.Zero
		return &zero, true
	}
	return raw, false
}
