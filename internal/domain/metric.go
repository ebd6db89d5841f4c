package domain

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Provenance identifies where a metric value came from
// Precedence between provenances is enforced by the merge engine
type Provenance string

const (
	ProvenanceInstrumentFeed  Provenance = "instrument_feed"
	ProvenanceSpreadsheetFeed Provenance = "spreadsheet_feed"
	ProvenanceManualEntry     Provenance = "manual_entry"
	ProvenanceComputed        Provenance = "computed"
)

// MetricKey identifies one of the tracked KPIs
type MetricKey string

const (
	MetricMRR               MetricKey = "mrr"
	MetricARR               MetricKey = "arr"
	MetricMRRGrowthMoM      MetricKey = "mrr_growth_mom"
	MetricChurn             MetricKey = "churn"
	MetricNetRevenue        MetricKey = "net_revenue"
	MetricFailedPaymentRate MetricKey = "failed_payment_rate"
	MetricRefundRate        MetricKey = "refund_rate"
	MetricBurnRate          MetricKey = "burn_rate"
	MetricCashBalance       MetricKey = "cash_balance"
	MetricCustomers         MetricKey = "customers"
	MetricRunwayMonths      MetricKey = "runway_months"
)

// MetricKind drives formatting and chart normalization for a metric
type MetricKind string

const (
	KindCurrency MetricKind = "currency"
	KindPercent  MetricKind = "percent"
	KindCount    MetricKind = "count"
	KindMonths   MetricKind = "months"
)

// MetricDefinition describes one entry of the metric catalog
type MetricDefinition struct {
	Key   MetricKey
	Label string
	Kind  MetricKind
	// AllowNegative is false for metrics where a negative reading is an
	// upstream artifact rather than a plausible value
	AllowNegative bool
}

// metricCatalog is the canonical metric set in display order
var metricCatalog = []MetricDefinition{
	{Key: MetricMRR, Label: "Monthly Recurring Revenue", Kind: KindCurrency, AllowNegative: true},
	{Key: MetricARR, Label: "Annual Recurring Revenue", Kind: KindCurrency, AllowNegative: true},
	{Key: MetricMRRGrowthMoM, Label: "MRR Growth (MoM)", Kind: KindPercent, AllowNegative: true},
	{Key: MetricChurn, Label: "Churn Rate", Kind: KindPercent, AllowNegative: false},
	{Key: MetricNetRevenue, Label: "Net Revenue", Kind: KindCurrency, AllowNegative: true},
	{Key: MetricFailedPaymentRate, Label: "Failed Payment Rate", Kind: KindPercent, AllowNegative: false},
	{Key: MetricRefundRate, Label: "Refund Rate", Kind: KindPercent, AllowNegative: false},
	{Key: MetricBurnRate, Label: "Burn Rate", Kind: KindCurrency, AllowNegative: false},
	{Key: MetricCashBalance, Label: "Cash Balance", Kind: KindCurrency, AllowNegative: true},
	{Key: MetricCustomers, Label: "Customers", Kind: KindCount, AllowNegative: true},
	{Key: MetricRunwayMonths, Label: "Runway", Kind: KindMonths, AllowNegative: true},
}

// MetricCatalog returns the metric definitions in display order
func MetricCatalog() []MetricDefinition {
	out := make([]MetricDefinition, len(metricCatalog))
	copy(out, metricCatalog)
	return out
}

// DefinitionOf returns the catalog entry for a metric key
func DefinitionOf(key MetricKey) (MetricDefinition, bool) {
	for _, def := range metricCatalog {
		if def.Key == key {
			return def, true
		}
	}
	return MetricDefinition{}, false
}

// IsKnownMetric reports whether key is part of the metric catalog
func IsKnownMetric(key MetricKey) bool {
	_, ok := DefinitionOf(key)
	return ok
}

// MetricKeys returns every catalog key in display order
func MetricKeys() []MetricKey {
	keys := make([]MetricKey, 0, len(metricCatalog))
	for _, def := range metricCatalog {
		keys = append(keys, def.Key)
	}
	return keys
}

// MetricValue is the canonical tagged value stored for every metric of a
// snapshot: the value itself, where it came from, and when it was observed.
// Value and UpdatedAt are nil together: a metric without a value carries
// no observation timestamp.
type MetricValue struct {
	Value     *decimal.Decimal `json:"value"`
	Source    Provenance       `json:"source"`
	UpdatedAt *time.Time       `json:"updated_at"`
}

// EmptyMetricValue returns the initial state of a metric: no value, no
// timestamp, computed provenance
func EmptyMetricValue() MetricValue {
	return MetricValue{Source: ProvenanceComputed}
}

// NewMetricValue creates a set metric value with the given provenance and timestamp
func NewMetricValue(value decimal.Decimal, source Provenance, at time.Time) MetricValue {
	return MetricValue{Value: &value, Source: source, UpdatedAt: &at}
}

// IsSet reports whether the metric carries a value
func (v MetricValue) IsSet() bool {
	return v.Value != nil
}

// Validate ensures the value/timestamp pairing holds
// Returns an error if validation fails
func (v MetricValue) Validate() error {
	if v.Value == nil && v.UpdatedAt != nil {
		return errors.New("metric without a value cannot carry an observation timestamp")
	}
	if v.Value != nil && v.UpdatedAt == nil {
		return errors.New("metric with a value must carry an observation timestamp")
	}
	return nil
}

// MetricPatch is a partial set of incoming metric values keyed by metric.
// A nil entry means the source explicitly reported "no value" for that key.
type MetricPatch map[MetricKey]*decimal.Decimal

// DecimalFromFloat converts a raw float to a decimal pointer, mapping NaN
// and infinities to nil. decimal.NewFromFloat panics on non-finite input,
// so every float entering the system is routed through here.
func DecimalFromFloat(f float64) *decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	d := decimal.NewFromFloat(f)
	return &d
}
