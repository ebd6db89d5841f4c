package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MetricStatus describes how a display card should explain its value
type MetricStatus string

const (
	// StatusReported marks values that came from a feed or a human
	StatusReported MetricStatus = "reported"
	// StatusDerived marks values the derivation pass computed
	StatusDerived MetricStatus = "derived"
	// StatusMissing marks metrics with no value for the period
	StatusMissing MetricStatus = "missing"
	// StatusNotApplicable marks runway when the company is not burning cash
	StatusNotApplicable MetricStatus = "not_applicable"
)

// MetricResult is one display-ready KPI card
type MetricResult struct {
	Key       MetricKey        `json:"key"`
	Label     string           `json:"label"`
	Value     *decimal.Decimal `json:"value"`
	Formatted string           `json:"formatted"`
	Status    MetricStatus     `json:"status"`
	Source    Provenance       `json:"source,omitempty"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
	Note      string           `json:"note,omitempty"`
	Warnings  []string         `json:"warnings,omitempty"`
}
