package domain

import "github.com/shopspring/decimal"

// ChartPoint is one month on a rendered metric series. Value is nil for
// months inside the axis that have no usable reading. Forecast is set only
// on trend points appended past the last real month.
type ChartPoint struct {
	Label     string           `json:"label"`
	Value     *decimal.Decimal `json:"value"`
	PeriodKey string           `json:"period_key"`
	Forecast  *decimal.Decimal `json:"forecast,omitempty"`
}
