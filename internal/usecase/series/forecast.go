package series

import (
	"github.com/shopspring/decimal"

	"github.com/runwaylens/runwaylens-backend/internal/domain"
)

// Forecast defaults: at least 3 real points before a trend is attempted,
// at most the last 12 real points feed the fit, 6 months are projected.
const (
	DefaultMinPoints   = 3
	DefaultMaxPoints   = 12
	DefaultMonthsAhead = 6
)

// ForecastOptions controls the linear trend extension
// Zero values fall back to the defaults
type ForecastOptions struct {
	MinPoints   int
	MaxPoints   int
	MonthsAhead int
}

func (o ForecastOptions) withDefaults() ForecastOptions {
	if o.MinPoints <= 0 {
		o.MinPoints = DefaultMinPoints
	}
	if o.MaxPoints <= 0 {
		o.MaxPoints = DefaultMaxPoints
	}
	if o.MonthsAhead <= 0 {
		o.MonthsAhead = DefaultMonthsAhead
	}
	return o
}

// Extend appends a linear trend to a dense series. Historical points are
// never modified; every appended point carries a null value and the fitted
// trend in Forecast, so charts can style history and projection apart.
// Logic:
//  1. Count points with real values; below MinPoints return the series unchanged
//  2. Fit ordinary least squares y = a + b*x over the last MaxPoints real values, x being their positions in that window
//  3. A degenerate fit returns the series unchanged
//  4. Append MonthsAhead calendar months past the end of the series, each with forecast = a + b*x rounded to 2 decimals
func Extend(points []domain.ChartPoint, opts ForecastOptions) []domain.ChartPoint {
	opts = opts.withDefaults()

	values := make([]decimal.Decimal, 0, len(points))
	for _, point := range points {
		if point.Value != nil {
			values = append(values, *point.Value)
		}
	}
	if len(values) < opts.MinPoints {
		return points
	}

	// Only the most recent real values shape the trend
	if len(values) > opts.MaxPoints {
		values = values[len(values)-opts.MaxPoints:]
	}

	intercept, slope, ok := fitLine(values)
	if !ok {
		return points
	}

	lastMonth, err := domain.ParseMonth(points[len(points)-1].PeriodKey)
	if err != nil {
		// Without a parseable period there is no axis to extend
		return points
	}

	// Appended months continue the calendar; x continues the fit window
	out := make([]domain.ChartPoint, len(points), len(points)+opts.MonthsAhead)
	copy(out, points)

	month := lastMonth
	for i := 1; i <= opts.MonthsAhead; i++ {
		month = month.Next()
		x := decimal.NewFromInt(int64(len(values) - 1 + i))
		forecast := intercept.Add(slope.Mul(x)).Round(2)
		out = append(out, domain.ChartPoint{
			Label:     month.Label(),
			PeriodKey: month.Key(),
			Forecast:  &forecast,
		})
	}

	return out
}

// fitLine computes an ordinary least squares fit y = a + b*x over values
// indexed 0..n-1
// Returns ok=false when the fit is degenerate
func fitLine(values []decimal.Decimal) (intercept, slope decimal.Decimal, ok bool) {
	n := decimal.NewFromInt(int64(len(values)))

	var sumX, sumY, sumXY, sumXX decimal.Decimal
	for i, y := range values {
		x := decimal.NewFromInt(int64(i))
		sumX = sumX.Add(x)
		sumY = sumY.Add(y)
		sumXY = sumXY.Add(x.Mul(y))
		sumXX = sumXX.Add(x.Mul(x))
	}

	denominator := n.Mul(sumXX).Sub(sumX.Mul(sumX))
	if denominator.IsZero() {
		return decimal.Zero, decimal.Zero, false
	}

	slope = n.Mul(sumXY).Sub(sumX.Mul(sumY)).Div(denominator)
	intercept = sumY.Sub(slope.Mul(sumX)).Div(n)
	return intercept, slope, true
}
