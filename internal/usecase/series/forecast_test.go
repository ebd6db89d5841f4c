package series

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runwaylens/runwaylens-backend/internal/domain"
)

// linearSeries builds a dense series starting at the given month with the
// provided values; empty strings become null months
func linearSeries(start domain.Month, values []string) []domain.ChartPoint {
	points := make([]domain.ChartPoint, 0, len(values))
	month := start
	for i, value := range values {
		if i > 0 {
			month = month.Next()
		}
		point := domain.ChartPoint{Label: month.Label(), PeriodKey: month.Key()}
		if value != "" {
			d := decimal.RequireFromString(value)
			point.Value = &d
		}
		points = append(points, point)
	}
	return points
}

func TestExtend_BelowMinPointsReturnsUnchanged(t *testing.T) {
	points := linearSeries(domain.NewMonth(2026, time.January), []string{"100", "110"})

	extended := Extend(points, ForecastOptions{})

	require.Len(t, extended, 2, "two real points are not enough signal for a trend")
	for _, point := range extended {
		assert.Nil(t, point.Forecast)
	}
}

func TestExtend_PerfectLinearTrend(t *testing.T) {
	points := linearSeries(domain.NewMonth(2026, time.January), []string{"100", "110", "120"})

	extended := Extend(points, ForecastOptions{})

	require.Len(t, extended, 9, "six forecast months by default")

	// History is untouched
	for i := 0; i < 3; i++ {
		assert.Equal(t, points[i].PeriodKey, extended[i].PeriodKey)
		assert.Nil(t, extended[i].Forecast)
		require.NotNil(t, extended[i].Value)
	}

	// The trend continues at +10 per month on a fresh calendar axis
	wantKeys := []string{"2026-04", "2026-05", "2026-06", "2026-07", "2026-08", "2026-09"}
	wantForecast := []int64{130, 140, 150, 160, 170, 180}
	for i, point := range extended[3:] {
		assert.Equal(t, wantKeys[i], point.PeriodKey)
		assert.Nil(t, point.Value, "forecast points carry no real value")
		require.NotNil(t, point.Forecast)
		assert.True(t, point.Forecast.Equal(decimal.NewFromInt(wantForecast[i])),
			"month %s: expected %d, got %s", point.PeriodKey, wantForecast[i], point.Forecast)
	}
}

func TestExtend_GapsInsideTheSeriesDoNotBreakTheFit(t *testing.T) {
	// Built from snapshots with a hole in February: the fit runs over the
	// three real values and the projection continues after April
	companyID := uuid.New()
	snapshots := []*domain.Snapshot{
		snapshotFor(companyID, domain.NewMonth(2026, time.January), map[domain.MetricKey]string{domain.MetricMRR: "100"}),
		snapshotFor(companyID, domain.NewMonth(2026, time.March), map[domain.MetricKey]string{domain.MetricMRR: "110"}),
		snapshotFor(companyID, domain.NewMonth(2026, time.April), map[domain.MetricKey]string{domain.MetricMRR: "120"}),
	}

	points := Build(snapshots, domain.MetricMRR, Options{AllowNegative: true})
	require.Len(t, points, 4)
	assert.Nil(t, points[1].Value)

	extended := Extend(points, ForecastOptions{MonthsAhead: 1})

	require.Len(t, extended, 5)
	assert.Equal(t, "2026-05", extended[4].PeriodKey)
	require.NotNil(t, extended[4].Forecast)
	assert.True(t, extended[4].Forecast.Equal(decimal.NewFromInt(130)))
}

func TestExtend_OnlyRecentPointsShapeTheTrend(t *testing.T) {
	// One ancient outlier followed by twelve clean +10 steps: the outlier
	// falls outside the fit window and must not bend the projection
	values := []string{"999999"}
	for i := 0; i < 12; i++ {
		values = append(values, decimal.NewFromInt(int64(100+10*i)).String())
	}
	points := linearSeries(domain.NewMonth(2025, time.January), values)

	extended := Extend(points, ForecastOptions{MonthsAhead: 1})

	require.Len(t, extended, 14)
	require.NotNil(t, extended[13].Forecast)
	assert.True(t, extended[13].Forecast.Equal(decimal.NewFromInt(220)),
		"expected 220, got %s", extended[13].Forecast)
}

func TestExtend_CustomMonthsAhead(t *testing.T) {
	points := linearSeries(domain.NewMonth(2026, time.January), []string{"100", "110", "120"})

	extended := Extend(points, ForecastOptions{MonthsAhead: 2})

	assert.Len(t, extended, 5)
}

func TestExtend_DoesNotMutateTheInput(t *testing.T) {
	points := linearSeries(domain.NewMonth(2026, time.January), []string{"100", "110", "120"})

	extended := Extend(points, ForecastOptions{})

	require.Len(t, points, 3, "input length must not change")
	for _, point := range points {
		assert.Nil(t, point.Forecast)
		assert.NotNil(t, point.Value)
	}
	require.Len(t, extended, 9)
}

func TestExtend_DegenerateFitReturnsUnchanged(t *testing.T) {
	points := linearSeries(domain.NewMonth(2026, time.January), []string{"100"})

	extended := Extend(points, ForecastOptions{MinPoints: 1})

	require.Len(t, extended, 1, "a single point cannot define a line")
	assert.Nil(t, extended[0].Forecast)
}

func TestExtend_RoundsForecastToTwoDecimals(t *testing.T) {
	points := linearSeries(domain.NewMonth(2026, time.January), []string{"100", "101", "103"})

	extended := Extend(points, ForecastOptions{MonthsAhead: 1})

	require.Len(t, extended, 4)
	require.NotNil(t, extended[3].Forecast)
	// slope = 1.5, intercept = 99.8333..., next index 3 projects 104.3333...
	assert.True(t, extended[3].Forecast.Equal(decimal.RequireFromString("104.33")),
		"expected 104.33, got %s", extended[3].Forecast)
}

func TestExtend_EmptySeriesStaysEmpty(t *testing.T) {
	extended := Extend([]domain.ChartPoint{}, ForecastOptions{})
	assert.Empty(t, extended)
}
