package charts

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/T1mvae/fm-forecast/internal/forecast"
)

func tradingDates(n int) []time.Time {
	dates := make([]time.Time, n)
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = d
		d = d.AddDate(0, 0, 1)
	}
	return dates
}

func TestPriceChart(t *testing.T) {
	b := NewBuilder(zerolog.Nop())

	n := 120
	dates := tradingDates(n)
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i) + 5*math.Sin(float64(i)/7)
	}

	chart, err := b.Price(dates, closes)
	require.NoError(t, err)

	assert.Equal(t, "price", chart.Name)
	require.Len(t, chart.Series["close"], n)
	assert.Equal(t, "2024-01-02", chart.Series["close"][0].Time)

	// Overlays drop their warmup prefix
	assert.Len(t, chart.Series["sma20"], n-19)
	assert.Len(t, chart.Series["ema50"], n-49)
	assert.Len(t, chart.Series["rsi14"], n-14)

	for _, p := range chart.Series["rsi14"] {
		assert.GreaterOrEqual(t, p.Value, 0.0)
		assert.LessOrEqual(t, p.Value, 100.0)
	}
}

func TestPriceChartShortSeriesSkipsOverlays(t *testing.T) {
	b := NewBuilder(zerolog.Nop())

	chart, err := b.Price(tradingDates(10), []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	require.NoError(t, err)

	assert.Len(t, chart.Series, 1)
	assert.Contains(t, chart.Series, "close")
}

func TestDecompositionChart(t *testing.T) {
	b := NewBuilder(zerolog.Nop())
	dates := tradingDates(5)

	chart, err := b.Decomposition(dates,
		[]float64{1, 2, 3, 4, 5},
		[]float64{0.1, -0.1, 0.1, -0.1, 0.1},
		[]float64{0, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Len(t, chart.Series, 3)

	_, err = b.Decomposition(dates, []float64{1}, []float64{1}, []float64{1})
	assert.Error(t, err)
}

func TestForecastVsActualChart(t *testing.T) {
	b := NewBuilder(zerolog.Nop())
	dates := tradingDates(6)
	actual := []float64{100, 101, 102, 103, 104, 105}

	fc := &forecast.Result{
		Model:   "Naive",
		Horizon: 4,
		Mean:    []float64{100, 100, 100, 100},
		Intervals: []forecast.Interval{
			{Level: 0.80, Lower: []float64{98, 97, 96, 95}, Upper: []float64{102, 103, 104, 105}},
			{Level: 0.95, Lower: []float64{96, 95, 94, 93}, Upper: []float64{104, 105, 106, 107}},
		},
	}

	chart, err := b.ForecastVsActual(dates, actual, fc)
	require.NoError(t, err)

	assert.Equal(t, "forecast_Naive", chart.Name)
	assert.Len(t, chart.Series["actual"], 6)
	assert.Len(t, chart.Series["forecast"], 4)
	require.Contains(t, chart.Bands, "80%")
	require.Contains(t, chart.Bands, "95%")
	assert.Len(t, chart.Bands["95%"], 4)
	assert.Equal(t, 96.0, chart.Bands["95%"][0].Lower)

	fc.Horizon = 10
	_, err = b.ForecastVsActual(dates, actual, fc)
	assert.Error(t, err)
}

func TestResidualACFChart(t *testing.T) {
	b := NewBuilder(zerolog.Nop())

	residuals := []float64{0.5, -0.3, 0.2, -0.6, 0.4, -0.1, 0.3, -0.2, 0.1, -0.4, 0.6, -0.5}
	chart, err := b.ResidualACF("ARIMA(1,1,2)", residuals, 5)
	require.NoError(t, err)

	assert.Equal(t, "residual_acf_ARIMA(1,1,2)", chart.Name)
	pts := chart.Series["acf"]
	require.Len(t, pts, 6)
	assert.Equal(t, "0", pts[0].Time)
	assert.InDelta(t, 1.0, pts[0].Value, 1e-12)

	_, err = b.ResidualACF("x", residuals, 0)
	assert.Error(t, err)
}
