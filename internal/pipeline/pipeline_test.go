package pipeline

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/T1mvae/fm-forecast/internal/clients/alphavantage"
	"github.com/T1mvae/fm-forecast/internal/config"
	"github.com/T1mvae/fm-forecast/internal/models"
)

type stubFetcher struct {
	prices []alphavantage.DailyPrice
	err    error
}

func (s *stubFetcher) GetDailyAdjusted(_ context.Context, _ string, _, _ time.Time) ([]alphavantage.DailyPrice, error) {
	return s.prices, s.err
}

func syntheticPrices(n int, value func(i int) float64) []alphavantage.DailyPrice {
	prices := make([]alphavantage.DailyPrice, 0, n)
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		v := value(i)
		prices = append(prices, alphavantage.DailyPrice{
			Date:          d,
			Open:          v,
			High:          v,
			Low:           v,
			Close:         v,
			AdjustedClose: v,
			Volume:        1000,
		})
		d = d.AddDate(0, 0, 1)
	}
	return prices
}

func testConfig() *config.Config {
	return &config.Config{
		DataDir:          "data",
		Ticker:           "TEST",
		StartDate:        "2024-01-01",
		EndDate:          "2024-12-31",
		Horizon:          12,
		SeasonalPeriod:   12,
		LogLambdaEpsilon: 0.15,
	}
}

func TestRunFullStudy(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	fetcher := &stubFetcher{
		prices: syntheticPrices(100, func(i int) float64 {
			return 100 + 0.3*float64(i) +
				4*math.Sin(2*math.Pi*float64(i)/12) +
				rng.NormFloat64()
		}),
	}

	p := New(testConfig(), fetcher, nil, zerolog.Nop())
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 100, report.Observations)
	assert.Equal(t, 88, report.TrainSize)
	assert.Equal(t, 12, report.TestSize)
	assert.Equal(t, report.Observations, report.TrainSize+report.TestSize)

	// The analyzed series is persisted on every scale
	require.NotNil(t, report.Series)
	assert.Len(t, report.Series.Dates, 100)
	assert.Len(t, report.Series.Raw, 100)
	require.Len(t, report.Series.Log, 100)
	assert.InDelta(t, math.Log(report.Series.Raw[0]), report.Series.Log[0], 1e-12)
	require.Len(t, report.Series.Transformed, 100)

	// Positive series, so the transformed family is present
	require.NotNil(t, report.Transform)
	assert.Empty(t, report.TransformError)
	require.Len(t, report.Models, 15)
	assert.Contains(t, report.Models, models.IDArimaBoxCox)

	fitted := 0
	for id, record := range report.Models {
		if record.FitError != "" {
			continue
		}
		fitted++

		require.NotNil(t, record.Metrics, "model %s", id)
		for name, v := range map[string]float64{
			"mae":     record.Metrics.MAE,
			"rmse":    record.Metrics.RMSE,
			"mape":    record.Metrics.MAPE,
			"mase":    record.Metrics.MASE,
			"theil_u": record.Metrics.TheilU,
		} {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "model %s metric %s", id, name)
		}

		require.NotNil(t, record.Forecast, "model %s", id)
		assert.Len(t, record.Forecast.Mean, 12, "model %s", id)
		assert.Len(t, record.Forecast.Intervals, 2, "model %s", id)
		assert.Len(t, record.Forecast.Dates, 12, "model %s", id)

		require.NotNil(t, record.Diagnostics, "model %s", id)
		assert.Positive(t, record.Diagnostics.Summary.N, "model %s", id)
	}
	assert.GreaterOrEqual(t, fitted, 13)

	// Ranking covers every candidate, best first
	require.Len(t, report.Ranking, 15)
	require.NotNil(t, report.Ranking[0].Metrics)
	assert.Equal(t, 1, report.Ranking[0].Rank)
	for i := 1; i < len(report.Ranking); i++ {
		if report.Ranking[i].Metrics == nil {
			continue
		}
		assert.GreaterOrEqual(t, report.Ranking[i].Metrics.RMSE, report.Ranking[i-1].Metrics.RMSE)
	}

	require.NotNil(t, report.Stationarity)
	assert.LessOrEqual(t, report.Stationarity.Order, 2)

	require.NotNil(t, report.Trend)
	assert.True(t, report.Trend.Linear.Significant(), "strong upward drift should be detected")

	// Smoothing and benchmark families carry cross validation results
	assert.NotNil(t, report.Models[models.IDNaive].CV)
	assert.NotNil(t, report.Models[models.IDMean].CV)
	assert.Nil(t, report.Models[models.IDArima112].CV)

	assert.NotEmpty(t, report.Charts)
	names := make(map[string]bool)
	for _, c := range report.Charts {
		names[c.Name] = true
	}
	assert.True(t, names["price"])
	assert.True(t, names["decomposition"])
}

func TestRunWithNonPositiveValueDropsTransformFamily(t *testing.T) {
	fetcher := &stubFetcher{
		prices: syntheticPrices(100, func(i int) float64 {
			if i == 40 {
				return 0
			}
			return 50 + float64(i)
		}),
	}

	p := New(testConfig(), fetcher, nil, zerolog.Nop())
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.TransformError)
	assert.Nil(t, report.Transform)

	// No log or Box-Cox scale exists, so differencing falls back to the
	// raw series and still produces a verdict
	require.NotNil(t, report.Series)
	assert.Nil(t, report.Series.Log)
	assert.Nil(t, report.Series.Transformed)
	assert.NotNil(t, report.Stationarity)

	// Only the transformed family is absent, everything else still runs
	require.Len(t, report.Models, 14)
	assert.NotContains(t, report.Models, models.IDArimaBoxCox)
	assert.Contains(t, report.Models, models.IDArimaAuto)
	assert.Contains(t, report.Models, models.IDNaive)
}

func TestRunDriftNailsPerfectLine(t *testing.T) {
	fetcher := &stubFetcher{
		prices: syntheticPrices(100, func(i int) float64 {
			return 100 + 0.5*float64(i)
		}),
	}

	p := New(testConfig(), fetcher, nil, zerolog.Nop())
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	drift := report.Models[models.IDDrift]
	require.NotNil(t, drift)
	require.Empty(t, drift.FitError)
	require.NotNil(t, drift.Metrics)
	assert.InDelta(t, 0, drift.Metrics.MAE, 1e-9)
	assert.InDelta(t, 0, drift.Metrics.RMSE, 1e-9)
}

func TestRunFetchFailureIsFatal(t *testing.T) {
	p := New(testConfig(), &stubFetcher{err: errors.New("boom")}, nil, zerolog.Nop())

	_, err := p.Run(context.Background())
	require.Error(t, err)

	var fetchErr *DataFetchError
	assert.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "TEST", fetchErr.Ticker)
}

func TestRunAcceptsSeriesJustLongerThanHorizon(t *testing.T) {
	fetcher := &stubFetcher{
		prices: syntheticPrices(25, func(i int) float64 { return 100 + float64(i) }),
	}

	p := New(testConfig(), fetcher, nil, zerolog.Nop())
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 25, report.Observations)
	assert.Equal(t, 13, report.TrainSize)
	assert.Equal(t, 12, report.TestSize)

	// Thirteen training points rule out the seasonal models, but the
	// benchmarks need almost no history and must survive
	require.Contains(t, report.Models, models.IDNaive)
	assert.Empty(t, report.Models[models.IDNaive].FitError)
}

func TestRunRejectsShortSeries(t *testing.T) {
	fetcher := &stubFetcher{
		prices: syntheticPrices(12, func(i int) float64 { return 100 + float64(i) }),
	}

	p := New(testConfig(), fetcher, nil, zerolog.Nop())
	_, err := p.Run(context.Background())

	var fetchErr *DataFetchError
	assert.ErrorAs(t, err, &fetchErr)
}

func TestRunInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Horizon = 0

	p := New(cfg, &stubFetcher{}, nil, zerolog.Nop())
	_, err := p.Run(context.Background())
	assert.Error(t, err)
}
