package evaluate

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeMetrics(t *testing.T) {
	train := []float64{10, 11, 12, 13, 14}

	t.Run("exact forecast scores zero", func(t *testing.T) {
		actual := []float64{15, 16, 17}
		m, err := Compute(actual, actual, train)
		require.NoError(t, err)

		assert.Zero(t, m.MAE)
		assert.Zero(t, m.RMSE)
		assert.Zero(t, m.MAPE)
		assert.Zero(t, m.MASE)
		assert.Zero(t, m.TheilU)
	})

	t.Run("known errors", func(t *testing.T) {
		actual := []float64{100, 100}
		predicted := []float64{90, 110}
		m, err := Compute(actual, predicted, train)
		require.NoError(t, err)

		assert.InDelta(t, 10, m.MAE, 1e-12)
		assert.InDelta(t, 10, m.RMSE, 1e-12)
		assert.InDelta(t, 10, m.MAPE, 1e-12)
		// Naive in-sample steps in train are all 1, so MASE equals MAE
		assert.InDelta(t, 10, m.MASE, 1e-12)

		denom := math.Sqrt((90.0*90+110*110)/2) + 100
		assert.InDelta(t, 10/denom, m.TheilU, 1e-12)
	})

	t.Run("naive-equivalent errors give MASE one", func(t *testing.T) {
		actual := []float64{15, 16}
		predicted := []float64{14, 15}
		m, err := Compute(actual, predicted, train)
		require.NoError(t, err)
		assert.InDelta(t, 1, m.MASE, 1e-12)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := Compute([]float64{1, 2}, []float64{1}, train)
		assert.Error(t, err)
	})

	t.Run("constant training series has no MASE scale", func(t *testing.T) {
		_, err := Compute([]float64{1}, []float64{1}, []float64{5, 5, 5})
		assert.Error(t, err)
	})

	t.Run("zero actuals drop out of MAPE", func(t *testing.T) {
		m, err := Compute([]float64{0, 100}, []float64{1, 90}, train)
		require.NoError(t, err)
		assert.InDelta(t, 10, m.MAPE, 1e-12)
	})
}

func TestRank(t *testing.T) {
	entries := []Entry{
		{Model: "A", Metrics: &Metrics{RMSE: 3}},
		{Model: "B", Metrics: &Metrics{RMSE: 1}},
		{Model: "C", Metrics: nil},
		{Model: "D", Metrics: &Metrics{RMSE: 2}},
		{Model: "E", Metrics: &Metrics{RMSE: 2}},
	}

	ranked := Rank(entries)
	require.Len(t, ranked, 5)

	assert.Equal(t, "B", ranked[0].Model)
	assert.Equal(t, 1, ranked[0].Rank)
	// Tied RMSE keeps insertion order
	assert.Equal(t, "D", ranked[1].Model)
	assert.Equal(t, "E", ranked[2].Model)
	assert.Equal(t, "A", ranked[3].Model)
	// A model without metrics sorts last and gets no rank
	assert.Equal(t, "C", ranked[4].Model)
	assert.Equal(t, 0, ranked[4].Rank)

	// Input order untouched
	assert.Equal(t, "A", entries[0].Model)
}

func TestRankIsDeterministic(t *testing.T) {
	entries := []Entry{
		{Model: "X", Metrics: &Metrics{RMSE: 1}},
		{Model: "Y", Metrics: &Metrics{RMSE: 1}},
		{Model: "Z", Metrics: &Metrics{RMSE: 1}},
	}
	first := Rank(entries)
	second := Rank(entries)
	for i := range first {
		assert.Equal(t, first[i].Model, second[i].Model)
		assert.Equal(t, first[i].Rank, second[i].Rank)
	}
}

func TestCrossValidate(t *testing.T) {
	t.Run("naive forecaster on a line", func(t *testing.T) {
		values := make([]float64, 30)
		for i := range values {
			values[i] = float64(i)
		}

		naive := func(train []float64, h int) ([]float64, error) {
			out := make([]float64, h)
			for i := range out {
				out[i] = train[len(train)-1]
			}
			return out, nil
		}

		result, err := CrossValidate(values, 10, naive)
		require.NoError(t, err)
		assert.Equal(t, 20, result.Folds)
		assert.Zero(t, result.Failed)
		// Each one-step naive error on a unit slope line is exactly 1
		assert.InDelta(t, 1, result.MAE, 1e-12)
		assert.InDelta(t, 1, result.RMSE, 1e-12)
	})

	t.Run("failed folds are skipped", func(t *testing.T) {
		values := []float64{1, 2, 3, 4, 5, 6, 7, 8}
		calls := 0
		flaky := func(train []float64, h int) ([]float64, error) {
			calls++
			if calls%2 == 0 {
				return nil, errors.New("no convergence")
			}
			return []float64{train[len(train)-1]}, nil
		}

		result, err := CrossValidate(values, 4, flaky)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Folds)
		assert.Equal(t, 2, result.Failed)
	})

	t.Run("too few observations", func(t *testing.T) {
		_, err := CrossValidate([]float64{1, 2, 3}, 3, nil)
		assert.Error(t, err)
	})
}
