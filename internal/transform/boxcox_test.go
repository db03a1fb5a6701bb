package transform

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardInverse_RoundTrip(t *testing.T) {
	values := []float64{0.5, 1, 2.5, 10, 42.42, 150.7, 999}

	for _, lambda := range []float64{-1, -0.5, 0, 0.33, 0.5, 1, 2} {
		transformed, err := Forward(values, lambda)
		require.NoError(t, err)

		back := Inverse(transformed, lambda)
		for i := range values {
			assert.InEpsilonf(t, values[i], back[i], 1e-6,
				"lambda=%v x=%v", lambda, values[i])
		}
	}
}

func TestForward_LambdaZeroIsLog(t *testing.T) {
	values := []float64{1, math.E, 10}

	transformed, err := Forward(values, 0)
	require.NoError(t, err)

	assert.InDelta(t, 0, transformed[0], 1e-12)
	assert.InDelta(t, 1, transformed[1], 1e-12)
	assert.InDelta(t, math.Log(10), transformed[2], 1e-12)
}

func TestForward_NonPositive(t *testing.T) {
	_, err := Forward([]float64{1, 2, -3}, 0.5)
	assert.ErrorIs(t, err, ErrNonPositive)

	_, err = Forward([]float64{1, 0, 3}, 0.5)
	assert.ErrorIs(t, err, ErrNonPositive)
}

func TestEstimateLambda_NonPositive(t *testing.T) {
	_, err := EstimateLambda([]float64{1, 2, 3, 0, 5, 6, 7, 8}, 4)
	assert.ErrorIs(t, err, ErrNonPositive)
}

func TestEstimateLambda_TooShort(t *testing.T) {
	_, err := EstimateLambda([]float64{1, 2, 3}, 2)
	assert.Error(t, err)
}

func TestEstimateLambda_WithinSearchInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	// Exponential growth with proportional noise: classic log-transform case
	values := make([]float64, 200)
	for i := range values {
		level := 10 * math.Exp(0.02*float64(i))
		values[i] = level * (1 + 0.05*rng.NormFloat64())
	}

	lambda, err := EstimateLambda(values, 20)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, lambda, -1.0)
	assert.LessOrEqual(t, lambda, 2.0)

	// For multiplicative noise lambda should land well below 1
	assert.Less(t, lambda, 0.8)
}

func TestEstimateLambda_StableSeriesPrefersNoTransform(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	// Constant level with additive noise: variance already stable
	values := make([]float64, 200)
	for i := range values {
		values[i] = 100 + rng.NormFloat64()
	}

	lambda, err := EstimateLambda(values, 20)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, lambda, -1.0)
	assert.LessOrEqual(t, lambda, 2.0)
}

func TestInverseMean_BiasAdjustment(t *testing.T) {
	means := []float64{math.Log(100)}

	// Zero variance: identical to plain inverse
	noVar := InverseMean(means, []float64{0}, 0)
	assert.InDelta(t, 100, noVar[0], 1e-9)

	// Positive variance pushes the mean up for the log transform
	withVar := InverseMean(means, []float64{0.04}, 0)
	assert.Greater(t, withVar[0], 100.0)
	assert.InDelta(t, 100*(1+0.02), withVar[0], 1e-9)
}

func TestIsLogEquivalent(t *testing.T) {
	assert.True(t, IsLogEquivalent(0, 0.15))
	assert.True(t, IsLogEquivalent(0.1, 0.15))
	assert.True(t, IsLogEquivalent(-0.14, 0.15))
	assert.False(t, IsLogEquivalent(0.2, 0.15))

	// Non-positive epsilon falls back to the default threshold
	assert.True(t, IsLogEquivalent(0.1, 0))
	assert.False(t, IsLogEquivalent(0.2, 0))
}
