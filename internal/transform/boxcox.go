// Package transform implements the Box-Cox power transform used to
// stabilize the variance of a price series before model fitting.
package transform

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrNonPositive is returned when lambda estimation or the forward transform
// encounters a value <= 0.
var ErrNonPositive = errors.New("box-cox transform requires strictly positive values")

// DefaultLogEpsilon is the |lambda| threshold below which the transform is
// reported as equivalent to a natural log transform.
const DefaultLogEpsilon = 0.15

// Result describes an estimated transform parameter
type Result struct {
	Lambda        float64 `json:"lambda"`
	LogEquivalent bool    `json:"log_equivalent"`
}

// EstimateLambda estimates the Box-Cox lambda with Guerrero's method:
// the series is split into subseries of the given length and lambda is chosen
// to minimize the coefficient of variation of sd_i / mean_i^(1-lambda)
// across subseries. The search interval is [-1, 2].
func EstimateLambda(values []float64, groupLen int) (float64, error) {
	if len(values) < 4 {
		return 0, fmt.Errorf("need at least 4 observations to estimate lambda, got %d", len(values))
	}
	for _, v := range values {
		if v <= 0 {
			return 0, ErrNonPositive
		}
	}

	if groupLen < 2 {
		groupLen = 2
	}
	// Guerrero needs at least two complete subseries
	if len(values) < 2*groupLen {
		groupLen = len(values) / 2
	}

	nGroups := len(values) / groupLen
	means := make([]float64, 0, nGroups)
	sds := make([]float64, 0, nGroups)
	for g := 0; g < nGroups; g++ {
		chunk := values[g*groupLen : (g+1)*groupLen]
		m := stat.Mean(chunk, nil)
		s := stat.StdDev(chunk, nil)
		if m <= 0 {
			return 0, ErrNonPositive
		}
		means = append(means, m)
		sds = append(sds, s)
	}

	objective := func(lambda float64) float64 {
		ratios := make([]float64, len(means))
		for i := range means {
			ratios[i] = sds[i] / math.Pow(means[i], 1-lambda)
		}
		m := stat.Mean(ratios, nil)
		if m == 0 {
			return math.Inf(1)
		}
		return stat.StdDev(ratios, nil) / m
	}

	return goldenSection(objective, -1, 2, 1e-6), nil
}

// goldenSection minimizes f on [a, b] to the given tolerance.
// gonum/optimize targets multivariate gradient problems; a scalar
// golden-section search is the standard tool for this one-dimensional,
// derivative-free criterion.
func goldenSection(f func(float64) float64, a, b, tol float64) float64 {
	const invPhi = 0.6180339887498949

	x1 := b - invPhi*(b-a)
	x2 := a + invPhi*(b-a)
	f1 := f(x1)
	f2 := f(x2)

	for b-a > tol {
		if f1 < f2 {
			b = x2
			x2 = x1
			f2 = f1
			x1 = b - invPhi*(b-a)
			f1 = f(x1)
		} else {
			a = x1
			x1 = x2
			f1 = f2
			x2 = a + invPhi*(b-a)
			f2 = f(x2)
		}
	}

	return (a + b) / 2
}

// Forward applies the Box-Cox transform with the given lambda.
// Lambda exactly zero means a natural log transform.
func Forward(values []float64, lambda float64) ([]float64, error) {
	result := make([]float64, len(values))
	for i, v := range values {
		if v <= 0 {
			return nil, ErrNonPositive
		}
		if lambda == 0 {
			result[i] = math.Log(v)
		} else {
			result[i] = (math.Pow(v, lambda) - 1) / lambda
		}
	}
	return result, nil
}

// Inverse undoes the Box-Cox transform. It is the exact monotonic inverse,
// appropriate for quantities like prediction interval bounds.
func Inverse(values []float64, lambda float64) []float64 {
	result := make([]float64, len(values))
	for i, v := range values {
		if lambda == 0 {
			result[i] = math.Exp(v)
		} else {
			base := lambda*v + 1
			if base <= 0 {
				// Out of the transform's range; clamp to zero rather than NaN
				result[i] = 0
				continue
			}
			result[i] = math.Pow(base, 1/lambda)
		}
	}
	return result
}

// InverseMean undoes the transform for forecast means with a second-order
// bias adjustment using the forecast variance on the transformed scale.
// Interval bounds are quantiles and must use the plain Inverse instead.
func InverseMean(means, variances []float64, lambda float64) []float64 {
	result := make([]float64, len(means))
	for i, mu := range means {
		sigma2 := 0.0
		if i < len(variances) {
			sigma2 = variances[i]
		}
		if lambda == 0 {
			result[i] = math.Exp(mu) * (1 + sigma2/2)
			continue
		}
		base := lambda*mu + 1
		if base <= 0 {
			result[i] = 0
			continue
		}
		point := math.Pow(base, 1/lambda)
		result[i] = point * (1 + sigma2*(1-lambda)/(2*base*base))
	}
	return result
}

// IsLogEquivalent reports whether lambda is close enough to zero that the
// transform behaves like a log transform for reporting purposes.
func IsLogEquivalent(lambda, epsilon float64) bool {
	if epsilon <= 0 {
		epsilon = DefaultLogEpsilon
	}
	return math.Abs(lambda) < epsilon
}
