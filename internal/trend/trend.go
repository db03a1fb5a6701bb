// Package trend characterizes the deterministic structure of a series:
// a least-squares line against a time index, and a seasonal decomposition.
// Both are descriptive and never gate downstream pipeline stages.
package trend

import (
	"fmt"
	"math"

	"github.com/sartorproj/goarima/stats"
	"github.com/sartorproj/goarima/timeseries"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// LinearFit describes an OLS line fit against the integer time index 0..n-1
type LinearFit struct {
	Intercept   float64 `json:"intercept"`
	Slope       float64 `json:"slope"`
	RSquared    float64 `json:"r_squared"`
	SlopeStdErr float64 `json:"slope_std_err"`
	TStatistic  float64 `json:"t_statistic"`
	PValue      float64 `json:"p_value"` // two-sided test of slope = 0
	N           int     `json:"n"`
}

// Significant reports whether the slope differs from zero at the 5% level
func (f *LinearFit) Significant() bool {
	return f.PValue < 0.05
}

// FitLinear fits y = a + b*t by ordinary least squares over t = 0..n-1
func FitLinear(values []float64) (*LinearFit, error) {
	n := len(values)
	if n < 3 {
		return nil, fmt.Errorf("need at least 3 observations for a trend line, got %d", n)
	}

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}

	alpha, beta := stat.LinearRegression(xs, values, nil, false)
	r2 := stat.RSquared(xs, values, nil, alpha, beta)

	// Standard error of the slope
	var sse, sxx float64
	xMean := stat.Mean(xs, nil)
	for i := range xs {
		resid := values[i] - alpha - beta*xs[i]
		sse += resid * resid
		dx := xs[i] - xMean
		sxx += dx * dx
	}
	if sxx == 0 {
		return nil, fmt.Errorf("degenerate time index")
	}

	se := math.Sqrt(sse / float64(n-2) / sxx)

	tStat := math.Inf(1)
	pValue := 0.0
	if se > 0 {
		tStat = beta / se
		tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
		pValue = 2 * tDist.Survival(math.Abs(tStat))
	}

	return &LinearFit{
		Intercept:   alpha,
		Slope:       beta,
		RSquared:    r2,
		SlopeStdErr: se,
		TStatistic:  tStat,
		PValue:      pValue,
		N:           n,
	}, nil
}

// Decomposition holds the additive trend/seasonal/remainder components
type Decomposition struct {
	Trend     []float64 `json:"trend"`
	Seasonal  []float64 `json:"seasonal"`
	Remainder []float64 `json:"remainder"`
	Period    int       `json:"period"`
}

// Decompose splits a series into additive components via STL.
// Requires at least two full periods of data.
func Decompose(series *timeseries.Series, period int) (*Decomposition, error) {
	if series.Len() < 2*period {
		return nil, fmt.Errorf("decomposition needs at least %d observations for period %d, got %d",
			2*period, period, series.Len())
	}

	result := stats.STL(series, period, 2)
	if result == nil {
		return nil, fmt.Errorf("STL decomposition failed for period %d", period)
	}

	return &Decomposition{
		Trend:     result.Trend.Values,
		Seasonal:  result.Seasonal.Values,
		Remainder: result.Residual.Values,
		Period:    period,
	}, nil
}

// Report bundles the full trend/seasonality characterization of one series
type Report struct {
	Linear        *LinearFit     `json:"linear"`
	Decomposition *Decomposition `json:"decomposition,omitempty"`
}

// Analyze produces the descriptive report. A series too short for the
// decomposition still gets the linear fit; the decomposition is omitted.
func Analyze(series *timeseries.Series, period int) (*Report, error) {
	linear, err := FitLinear(series.Values)
	if err != nil {
		return nil, fmt.Errorf("linear trend fit: %w", err)
	}

	report := &Report{Linear: linear}

	if decomp, err := Decompose(series, period); err == nil {
		report.Decomposition = decomp
	}

	return report, nil
}
