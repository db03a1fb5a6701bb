// Package diagnostics runs residual adequacy checks on fitted models:
// the Ljung-Box portmanteau test for leftover autocorrelation and the
// Jarque-Bera test for residual normality.
package diagnostics

import (
	"errors"
	"fmt"
	"math"

	"github.com/sartorproj/goarima/stats"
	"github.com/sartorproj/goarima/timeseries"
	gstat "gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Alpha is the significance level every adequacy verdict uses
const Alpha = 0.05

// LjungBox is the portmanteau test outcome. Adequate means the null of
// no residual autocorrelation was not rejected at Alpha.
type LjungBox struct {
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	Lags      int     `json:"lags"`
	FitDF     int     `json:"fit_df"`
	Adequate  bool    `json:"adequate"`
}

// Normality is the Jarque-Bera test outcome on residual skewness and
// excess kurtosis
type Normality struct {
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	Skewness  float64 `json:"skewness"`
	Kurtosis  float64 `json:"kurtosis"`
	Normal    bool    `json:"normal"`
}

// Summary holds basic residual moments
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Report bundles all residual diagnostics for one model. Test fields are
// nil when that test could not be computed, with the reason recorded.
type Report struct {
	Summary   Summary    `json:"summary"`
	LjungBox  *LjungBox  `json:"ljung_box,omitempty"`
	Normality *Normality `json:"normality,omitempty"`
	Missing   []string   `json:"missing,omitempty"`
}

// Adequate reports whether the residuals pass the autocorrelation check.
// A missing test never counts as a pass.
func (r *Report) Adequate() bool {
	return r.LjungBox != nil && r.LjungBox.Adequate
}

// Analyze runs all diagnostics on one residual series. fitdf is the
// number of parameters the model estimated.
func Analyze(residuals []float64, fitdf int) (*Report, error) {
	if len(residuals) == 0 {
		return nil, errors.New("no residuals to analyze")
	}

	report := &Report{Summary: summarize(residuals)}

	lb, err := ljungBox(residuals, fitdf)
	if err != nil {
		report.Missing = append(report.Missing, fmt.Sprintf("ljung_box: %v", err))
	} else {
		report.LjungBox = lb
	}

	norm, err := jarqueBera(residuals)
	if err != nil {
		report.Missing = append(report.Missing, fmt.Sprintf("normality: %v", err))
	} else {
		report.Normality = norm
	}

	return report, nil
}

func summarize(residuals []float64) Summary {
	min, max := residuals[0], residuals[0]
	for _, v := range residuals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return Summary{
		N:      len(residuals),
		Mean:   gstat.Mean(residuals, nil),
		StdDev: gstat.StdDev(residuals, nil),
		Min:    min,
		Max:    max,
	}
}

// ljungBox tests residual autocorrelation at floor(sqrt(n)) lags, with
// the degrees of freedom reduced by the model's parameter count
func ljungBox(residuals []float64, fitdf int) (*LjungBox, error) {
	n := len(residuals)
	lags := int(math.Floor(math.Sqrt(float64(n))))
	if lags <= fitdf {
		lags = fitdf + 1
	}

	result := stats.LjungBox(timeseries.New(residuals), lags, fitdf)
	if result == nil {
		return nil, fmt.Errorf("series of %d residuals is too short", n)
	}

	return &LjungBox{
		Statistic: result.Statistic,
		PValue:    result.PValue,
		Lags:      result.Lags,
		FitDF:     fitdf,
		Adequate:  result.PValue >= Alpha,
	}, nil
}

func jarqueBera(residuals []float64) (*Normality, error) {
	n := len(residuals)
	if n < 8 {
		return nil, fmt.Errorf("series of %d residuals is too short", n)
	}

	mean := gstat.Mean(residuals, nil)
	m2, m3, m4 := 0.0, 0.0, 0.0
	for _, v := range residuals {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
		m4 += d * d * d * d
	}
	nf := float64(n)
	m2 /= nf
	m3 /= nf
	m4 /= nf

	if m2 == 0 {
		return nil, errors.New("residuals have zero variance")
	}

	skew := m3 / math.Pow(m2, 1.5)
	kurt := m4 / (m2 * m2)

	jb := nf / 6 * (skew*skew + (kurt-3)*(kurt-3)/4)
	chi2 := distuv.ChiSquared{K: 2}
	p := chi2.Survival(jb)

	return &Normality{
		Statistic: jb,
		PValue:    p,
		Skewness:  skew,
		Kurtosis:  kurt,
		Normal:    p >= Alpha,
	}, nil
}
