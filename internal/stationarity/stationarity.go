// Package stationarity decides how many rounds of differencing a series
// needs by running ADF and KPSS jointly. The two tests have opposite null
// hypotheses, so the series only counts as stationary when both agree.
package stationarity

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sartorproj/goarima/stats"
	"github.com/sartorproj/goarima/timeseries"
)

// MaxDifferencingOrder bounds the difference-and-retest loop
const MaxDifferencingOrder = 2

// TestResult holds one unit-root test outcome
type TestResult struct {
	Statistic  float64 `json:"statistic"`
	PValue     float64 `json:"p_value"`
	Lags       int     `json:"lags"`
	Stationary bool    `json:"stationary"`
}

// Assessment combines the ADF and KPSS verdicts for one series
type Assessment struct {
	Order      int        `json:"order"` // differencing rounds applied before this assessment
	ADF        TestResult `json:"adf"`
	KPSS       TestResult `json:"kpss"`
	Stationary bool       `json:"stationary"` // joint verdict: both tests agree
}

// Outcome is the result of the difference-until-stationary policy
type Outcome struct {
	Order           int          `json:"order"`             // differencing rounds applied
	Assessments     []Assessment `json:"assessments"`       // one per tested order, 0 first
	MaxOrderReached bool         `json:"max_order_reached"` // true when the loop gave up
	Series          *timeseries.Series
}

// Assess runs both unit-root tests on a series.
// ADF's null is "has a unit root"; KPSS's null is "is stationary".
func Assess(series *timeseries.Series, order int) (*Assessment, error) {
	adf := stats.ADF(series, 0)
	if adf == nil {
		return nil, fmt.Errorf("ADF test failed: series too short (%d observations)", series.Len())
	}

	kpss := stats.KPSS(series, "c", 0)
	if kpss == nil {
		return nil, fmt.Errorf("KPSS test failed: series too short (%d observations)", series.Len())
	}

	return &Assessment{
		Order: order,
		ADF: TestResult{
			Statistic:  adf.Statistic,
			PValue:     adf.PValue,
			Lags:       adf.Lags,
			Stationary: adf.IsStationary,
		},
		KPSS: TestResult{
			Statistic:  kpss.Statistic,
			PValue:     kpss.PValue,
			Lags:       kpss.Lags,
			Stationary: kpss.IsStationary,
		},
		Stationary: adf.IsStationary && kpss.IsStationary,
	}, nil
}

// DifferenceUntilStationary applies first differencing until both tests agree
// the series is stationary, or MaxDifferencingOrder is reached. In the latter
// case MaxOrderReached is set and the maximally differenced series is
// returned so downstream stages can proceed.
func DifferenceUntilStationary(series *timeseries.Series, log zerolog.Logger) (*Outcome, error) {
	current := series
	outcome := &Outcome{}

	for order := 0; ; order++ {
		assessment, err := Assess(current, order)
		if err != nil {
			return nil, fmt.Errorf("stationarity assessment at order %d: %w", order, err)
		}
		outcome.Assessments = append(outcome.Assessments, *assessment)

		log.Debug().
			Int("order", order).
			Float64("adf_p", assessment.ADF.PValue).
			Float64("kpss_p", assessment.KPSS.PValue).
			Bool("stationary", assessment.Stationary).
			Msg("Unit-root tests")

		if assessment.Stationary {
			outcome.Order = order
			outcome.Series = current
			return outcome, nil
		}

		if order >= MaxDifferencingOrder {
			log.Warn().
				Int("max_order", MaxDifferencingOrder).
				Msg("Series still non-stationary at maximum differencing order, proceeding anyway")
			outcome.Order = order
			outcome.MaxOrderReached = true
			outcome.Series = current
			return outcome, nil
		}

		current = current.Diff()
	}
}
