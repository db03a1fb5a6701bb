// Package forecast turns raw model predictions into reportable forecasts:
// h-step points with 80% and 95% intervals, back-transformed to the price
// scale when the model was fitted on a Box-Cox transformed series.
package forecast

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/T1mvae/fm-forecast/internal/models"
	"github.com/T1mvae/fm-forecast/internal/transform"
)

// Interval levels every forecast carries
var Levels = []float64{0.80, 0.95}

// Interval is one confidence band over the forecast horizon
type Interval struct {
	Level float64   `json:"level"`
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// Result is a complete h-step forecast on the price scale
type Result struct {
	Model     string      `json:"model"`
	Horizon   int         `json:"horizon"`
	Dates     []time.Time `json:"dates,omitempty"`
	Mean      []float64   `json:"mean"`
	Intervals []Interval  `json:"intervals"`
}

// Build produces the forecast for one fitted model. Interval bounds come
// from normal quantiles on the fit scale; the Box-Cox inverse is applied
// afterwards so the bounds stay valid quantiles of the price distribution,
// while the point forecast gets the mean bias adjustment.
func Build(fitted models.Fitted, h int) (*Result, error) {
	if h < 1 {
		return nil, errors.New("horizon must be at least 1")
	}

	pred, err := fitted.Predict(h)
	if err != nil {
		return nil, fmt.Errorf("failed to forecast with %s: %w", fitted.ID(), err)
	}
	if len(pred.Mean) != h || len(pred.SE) != h {
		return nil, fmt.Errorf("model %s returned %d points for horizon %d", fitted.ID(), len(pred.Mean), h)
	}

	result := &Result{
		Model:   fitted.ID(),
		Horizon: h,
	}

	for _, level := range Levels {
		z := distuv.UnitNormal.Quantile(0.5 + level/2)
		lower := make([]float64, h)
		upper := make([]float64, h)
		for i := 0; i < h; i++ {
			lower[i] = pred.Mean[i] - z*pred.SE[i]
			upper[i] = pred.Mean[i] + z*pred.SE[i]
		}
		result.Intervals = append(result.Intervals, Interval{Level: level, Lower: lower, Upper: upper})
	}

	if pred.Lambda == nil {
		result.Mean = pred.Mean
		return result, nil
	}

	lambda := *pred.Lambda
	variances := make([]float64, h)
	for i, se := range pred.SE {
		variances[i] = se * se
	}
	result.Mean = transform.InverseMean(pred.Mean, variances, lambda)
	for k := range result.Intervals {
		result.Intervals[k].Lower = transform.Inverse(result.Intervals[k].Lower, lambda)
		result.Intervals[k].Upper = transform.Inverse(result.Intervals[k].Upper, lambda)
	}

	return result, nil
}

// WithDates attaches forecast dates produced by advancing from the last
// training date by business days
func (r *Result) WithDates(lastDate time.Time) *Result {
	dates := make([]time.Time, r.Horizon)
	d := lastDate
	for i := 0; i < r.Horizon; i++ {
		d = nextBusinessDay(d)
		dates[i] = d
	}
	r.Dates = dates
	return r
}

func nextBusinessDay(d time.Time) time.Time {
	d = d.AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// Interval returns the band at the requested level, or nil
func (r *Result) Interval(level float64) *Interval {
	for i := range r.Intervals {
		if r.Intervals[i].Level == level {
			return &r.Intervals[i]
		}
	}
	return nil
}
