package models

import (
	"errors"
	"fmt"
	"math"

	"github.com/sartorproj/goarima/arima"
	"github.com/sartorproj/goarima/autoarima"
	"github.com/sartorproj/goarima/timeseries"

	"github.com/T1mvae/fm-forecast/internal/transform"
)

// arimaModel adapts a fitted non-seasonal ARIMA model. Forecast standard
// errors come from the psi-weight recursion on the differenced scale,
// integrated back through the d differencing operators.
type arimaModel struct {
	id     string
	model  *arima.Model
	lambda *float64
}

func fitAutoArima(train *timeseries.Series) (Fitted, error) {
	cfg := autoarima.DefaultConfig()
	result, err := autoarima.AutoARIMA(train, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to run auto ARIMA search: %w", err)
	}
	if result.Model == nil {
		return nil, errors.New("auto ARIMA search converged on no model")
	}
	return &arimaModel{id: IDArimaAuto, model: result.Model}, nil
}

func fitManualArima(id string, p, d, q int) func(*timeseries.Series) (Fitted, error) {
	return func(train *timeseries.Series) (Fitted, error) {
		m := arima.New(p, d, q)
		if err := m.Fit(train); err != nil {
			return nil, fmt.Errorf("failed to fit ARIMA(%d,%d,%d): %w", p, d, q, err)
		}
		return &arimaModel{id: id, model: m}, nil
	}
}

// fitBoxCoxArima runs the auto ARIMA search on the Box-Cox transformed
// series. Its predictions stay on the transformed scale and carry the
// lambda needed to invert them.
func fitBoxCoxArima(lambda float64) func(*timeseries.Series) (Fitted, error) {
	return func(train *timeseries.Series) (Fitted, error) {
		transformed, err := transform.Forward(train.Values, lambda)
		if err != nil {
			return nil, fmt.Errorf("failed to transform series: %w", err)
		}
		ts, err := timeseries.NewWithTimestamps(train.Timestamps, transformed)
		if err != nil {
			ts = timeseries.New(transformed)
		}

		result, err := autoarima.AutoARIMA(ts, autoarima.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to run auto ARIMA search on transformed series: %w", err)
		}
		if result.Model == nil {
			return nil, errors.New("auto ARIMA search converged on no model")
		}
		return &arimaModel{id: IDArimaBoxCox, model: result.Model, lambda: &lambda}, nil
	}
}

func (a *arimaModel) ID() string { return a.id }

func (a *arimaModel) Kind() Kind { return KindArima }

func (a *arimaModel) Params() map[string]float64 {
	params := map[string]float64{
		"p":         float64(a.model.Order.P),
		"d":         float64(a.model.Order.D),
		"q":         float64(a.model.Order.Q),
		"intercept": a.model.Intercept,
		"variance":  a.model.Variance,
		"aic":       a.model.AIC,
		"aicc":      a.model.AICc,
		"bic":       a.model.BIC,
		"loglik":    a.model.LogLik,
	}
	for i, phi := range a.model.ARCoeffs {
		params[fmt.Sprintf("ar%d", i+1)] = phi
	}
	for i, theta := range a.model.MACoeffs {
		params[fmt.Sprintf("ma%d", i+1)] = theta
	}
	if a.lambda != nil {
		params["lambda"] = *a.lambda
	}
	return params
}

func (a *arimaModel) Residuals() []float64 { return a.model.Residuals() }

func (a *arimaModel) FitDF() int { return a.model.Order.P + a.model.Order.Q }

func (a *arimaModel) Predict(h int) (*Prediction, error) {
	points, err := a.model.Predict(h)
	if err != nil {
		return nil, fmt.Errorf("failed to predict %d steps: %w", h, err)
	}

	psi := psiWeights(a.model.ARCoeffs, a.model.MACoeffs, h)
	psi = integratePsi(psi, a.model.Order.D)

	se := make([]float64, h)
	cum := 0.0
	for i := 0; i < h; i++ {
		cum += psi[i] * psi[i]
		se[i] = math.Sqrt(a.model.Variance * cum)
	}

	return &Prediction{Mean: points, SE: se, Lambda: a.lambda}, nil
}

// psiWeights expands the ARMA(p,q) process into its MA(infinity)
// representation psi_0..psi_{h-1}, with psi_0 = 1.
func psiWeights(ar, ma []float64, h int) []float64 {
	psi := make([]float64, h)
	if h == 0 {
		return psi
	}
	psi[0] = 1
	for j := 1; j < h; j++ {
		v := 0.0
		if j <= len(ma) {
			v = ma[j-1]
		}
		for i := 1; i <= len(ar) && i <= j; i++ {
			v += ar[i-1] * psi[j-i]
		}
		psi[j] = v
	}
	return psi
}

// integratePsi converts psi weights on the d-times differenced scale to
// weights on the original scale. Each integration is a cumulative sum.
func integratePsi(psi []float64, d int) []float64 {
	out := psi
	for k := 0; k < d; k++ {
		next := make([]float64, len(out))
		cum := 0.0
		for i, v := range out {
			cum += v
			next[i] = cum
		}
		out = next
	}
	return out
}
