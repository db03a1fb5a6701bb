package models

import (
	"errors"
	"fmt"

	"github.com/sartorproj/goarima/autoarima"
	"github.com/sartorproj/goarima/sarima"
	"github.com/sartorproj/goarima/timeseries"
)

// z quantile backing the 95% interval the seasonal predictor reports,
// used to recover per-step standard errors from its bounds
const z95 = 1.959963984540054

type sarimaModel struct {
	model *sarima.Model
}

func fitAutoSarima(period int) func(*timeseries.Series) (Fitted, error) {
	return func(train *timeseries.Series) (Fitted, error) {
		if period < 2 {
			return nil, fmt.Errorf("seasonal period %d is too short for a seasonal model", period)
		}
		if train.Len() < 2*period {
			return nil, fmt.Errorf("need at least %d observations for seasonal period %d, have %d",
				2*period, period, train.Len())
		}

		cfg := autoarima.DefaultConfig()
		cfg.Seasonal = true
		cfg.SeasonalM = period

		result, err := autoarima.AutoARIMA(train, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to run seasonal auto ARIMA search: %w", err)
		}
		if result.SeasonalModel == nil {
			return nil, errors.New("seasonal auto ARIMA search converged on no model")
		}
		return &sarimaModel{model: result.SeasonalModel}, nil
	}
}

func (s *sarimaModel) ID() string { return IDSarimaAuto }

func (s *sarimaModel) Kind() Kind { return KindArima }

func (s *sarimaModel) Params() map[string]float64 {
	o := s.model.Order
	params := map[string]float64{
		"p": float64(o.P), "d": float64(o.D), "q": float64(o.Q),
		"sp": float64(o.SP), "sd": float64(o.SD), "sq": float64(o.SQ),
		"m":         float64(o.M),
		"intercept": s.model.Intercept,
		"variance":  s.model.Variance,
		"aic":       s.model.AIC,
		"aicc":      s.model.AICc,
		"bic":       s.model.BIC,
		"loglik":    s.model.LogLik,
	}
	for i, phi := range s.model.ARCoeffs {
		params[fmt.Sprintf("ar%d", i+1)] = phi
	}
	for i, theta := range s.model.MACoeffs {
		params[fmt.Sprintf("ma%d", i+1)] = theta
	}
	for i, phi := range s.model.SARCoeffs {
		params[fmt.Sprintf("sar%d", i+1)] = phi
	}
	for i, theta := range s.model.SMACoeffs {
		params[fmt.Sprintf("sma%d", i+1)] = theta
	}
	return params
}

func (s *sarimaModel) Residuals() []float64 { return s.model.Residuals() }

func (s *sarimaModel) FitDF() int {
	o := s.model.Order
	return o.P + o.Q + o.SP + o.SQ
}

func (s *sarimaModel) Predict(h int) (*Prediction, error) {
	points, _, upper, err := s.model.PredictWithInterval(h, 0.95)
	if err != nil {
		return nil, fmt.Errorf("failed to predict %d steps: %w", h, err)
	}

	se := make([]float64, h)
	for i := range se {
		se[i] = (upper[i] - points[i]) / z95
	}

	return &Prediction{Mean: points, SE: se}, nil
}
