package models

import (
	"errors"
	"fmt"
	"math"

	"github.com/sartorproj/goarima/stats"
	"github.com/sartorproj/goarima/timeseries"
)

// Additive exponential smoothing methods in ETS notation
const (
	methodANN = "ANN" // simple exponential smoothing
	methodAAN = "AAN" // Holt's linear trend
	methodAAA = "AAA" // Holt-Winters additive seasonal
)

// etsModel is an additive exponential smoothing model after one full
// smoothing pass over the training data
type etsModel struct {
	id     string
	method string

	alpha  float64
	beta   float64
	gamma  float64
	period int

	level    float64
	trend    float64
	seasonal []float64

	residuals []float64
	sigma2    float64
	aicc      float64
	n         int
}

type etsState struct {
	level    float64
	trend    float64
	seasonal []float64
}

// smoothPass runs the additive smoothing recursion over the whole series
// and returns the final state, the one-step residuals and their SSE.
func smoothPass(values []float64, method string, alpha, beta, gamma float64, period int) (etsState, []float64, float64, error) {
	n := len(values)
	var st etsState

	switch method {
	case methodANN:
		if n < 3 {
			return st, nil, 0, errors.New("need at least 3 observations")
		}
		st.level = values[0]
		residuals := make([]float64, 0, n-1)
		sse := 0.0
		for t := 1; t < n; t++ {
			e := values[t] - st.level
			residuals = append(residuals, e)
			sse += e * e
			st.level = alpha*values[t] + (1-alpha)*st.level
		}
		return st, residuals, sse, nil

	case methodAAN:
		if n < 4 {
			return st, nil, 0, errors.New("need at least 4 observations")
		}
		st.level = values[0]
		st.trend = values[1] - values[0]
		residuals := make([]float64, 0, n-1)
		sse := 0.0
		for t := 1; t < n; t++ {
			yhat := st.level + st.trend
			e := values[t] - yhat
			residuals = append(residuals, e)
			sse += e * e
			prevLevel := st.level
			st.level = alpha*values[t] + (1-alpha)*(st.level+st.trend)
			st.trend = beta*(st.level-prevLevel) + (1-beta)*st.trend
		}
		return st, residuals, sse, nil

	case methodAAA:
		if period < 2 {
			return st, nil, 0, fmt.Errorf("seasonal period %d is too short", period)
		}
		if n < 2*period+2 {
			return st, nil, 0, fmt.Errorf("need at least %d observations for seasonal period %d, have %d",
				2*period+2, period, n)
		}

		// Initial states from the first two full cycles
		mean1, mean2 := 0.0, 0.0
		for i := 0; i < period; i++ {
			mean1 += values[i]
			mean2 += values[period+i]
		}
		mean1 /= float64(period)
		mean2 /= float64(period)

		st.level = mean1
		st.trend = (mean2 - mean1) / float64(period)
		st.seasonal = make([]float64, period)
		for i := 0; i < period; i++ {
			st.seasonal[i] = values[i] - mean1
		}

		residuals := make([]float64, 0, n-period)
		sse := 0.0
		for t := period; t < n; t++ {
			idx := t % period
			yhat := st.level + st.trend + st.seasonal[idx]
			e := values[t] - yhat
			residuals = append(residuals, e)
			sse += e * e
			prevLevel := st.level
			st.level = alpha*(values[t]-st.seasonal[idx]) + (1-alpha)*(st.level+st.trend)
			st.trend = beta*(st.level-prevLevel) + (1-beta)*st.trend
			st.seasonal[idx] = gamma*(values[t]-st.level) + (1-gamma)*st.seasonal[idx]
		}
		return st, residuals, sse, nil
	}

	return st, nil, 0, fmt.Errorf("unknown smoothing method %q", method)
}

// fitEts fits one smoothing method, optimizing the given parameter grid
// by minimum SSE. Fixed parameters are passed as single-element grids.
func fitEts(id, method string, values []float64, alphas, betas, gammas []float64, period int) (*etsModel, error) {
	bestSSE := math.Inf(1)
	var best *etsModel

	for _, alpha := range alphas {
		for _, beta := range betas {
			for _, gamma := range gammas {
				st, residuals, sse, err := smoothPass(values, method, alpha, beta, gamma, period)
				if err != nil {
					return nil, fmt.Errorf("failed to fit %s: %w", method, err)
				}
				if sse >= bestSSE {
					continue
				}
				bestSSE = sse
				best = &etsModel{
					id:        id,
					method:    method,
					alpha:     alpha,
					beta:      beta,
					gamma:     gamma,
					period:    period,
					level:     st.level,
					trend:     st.trend,
					seasonal:  st.seasonal,
					residuals: residuals,
					n:         len(values),
				}
			}
		}
	}

	if best == nil {
		return nil, fmt.Errorf("no %s parameter combination converged", method)
	}

	m := float64(len(best.residuals))
	best.sigma2 = bestSSE / m
	k := float64(best.stateCount() + best.paramCount())
	aic := m*math.Log(bestSSE/m) + 2*k
	best.aicc = aic
	if m-k-1 > 0 {
		best.aicc = aic + 2*k*(k+1)/(m-k-1)
	}
	return best, nil
}

func (e *etsModel) paramCount() int {
	switch e.method {
	case methodANN:
		return 1
	case methodAAN:
		return 2
	default:
		return 3
	}
}

func (e *etsModel) stateCount() int {
	switch e.method {
	case methodANN:
		return 1
	case methodAAN:
		return 2
	default:
		return 2 + e.period
	}
}

func alphaGrid() []float64 {
	grid := make([]float64, 0, 19)
	for a := 0.05; a < 0.96; a += 0.05 {
		grid = append(grid, a)
	}
	return grid
}

func betaGrid() []float64 {
	return []float64{0.01, 0.05, 0.1, 0.15, 0.2, 0.3, 0.4, 0.5}
}

func gammaGrid() []float64 {
	return []float64{0.05, 0.1, 0.2, 0.3, 0.5}
}

func fitEtsANN(train *timeseries.Series) (Fitted, error) {
	return fitEts(IDEtsANN, methodANN, train.Values, alphaGrid(), []float64{0}, []float64{0}, 0)
}

func fitEtsAAN(train *timeseries.Series) (Fitted, error) {
	return fitEts(IDEtsAAN, methodAAN, train.Values, alphaGrid(), betaGrid(), []float64{0}, 0)
}

// fitEtsAuto fits every additive method the data supports and keeps the
// one with the lowest corrected AIC
func fitEtsAuto(period int) func(*timeseries.Series) (Fitted, error) {
	return func(train *timeseries.Series) (Fitted, error) {
		candidates := make([]*etsModel, 0, 3)

		ann, err := fitEts(IDEtsAuto, methodANN, train.Values, alphaGrid(), []float64{0}, []float64{0}, 0)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, ann)

		if aan, err := fitEts(IDEtsAuto, methodAAN, train.Values, alphaGrid(), betaGrid(), []float64{0}, 0); err == nil {
			candidates = append(candidates, aan)
		}

		if period >= 2 && train.Len() >= 2*period+2 {
			if aaa, err := fitEts(IDEtsAuto, methodAAA, train.Values, alphaGrid(), betaGrid(), gammaGrid(), period); err == nil {
				candidates = append(candidates, aaa)
			}
		}

		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.aicc < best.aicc {
				best = c
			}
		}
		return best, nil
	}
}

// Classic fixed smoothing constants for the benchmark variants
const (
	benchAlpha = 0.3
	benchBeta  = 0.1
	benchGamma = 0.3
)

func fitHoltBenchmark(train *timeseries.Series) (Fitted, error) {
	return fitEts(IDHolt, methodAAN, train.Values,
		[]float64{benchAlpha}, []float64{benchBeta}, []float64{0}, 0)
}

func fitHoltWintersBenchmark(period int) func(*timeseries.Series) (Fitted, error) {
	return func(train *timeseries.Series) (Fitted, error) {
		return fitEts(IDHoltWinters, methodAAA, train.Values,
			[]float64{benchAlpha}, []float64{benchBeta}, []float64{benchGamma}, period)
	}
}

func (e *etsModel) ID() string { return e.id }

func (e *etsModel) Kind() Kind {
	if e.id == IDHolt || e.id == IDHoltWinters {
		return KindBenchmark
	}
	return KindEts
}

func (e *etsModel) Params() map[string]float64 {
	params := map[string]float64{
		"alpha": e.alpha,
		"aicc":  e.aicc,
	}
	switch e.method {
	case methodAAN:
		params["beta"] = e.beta
	case methodAAA:
		params["beta"] = e.beta
		params["gamma"] = e.gamma
		params["period"] = float64(e.period)
	}
	return params
}

func (e *etsModel) Residuals() []float64 { return e.residuals }

func (e *etsModel) FitDF() int { return e.paramCount() }

func (e *etsModel) Predict(h int) (*Prediction, error) {
	if h < 1 {
		return nil, errors.New("steps must be at least 1")
	}

	mean := make([]float64, h)
	se := make([]float64, h)

	for i := 0; i < h; i++ {
		step := float64(i + 1)
		switch e.method {
		case methodANN:
			mean[i] = e.level
		case methodAAN:
			mean[i] = e.level + step*e.trend
		case methodAAA:
			idx := (e.n + i) % e.period
			mean[i] = e.level + step*e.trend + e.seasonal[idx]
		}
		se[i] = math.Sqrt(e.sigma2 * e.forecastVarianceFactor(i+1))
	}

	return &Prediction{Mean: mean, SE: se}, nil
}

// forecastVarianceFactor is the h-step forecast variance of the additive
// state space model relative to the one-step residual variance
// (Hyndman et al., class 1 models).
func (e *etsModel) forecastVarianceFactor(h int) float64 {
	if h == 1 {
		return 1
	}
	hf := float64(h)
	switch e.method {
	case methodANN:
		return 1 + (hf-1)*e.alpha*e.alpha
	case methodAAN:
		return 1 + (hf-1)*(e.alpha*e.alpha+e.alpha*e.beta*hf+e.beta*e.beta*hf*(2*hf-1)/6)
	default:
		k := float64((h - 1) / e.period)
		holt := (hf - 1) * (e.alpha*e.alpha + e.alpha*e.beta*hf + e.beta*e.beta*hf*(2*hf-1)/6)
		seasonalTerm := e.gamma * k * (2*e.alpha + e.gamma + e.beta*float64(e.period)*(k+1))
		return 1 + holt + seasonalTerm
	}
}

// stlEtsModel forecasts the seasonally adjusted series with Holt's method
// and re-adds the last decomposed seasonal cycle
type stlEtsModel struct {
	ets          *etsModel
	seasonalTail []float64
}

func fitStlEts(period int) func(*timeseries.Series) (Fitted, error) {
	return func(train *timeseries.Series) (Fitted, error) {
		if period < 2 {
			return nil, fmt.Errorf("seasonal period %d is too short for decomposition", period)
		}

		decomp := stats.STL(train, period, 2)
		if decomp == nil {
			return nil, fmt.Errorf("need at least %d observations for seasonal period %d, have %d",
				2*period, period, train.Len())
		}

		n := train.Len()
		adjusted := make([]float64, n)
		for i, v := range train.Values {
			adjusted[i] = v - decomp.Seasonal.Values[i]
		}

		ets, err := fitEts(IDStlEts, methodAAN, adjusted, alphaGrid(), betaGrid(), []float64{0}, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to fit trend model on adjusted series: %w", err)
		}

		tail := make([]float64, period)
		copy(tail, decomp.Seasonal.Values[n-period:])

		return &stlEtsModel{ets: ets, seasonalTail: tail}, nil
	}
}

func (s *stlEtsModel) ID() string { return IDStlEts }

func (s *stlEtsModel) Kind() Kind { return KindEts }

func (s *stlEtsModel) Params() map[string]float64 {
	params := s.ets.Params()
	params["period"] = float64(len(s.seasonalTail))
	return params
}

func (s *stlEtsModel) Residuals() []float64 { return s.ets.residuals }

func (s *stlEtsModel) FitDF() int { return s.ets.FitDF() }

func (s *stlEtsModel) Predict(h int) (*Prediction, error) {
	pred, err := s.ets.Predict(h)
	if err != nil {
		return nil, err
	}
	period := len(s.seasonalTail)
	for i := range pred.Mean {
		pred.Mean[i] += s.seasonalTail[i%period]
	}
	return pred, nil
}
