package models

import (
	"errors"
	"math"

	"github.com/sartorproj/goarima/timeseries"
	"gonum.org/v1/gonum/stat"
)

// benchmarkModel covers the closed-form reference forecasts: last value,
// last value plus average drift, and the training mean
type benchmarkModel struct {
	id        string
	n         int
	last      float64
	drift     float64
	mean      float64
	sigma2    float64
	residuals []float64
}

func fitNaive(train *timeseries.Series) (Fitted, error) {
	y := train.Values
	if len(y) < 3 {
		return nil, errors.New("need at least 3 observations")
	}

	residuals := make([]float64, len(y)-1)
	sse := 0.0
	for t := 1; t < len(y); t++ {
		e := y[t] - y[t-1]
		residuals[t-1] = e
		sse += e * e
	}

	return &benchmarkModel{
		id:        IDNaive,
		n:         len(y),
		last:      y[len(y)-1],
		sigma2:    sse / float64(len(residuals)),
		residuals: residuals,
	}, nil
}

func fitDrift(train *timeseries.Series) (Fitted, error) {
	y := train.Values
	if len(y) < 3 {
		return nil, errors.New("need at least 3 observations")
	}

	drift := (y[len(y)-1] - y[0]) / float64(len(y)-1)
	residuals := make([]float64, len(y)-1)
	sse := 0.0
	for t := 1; t < len(y); t++ {
		e := y[t] - y[t-1] - drift
		residuals[t-1] = e
		sse += e * e
	}

	return &benchmarkModel{
		id:        IDDrift,
		n:         len(y),
		last:      y[len(y)-1],
		drift:     drift,
		sigma2:    sse / float64(len(residuals)-1),
		residuals: residuals,
	}, nil
}

func fitMean(train *timeseries.Series) (Fitted, error) {
	y := train.Values
	if len(y) < 3 {
		return nil, errors.New("need at least 3 observations")
	}

	mean := stat.Mean(y, nil)
	residuals := make([]float64, len(y))
	sse := 0.0
	for t, v := range y {
		e := v - mean
		residuals[t] = e
		sse += e * e
	}

	return &benchmarkModel{
		id:        IDMean,
		n:         len(y),
		mean:      mean,
		sigma2:    sse / float64(len(y)-1),
		residuals: residuals,
	}, nil
}

func (b *benchmarkModel) ID() string { return b.id }

func (b *benchmarkModel) Kind() Kind { return KindBenchmark }

func (b *benchmarkModel) Params() map[string]float64 {
	switch b.id {
	case IDDrift:
		return map[string]float64{"drift": b.drift}
	case IDMean:
		return map[string]float64{"mean": b.mean}
	default:
		return map[string]float64{}
	}
}

func (b *benchmarkModel) Residuals() []float64 { return b.residuals }

func (b *benchmarkModel) FitDF() int {
	if b.id == IDNaive {
		return 0
	}
	return 1
}

func (b *benchmarkModel) Predict(h int) (*Prediction, error) {
	if h < 1 {
		return nil, errors.New("steps must be at least 1")
	}

	mean := make([]float64, h)
	se := make([]float64, h)
	nf := float64(b.n)

	for i := 0; i < h; i++ {
		step := float64(i + 1)
		switch b.id {
		case IDNaive:
			mean[i] = b.last
			se[i] = math.Sqrt(b.sigma2 * step)
		case IDDrift:
			mean[i] = b.last + step*b.drift
			se[i] = math.Sqrt(b.sigma2 * step * (1 + step/(nf-1)))
		case IDMean:
			mean[i] = b.mean
			se[i] = math.Sqrt(b.sigma2 * (1 + 1/nf))
		}
	}

	return &Prediction{Mean: mean, SE: se}, nil
}
