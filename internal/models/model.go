// Package models defines the candidate forecasting models and fits them
// independently on one shared training series. Every candidate is described
// by a Spec carrying its own fit closure, so the estimation bank and the
// evaluator can process ARIMA, exponential smoothing and benchmark models
// uniformly.
package models

import (
	"github.com/rs/zerolog"
	"github.com/sartorproj/goarima/timeseries"

	"github.com/T1mvae/fm-forecast/pkg/logger"
)

// Kind tags the model family of a Spec
type Kind string

const (
	KindArima     Kind = "arima"
	KindEts       Kind = "ets"
	KindBenchmark Kind = "benchmark"
)

// Model identifiers, in ranking insertion order
const (
	IDArimaAuto   = "ARIMA(auto)"
	IDArima011    = "ARIMA(0,1,1)"
	IDArima112    = "ARIMA(1,1,2)"
	IDArima212    = "ARIMA(2,1,2)"
	IDSarimaAuto  = "SARIMA(auto)"
	IDArimaBoxCox = "ARIMA(BoxCox)"
	IDEtsAuto     = "ETS(auto)"
	IDEtsAAN      = "ETS(AAN)"
	IDEtsANN      = "ETS(ANN)"
	IDStlEts      = "STL+ETS"
	IDNaive       = "Naive"
	IDDrift       = "Drift"
	IDHolt        = "Holt"
	IDHoltWinters = "HoltWinters"
	IDMean        = "Mean"
)

// Prediction is an h-step point forecast with per-step standard errors,
// on the scale the model was fitted on. Lambda is set when that scale is
// the Box-Cox transformed one and an inverse transform is still required.
type Prediction struct {
	Mean   []float64
	SE     []float64
	Lambda *float64
}

// Fitted is an estimated model bound to one training series
type Fitted interface {
	ID() string
	Kind() Kind
	// Params reports the estimated parameters for the final report
	Params() map[string]float64
	// Residuals returns in-sample one-step residuals on the fit scale
	Residuals() []float64
	// FitDF is the number of estimated parameters, used as the
	// degrees-of-freedom correction for the Ljung-Box test
	FitDF() int
	// Predict produces the h-step-ahead forecast
	Predict(h int) (*Prediction, error)
}

// Spec describes one candidate model and how to fit it
type Spec struct {
	ID   string
	Kind Kind
	Fit  func(train *timeseries.Series) (Fitted, error)
}

// FitResult pairs a Spec with its fitted model or its failure
type FitResult struct {
	Spec  Spec
	Model Fitted
	Err   error
}

// Config controls which candidates the bank enumerates
type Config struct {
	SeasonalPeriod int
	// BoxCoxLambda enables the transformed ARIMA candidate. Nil means the
	// transform estimation failed and that single family is skipped.
	BoxCoxLambda *float64
}

// Bank enumerates and fits the full candidate set
type Bank struct {
	cfg Config
	log zerolog.Logger
}

// NewBank creates a model estimation bank
func NewBank(cfg Config, log zerolog.Logger) *Bank {
	return &Bank{
		cfg: cfg,
		log: logger.Component(log, "model_bank"),
	}
}

// Specs returns the enumerated candidate set in stable order
func (b *Bank) Specs() []Spec {
	m := b.cfg.SeasonalPeriod

	specs := []Spec{
		{ID: IDArimaAuto, Kind: KindArima, Fit: fitAutoArima},
		{ID: IDArima011, Kind: KindArima, Fit: fitManualArima(IDArima011, 0, 1, 1)},
		{ID: IDArima112, Kind: KindArima, Fit: fitManualArima(IDArima112, 1, 1, 2)},
		{ID: IDArima212, Kind: KindArima, Fit: fitManualArima(IDArima212, 2, 1, 2)},
		{ID: IDSarimaAuto, Kind: KindArima, Fit: fitAutoSarima(m)},
	}

	if b.cfg.BoxCoxLambda != nil {
		lambda := *b.cfg.BoxCoxLambda
		specs = append(specs, Spec{ID: IDArimaBoxCox, Kind: KindArima, Fit: fitBoxCoxArima(lambda)})
	}

	specs = append(specs,
		Spec{ID: IDEtsAuto, Kind: KindEts, Fit: fitEtsAuto(m)},
		Spec{ID: IDEtsAAN, Kind: KindEts, Fit: fitEtsAAN},
		Spec{ID: IDEtsANN, Kind: KindEts, Fit: fitEtsANN},
		Spec{ID: IDStlEts, Kind: KindEts, Fit: fitStlEts(m)},
		Spec{ID: IDNaive, Kind: KindBenchmark, Fit: fitNaive},
		Spec{ID: IDDrift, Kind: KindBenchmark, Fit: fitDrift},
		Spec{ID: IDHolt, Kind: KindBenchmark, Fit: fitHoltBenchmark},
		Spec{ID: IDHoltWinters, Kind: KindBenchmark, Fit: fitHoltWintersBenchmark(m)},
		Spec{ID: IDMean, Kind: KindBenchmark, Fit: fitMean},
	)

	return specs
}

// FitAll fits every candidate independently. A model that fails to converge
// is reported in its FitResult and excluded downstream; the remaining
// candidates are unaffected.
func (b *Bank) FitAll(train *timeseries.Series) []FitResult {
	specs := b.Specs()
	results := make([]FitResult, 0, len(specs))

	for _, spec := range specs {
		model, err := spec.Fit(train)
		if err != nil {
			b.log.Warn().
				Err(err).
				Str("model", spec.ID).
				Msg("Model fit failed, excluding from downstream stages")
			results = append(results, FitResult{Spec: spec, Err: err})
			continue
		}

		b.log.Debug().
			Str("model", spec.ID).
			Msg("Model fitted")
		results = append(results, FitResult{Spec: spec, Model: model})
	}

	return results
}
