// Package evaluate measures forecast accuracy on a held-out test split
// and ranks the competing models
package evaluate

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Metrics are the accuracy measures computed per model on the test split
type Metrics struct {
	MAE    float64 `json:"mae"`
	RMSE   float64 `json:"rmse"`
	MAPE   float64 `json:"mape"`
	MASE   float64 `json:"mase"`
	TheilU float64 `json:"theil_u"`
}

// Compute measures forecast accuracy against actuals. train supplies the
// in-sample one-step naive errors that scale the MASE.
func Compute(actual, predicted, train []float64) (*Metrics, error) {
	if len(actual) == 0 {
		return nil, errors.New("no actuals to evaluate")
	}
	if len(actual) != len(predicted) {
		return nil, fmt.Errorf("got %d predictions for %d actuals", len(predicted), len(actual))
	}
	if len(train) < 2 {
		return nil, errors.New("training series too short for the MASE scale")
	}

	n := float64(len(actual))
	sumAbs, sumSq := 0.0, 0.0
	sumPct, pctTerms := 0.0, 0
	sumActSq, sumPredSq := 0.0, 0.0

	for i, a := range actual {
		e := a - predicted[i]
		sumAbs += math.Abs(e)
		sumSq += e * e
		sumActSq += a * a
		sumPredSq += predicted[i] * predicted[i]
		if a != 0 {
			sumPct += math.Abs(e / a)
			pctTerms++
		}
	}

	scale := 0.0
	for t := 1; t < len(train); t++ {
		scale += math.Abs(train[t] - train[t-1])
	}
	scale /= float64(len(train) - 1)
	if scale == 0 {
		return nil, errors.New("naive scale is zero, MASE undefined")
	}

	m := &Metrics{
		MAE:  sumAbs / n,
		RMSE: math.Sqrt(sumSq / n),
		MASE: (sumAbs / n) / scale,
	}

	if pctTerms > 0 {
		m.MAPE = 100 * sumPct / float64(pctTerms)
	} else {
		m.MAPE = math.NaN()
	}

	denom := math.Sqrt(sumPredSq/n) + math.Sqrt(sumActSq/n)
	if denom > 0 {
		m.TheilU = math.Sqrt(sumSq/n) / denom
	}

	return m, nil
}

// Entry pairs one model with its test metrics
type Entry struct {
	Model   string   `json:"model"`
	Metrics *Metrics `json:"metrics"`
	Rank    int      `json:"rank"`
}

// Rank orders entries by ascending RMSE. Ties keep the incoming order, so
// the ranking is deterministic for a fixed candidate enumeration. Entries
// without metrics sort last, unranked.
func Rank(entries []Entry) []Entry {
	ranked := make([]Entry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Metrics == nil {
			return false
		}
		if ranked[j].Metrics == nil {
			return true
		}
		return ranked[i].Metrics.RMSE < ranked[j].Metrics.RMSE
	})

	for i := range ranked {
		if ranked[i].Metrics != nil {
			ranked[i].Rank = i + 1
		} else {
			ranked[i].Rank = 0
		}
	}
	return ranked
}

// Forecaster produces an h-step forecast from a training prefix. Used by
// the cross validation loop, which refits on every expanding window.
type Forecaster func(train []float64, h int) ([]float64, error)

// CVResult summarizes rolling-origin one-step errors
type CVResult struct {
	Folds  int     `json:"folds"`
	Failed int     `json:"failed"`
	MAE    float64 `json:"mae"`
	RMSE   float64 `json:"rmse"`
	Errors []float64
}

// CrossValidate runs expanding-window one-step-ahead validation: for each
// origin t from minTrain on, the model is refitted on values[:t] and its
// one-step forecast is scored against values[t]. Origins where the fit
// fails are counted and skipped.
func CrossValidate(values []float64, minTrain int, f Forecaster) (*CVResult, error) {
	if minTrain < 3 {
		return nil, errors.New("minimum training window must be at least 3")
	}
	if len(values) <= minTrain {
		return nil, fmt.Errorf("need more than %d observations, have %d", minTrain, len(values))
	}

	result := &CVResult{}
	sumAbs, sumSq := 0.0, 0.0

	for t := minTrain; t < len(values); t++ {
		pred, err := f(values[:t], 1)
		if err != nil || len(pred) < 1 {
			result.Failed++
			continue
		}
		e := values[t] - pred[0]
		result.Errors = append(result.Errors, e)
		sumAbs += math.Abs(e)
		sumSq += e * e
	}

	result.Folds = len(result.Errors)
	if result.Folds == 0 {
		return nil, errors.New("every cross validation fold failed")
	}

	n := float64(result.Folds)
	result.MAE = sumAbs / n
	result.RMSE = math.Sqrt(sumSq / n)
	return result, nil
}
