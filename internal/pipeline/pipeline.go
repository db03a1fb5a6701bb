// Package pipeline runs the full forecasting study for one ticker: fetch
// and cache prices, characterize the series, estimate the candidate
// models, diagnose their residuals, forecast the holdout horizon and rank
// the results.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sartorproj/goarima/timeseries"

	"github.com/T1mvae/fm-forecast/internal/charts"
	"github.com/T1mvae/fm-forecast/internal/clients/alphavantage"
	"github.com/T1mvae/fm-forecast/internal/config"
	"github.com/T1mvae/fm-forecast/internal/diagnostics"
	"github.com/T1mvae/fm-forecast/internal/evaluate"
	"github.com/T1mvae/fm-forecast/internal/forecast"
	"github.com/T1mvae/fm-forecast/internal/history"
	"github.com/T1mvae/fm-forecast/internal/models"
	"github.com/T1mvae/fm-forecast/internal/snapshot"
	"github.com/T1mvae/fm-forecast/internal/stationarity"
	"github.com/T1mvae/fm-forecast/internal/transform"
	"github.com/T1mvae/fm-forecast/internal/trend"
	"github.com/T1mvae/fm-forecast/pkg/logger"
)

// Cross validation bounds. The loop refits every surviving smoothing and
// benchmark model once per origin, so the fold count is capped.
const (
	maxCVFolds = 30
	minCVTrain = 20
)

// PriceFetcher loads daily adjusted prices for a symbol and date range
type PriceFetcher interface {
	GetDailyAdjusted(ctx context.Context, symbol string, start, end time.Time) ([]alphavantage.DailyPrice, error)
}

// ModelRecord collects every per-model artifact of a run
type ModelRecord struct {
	Model       string              `json:"model"`
	Kind        models.Kind         `json:"kind"`
	Params      map[string]float64  `json:"params,omitempty"`
	FitError    string              `json:"fit_error,omitempty"`
	Diagnostics *diagnostics.Report `json:"diagnostics,omitempty"`
	DiagError   string              `json:"diag_error,omitempty"`
	Forecast    *forecast.Result    `json:"forecast,omitempty"`
	Metrics     *evaluate.Metrics   `json:"metrics,omitempty"`
	CV          *evaluate.CVResult  `json:"cv,omitempty"`
}

// StationarityReport is the differencing outcome without the working series
type StationarityReport struct {
	Order           int                       `json:"order"`
	Assessments     []stationarity.Assessment `json:"assessments"`
	MaxOrderReached bool                      `json:"max_order_reached"`
}

// SeriesData carries the analyzed series on every scale. Log is nil when
// the series has non-positive values; Transformed is nil whenever the
// Box-Cox family is unavailable.
type SeriesData struct {
	Dates       []time.Time `json:"dates"`
	Raw         []float64   `json:"raw"`
	Log         []float64   `json:"log,omitempty"`
	Transformed []float64   `json:"transformed,omitempty"`
}

// Report is the complete artifact bundle of one run
type Report struct {
	RunID          string    `json:"run_id"`
	Ticker         string    `json:"ticker"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Horizon        int       `json:"horizon"`
	SeasonalPeriod int       `json:"seasonal_period"`
	Observations   int       `json:"observations"`
	TrainSize      int       `json:"train_size"`
	TestSize       int       `json:"test_size"`

	Series         *SeriesData         `json:"series,omitempty"`
	Transform      *transform.Result   `json:"transform,omitempty"`
	TransformError string              `json:"transform_error,omitempty"`
	Stationarity   *StationarityReport `json:"stationarity,omitempty"`
	Trend          *trend.Report       `json:"trend,omitempty"`

	Models  map[string]*ModelRecord `json:"models"`
	Ranking []evaluate.Entry        `json:"ranking"`
	Charts  []*charts.Chart         `json:"charts,omitempty"`

	Warnings  []string  `json:"warnings,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Pipeline wires the stages together
type Pipeline struct {
	cfg     *config.Config
	fetcher PriceFetcher
	repo    *history.Repository
	charts  *charts.Builder
	log     zerolog.Logger
}

// New creates a pipeline. repo may be nil to run without the price cache.
func New(cfg *config.Config, fetcher PriceFetcher, repo *history.Repository, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		fetcher: fetcher,
		repo:    repo,
		charts:  charts.NewBuilder(log),
		log:     logger.Component(log, "pipeline"),
	}
}

// Run executes the whole study and returns its report
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	start, _ := time.Parse("2006-01-02", p.cfg.StartDate)
	end, _ := time.Parse("2006-01-02", p.cfg.EndDate)

	report := &Report{
		RunID:          snapshot.NewRunID(),
		Ticker:         p.cfg.Ticker,
		Start:          start,
		End:            end,
		Horizon:        p.cfg.Horizon,
		SeasonalPeriod: p.cfg.SeasonalPeriod,
		Models:         make(map[string]*ModelRecord),
		CreatedAt:      time.Now().UTC(),
	}

	prices, err := p.loadPrices(ctx, start, end)
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, len(prices))
	values := make([]float64, len(prices))
	for i, pr := range prices {
		dates[i] = pr.Date
		values[i] = pr.AdjustedClose
	}

	n := len(values)
	h := p.cfg.Horizon
	if n <= h {
		return nil, &DataFetchError{
			Ticker: p.cfg.Ticker,
			Err:    fmt.Errorf("%d observations are too few for a horizon of %d", n, h),
		}
	}

	report.Observations = n
	report.TrainSize = n - h
	report.TestSize = h

	trainValues := values[:n-h]
	testValues := values[n-h:]
	trainDates := dates[:n-h]
	testDates := dates[n-h:]

	trainSeries, err := timeseries.NewWithTimestamps(trainDates, trainValues)
	if err != nil {
		return nil, fmt.Errorf("failed to build training series: %w", err)
	}

	p.log.Info().
		Str("ticker", p.cfg.Ticker).
		Int("observations", n).
		Int("train", report.TrainSize).
		Int("test", report.TestSize).
		Msg("Series loaded and split")

	report.Series = &SeriesData{Dates: dates, Raw: values}
	logValues, err := transform.Forward(values, 0)
	if err != nil {
		p.log.Warn().Err(err).Msg("Log series unavailable, differencing the raw series instead")
	} else {
		report.Series.Log = logValues
	}

	p.describe(report, dates, values)
	lambda := p.estimateTransform(report, trainValues)
	if lambda != nil {
		if transformed, err := transform.Forward(values, *lambda); err == nil {
			report.Series.Transformed = transformed
		}
	}

	// Differencing operates on the log scale when the series permits it
	stationaritySeries := trainSeries
	if logValues != nil {
		if s, err := timeseries.NewWithTimestamps(trainDates, logValues[:n-h]); err == nil {
			stationaritySeries = s
		}
	}
	p.assessStationarity(report, stationaritySeries)

	bank := models.NewBank(models.Config{
		SeasonalPeriod: p.cfg.SeasonalPeriod,
		BoxCoxLambda:   lambda,
	}, p.log)
	results := bank.FitAll(trainSeries)

	lastTrainDate := trainDates[len(trainDates)-1]
	entries := make([]evaluate.Entry, 0, len(results))
	residuals := make(map[string][]float64)

	for _, r := range results {
		record := &ModelRecord{Model: r.Spec.ID, Kind: r.Spec.Kind}
		report.Models[r.Spec.ID] = record

		if r.Err != nil {
			convErr := &ConvergenceError{Model: r.Spec.ID, Err: r.Err}
			record.FitError = convErr.Error()
			report.Warnings = append(report.Warnings, convErr.Error())
			entries = append(entries, evaluate.Entry{Model: r.Spec.ID})
			continue
		}

		record.Params = r.Model.Params()
		residuals[r.Spec.ID] = r.Model.Residuals()
		p.diagnose(record, r.Model)

		fc, err := forecast.Build(r.Model, h)
		if err != nil {
			record.FitError = (&ConvergenceError{Model: r.Spec.ID, Err: err}).Error()
			entries = append(entries, evaluate.Entry{Model: r.Spec.ID})
			continue
		}
		record.Forecast = fc.WithDates(lastTrainDate)

		metrics, err := evaluate.Compute(testValues, fc.Mean, trainValues)
		if err != nil {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("metrics for %s could not be computed: %v", r.Spec.ID, err))
			entries = append(entries, evaluate.Entry{Model: r.Spec.ID})
			continue
		}
		record.Metrics = metrics
		entries = append(entries, evaluate.Entry{Model: r.Spec.ID, Metrics: metrics})
	}

	report.Ranking = evaluate.Rank(entries)
	p.crossValidate(report, results, trainValues)
	p.buildCharts(report, dates, values, testDates, testValues, residuals)

	p.log.Info().
		Str("run_id", report.RunID).
		Int("models", len(report.Models)).
		Int("warnings", len(report.Warnings)).
		Msg("Run complete")
	return report, nil
}

// loadPrices fetches from the API and refreshes the cache; when the fetch
// fails the cache is the fallback
func (p *Pipeline) loadPrices(ctx context.Context, start, end time.Time) ([]history.DailyPrice, error) {
	fetched, fetchErr := p.fetcher.GetDailyAdjusted(ctx, p.cfg.Ticker, start, end)
	if fetchErr == nil && len(fetched) > 0 {
		prices := make([]history.DailyPrice, len(fetched))
		for i, f := range fetched {
			v := f.Volume
			prices[i] = history.DailyPrice{
				Date:          f.Date,
				Open:          f.Open,
				High:          f.High,
				Low:           f.Low,
				Close:         f.Close,
				AdjustedClose: f.AdjustedClose,
				Volume:        &v,
			}
		}
		if p.repo != nil {
			if err := p.repo.SyncDailyPrices(p.cfg.Ticker, prices); err != nil {
				p.log.Warn().Err(err).Msg("Failed to refresh the price cache")
			}
		}
		return prices, nil
	}

	if p.repo != nil {
		cached, err := p.repo.GetDailyPrices(p.cfg.Ticker, start, end)
		if err == nil && len(cached) > 0 {
			p.log.Warn().
				AnErr("fetch_error", fetchErr).
				Int("cached", len(cached)).
				Msg("Fetch failed, using cached prices")
			return cached, nil
		}
	}

	if fetchErr == nil {
		fetchErr = fmt.Errorf("no observations in range %s..%s", p.cfg.StartDate, p.cfg.EndDate)
	}
	return nil, &DataFetchError{Ticker: p.cfg.Ticker, Err: fetchErr}
}

func (p *Pipeline) describe(report *Report, dates []time.Time, values []float64) {
	series, err := timeseries.NewWithTimestamps(dates, values)
	if err != nil {
		return
	}
	tr, err := trend.Analyze(series, p.cfg.SeasonalPeriod)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("trend analysis failed: %v", err))
		return
	}
	report.Trend = tr
}

// estimateTransform returns the Box-Cox lambda for the transformed model
// family, or nil when estimation failed
func (p *Pipeline) estimateTransform(report *Report, trainValues []float64) *float64 {
	groupLen := p.cfg.SeasonalPeriod
	if groupLen > len(trainValues)/2 {
		groupLen = len(trainValues) / 4
	}
	if groupLen < 2 {
		groupLen = 2
	}

	lambda, err := transform.EstimateLambda(trainValues, groupLen)
	if err != nil {
		tErr := &TransformError{Err: err}
		report.TransformError = tErr.Error()
		report.Warnings = append(report.Warnings, tErr.Error())
		return nil
	}

	report.Transform = &transform.Result{
		Lambda:        lambda,
		LogEquivalent: transform.IsLogEquivalent(lambda, p.cfg.LogLambdaEpsilon),
	}
	p.log.Info().
		Float64("lambda", lambda).
		Bool("log_equivalent", report.Transform.LogEquivalent).
		Msg("Box-Cox lambda estimated")
	return &lambda
}

func (p *Pipeline) assessStationarity(report *Report, trainSeries *timeseries.Series) {
	outcome, err := stationarity.DifferenceUntilStationary(trainSeries, p.log)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("stationarity assessment failed: %v", err))
		return
	}
	report.Stationarity = &StationarityReport{
		Order:           outcome.Order,
		Assessments:     outcome.Assessments,
		MaxOrderReached: outcome.MaxOrderReached,
	}
	if outcome.MaxOrderReached {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("series still non-stationary after %d differencing rounds", outcome.Order))
	}
}

func (p *Pipeline) diagnose(record *ModelRecord, fitted models.Fitted) {
	diag, err := diagnostics.Analyze(fitted.Residuals(), fitted.FitDF())
	if err != nil {
		record.DiagError = (&DiagnosticError{Model: fitted.ID(), Err: err}).Error()
		return
	}
	record.Diagnostics = diag
}

// crossValidate runs rolling-origin one-step validation for the smoothing
// and benchmark families. ARIMA refits are too expensive per origin and
// are covered by the holdout metrics instead.
func (p *Pipeline) crossValidate(report *Report, results []models.FitResult, trainValues []float64) {
	folds := len(trainValues) / 4
	if folds > maxCVFolds {
		folds = maxCVFolds
	}
	minTrain := len(trainValues) - folds
	if minTrain < minCVTrain {
		return
	}

	for _, r := range results {
		if r.Err != nil || r.Spec.Kind == models.KindArima {
			continue
		}

		fit := r.Spec.Fit
		forecaster := func(train []float64, h int) ([]float64, error) {
			fitted, err := fit(timeseries.New(train))
			if err != nil {
				return nil, err
			}
			pred, err := fitted.Predict(h)
			if err != nil {
				return nil, err
			}
			return pred.Mean, nil
		}

		cv, err := evaluate.CrossValidate(trainValues, minTrain, forecaster)
		if err != nil {
			p.log.Debug().Err(err).Str("model", r.Spec.ID).Msg("Cross validation skipped")
			continue
		}
		report.Models[r.Spec.ID].CV = cv
	}
}

func (p *Pipeline) buildCharts(report *Report, dates []time.Time, values []float64,
	testDates []time.Time, testValues []float64, residuals map[string][]float64) {

	if chart, err := p.charts.Price(dates, values); err == nil {
		report.Charts = append(report.Charts, chart)
	}

	if report.Transform != nil && report.Series.Transformed != nil {
		if chart, err := p.charts.Transformed(dates, report.Series.Transformed, report.Transform.Lambda); err == nil {
			report.Charts = append(report.Charts, chart)
		}
	}

	if report.Trend != nil && report.Trend.Decomposition != nil {
		d := report.Trend.Decomposition
		if chart, err := p.charts.Decomposition(dates, d.Trend, d.Seasonal, d.Remainder); err == nil {
			report.Charts = append(report.Charts, chart)
		}
	}

	best := p.bestModel(report)
	if best == nil {
		return
	}
	if best.Forecast != nil {
		if chart, err := p.charts.ForecastVsActual(testDates, testValues, best.Forecast); err == nil {
			report.Charts = append(report.Charts, chart)
		}
	}
	if res := residuals[best.Model]; len(res) > 1 {
		if chart, err := p.charts.ResidualACF(best.Model, res, 20); err == nil {
			report.Charts = append(report.Charts, chart)
		}
	}
}

// bestModel returns the record of the top ranked model, or nil when no
// model produced metrics
func (p *Pipeline) bestModel(report *Report) *ModelRecord {
	for _, entry := range report.Ranking {
		if entry.Metrics != nil {
			return report.Models[entry.Model]
		}
	}
	return nil
}
