// Package charts builds JSON-ready chart payloads from the analysis
// artifacts: price history with indicator overlays, the transformed
// series, the decomposition, forecast-versus-actual bands and the
// residual correlogram.
package charts

import (
	"errors"
	"fmt"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"github.com/sartorproj/goarima/stats"
	"github.com/sartorproj/goarima/timeseries"

	"github.com/T1mvae/fm-forecast/internal/forecast"
	"github.com/T1mvae/fm-forecast/pkg/logger"
)

// Indicator overlay windows for the price chart
const (
	smaWindow = 20
	emaWindow = 50
	rsiWindow = 14
)

// DataPoint represents a single point on a chart
type DataPoint struct {
	Time  string  `json:"time"` // YYYY-MM-DD format
	Value float64 `json:"value"`
}

// BandPoint is one step of a confidence band
type BandPoint struct {
	Time  string  `json:"time"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Chart is a named payload of one or more aligned series
type Chart struct {
	Name   string                 `json:"name"`
	Series map[string][]DataPoint `json:"series"`
	Bands  map[string][]BandPoint `json:"bands,omitempty"`
}

// Builder produces chart payloads
type Builder struct {
	log zerolog.Logger
}

// NewBuilder creates a chart builder
func NewBuilder(log zerolog.Logger) *Builder {
	return &Builder{log: logger.Component(log, "charts")}
}

func points(dates []time.Time, values []float64) []DataPoint {
	pts := make([]DataPoint, 0, len(values))
	for i, v := range values {
		pts = append(pts, DataPoint{Time: dates[i].Format("2006-01-02"), Value: v})
	}
	return pts
}

// tailPoints drops the leading warmup zeros an indicator produces
func tailPoints(dates []time.Time, values []float64, warmup int) []DataPoint {
	if warmup >= len(values) {
		return nil
	}
	return points(dates[warmup:], values[warmup:])
}

// Price builds the close price chart with moving average and RSI overlays
func (b *Builder) Price(dates []time.Time, closes []float64) (*Chart, error) {
	if len(dates) != len(closes) {
		return nil, fmt.Errorf("got %d dates for %d prices", len(dates), len(closes))
	}
	if len(closes) == 0 {
		return nil, errors.New("no prices to chart")
	}

	chart := &Chart{
		Name:   "price",
		Series: map[string][]DataPoint{"close": points(dates, closes)},
	}

	if len(closes) > emaWindow {
		chart.Series[fmt.Sprintf("sma%d", smaWindow)] = tailPoints(dates, talib.Sma(closes, smaWindow), smaWindow-1)
		chart.Series[fmt.Sprintf("ema%d", emaWindow)] = tailPoints(dates, talib.Ema(closes, emaWindow), emaWindow-1)
		chart.Series[fmt.Sprintf("rsi%d", rsiWindow)] = tailPoints(dates, talib.Rsi(closes, rsiWindow), rsiWindow)
	} else {
		b.log.Debug().Int("n", len(closes)).Msg("Series too short for indicator overlays")
	}

	return chart, nil
}

// Transformed builds the variance-stabilized series chart
func (b *Builder) Transformed(dates []time.Time, values []float64, lambda float64) (*Chart, error) {
	if len(dates) != len(values) {
		return nil, fmt.Errorf("got %d dates for %d values", len(dates), len(values))
	}
	return &Chart{
		Name:   fmt.Sprintf("transformed_lambda_%.3f", lambda),
		Series: map[string][]DataPoint{"transformed": points(dates, values)},
	}, nil
}

// Decomposition builds the trend, seasonal and remainder panels
func (b *Builder) Decomposition(dates []time.Time, trend, seasonal, remainder []float64) (*Chart, error) {
	n := len(dates)
	if len(trend) != n || len(seasonal) != n || len(remainder) != n {
		return nil, errors.New("decomposition components are not aligned with dates")
	}
	return &Chart{
		Name: "decomposition",
		Series: map[string][]DataPoint{
			"trend":     points(dates, trend),
			"seasonal":  points(dates, seasonal),
			"remainder": points(dates, remainder),
		},
	}, nil
}

// ForecastVsActual overlays a model's forecast and bands on the test split
func (b *Builder) ForecastVsActual(testDates []time.Time, actual []float64, fc *forecast.Result) (*Chart, error) {
	if len(testDates) != len(actual) {
		return nil, fmt.Errorf("got %d dates for %d actuals", len(testDates), len(actual))
	}
	if fc.Horizon > len(testDates) {
		return nil, fmt.Errorf("forecast horizon %d exceeds the %d test observations", fc.Horizon, len(testDates))
	}

	fcDates := testDates[:fc.Horizon]
	chart := &Chart{
		Name: fmt.Sprintf("forecast_%s", fc.Model),
		Series: map[string][]DataPoint{
			"actual":   points(testDates, actual),
			"forecast": points(fcDates, fc.Mean),
		},
		Bands: make(map[string][]BandPoint),
	}

	for _, interval := range fc.Intervals {
		key := fmt.Sprintf("%.0f%%", interval.Level*100)
		band := make([]BandPoint, fc.Horizon)
		for i := 0; i < fc.Horizon; i++ {
			band[i] = BandPoint{
				Time:  fcDates[i].Format("2006-01-02"),
				Lower: interval.Lower[i],
				Upper: interval.Upper[i],
			}
		}
		chart.Bands[key] = band
	}

	return chart, nil
}

// ResidualACF builds the residual correlogram for one model
func (b *Builder) ResidualACF(model string, residuals []float64, maxLag int) (*Chart, error) {
	if maxLag < 1 {
		return nil, errors.New("maxLag must be at least 1")
	}
	if maxLag >= len(residuals) {
		maxLag = len(residuals) - 1
	}

	acf := stats.ACF(timeseries.New(residuals), maxLag)
	if acf == nil {
		return nil, fmt.Errorf("series of %d residuals is too short for the correlogram", len(residuals))
	}

	pts := make([]DataPoint, 0, len(acf))
	for lag, v := range acf {
		pts = append(pts, DataPoint{Time: fmt.Sprintf("%d", lag), Value: v})
	}

	return &Chart{
		Name:   fmt.Sprintf("residual_acf_%s", model),
		Series: map[string][]DataPoint{"acf": pts},
	}, nil
}
