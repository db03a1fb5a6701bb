// Package alphavantage provides a client for the Alpha Vantage daily price API.
// Only the endpoints the forecasting pipeline needs are implemented.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://www.alphavantage.co/query"

// DailyPrice represents a single daily bar with split/dividend adjusted close
type DailyPrice struct {
	Date          time.Time `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        int64     `json:"volume"`
}

// ErrRateLimitExceeded indicates the API rate limit has been hit
type ErrRateLimitExceeded struct{}

func (e ErrRateLimitExceeded) Error() string {
	return "alpha vantage rate limit exceeded"
}

// ErrSymbolNotFound indicates the requested symbol returned no data
type ErrSymbolNotFound struct {
	Symbol string
}

func (e ErrSymbolNotFound) Error() string {
	return fmt.Sprintf("symbol not found: %s", e.Symbol)
}

// Client fetches daily adjusted price series from Alpha Vantage
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	log        zerolog.Logger
}

// NewClient creates a new Alpha Vantage client
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: 3,
		log:        log.With().Str("client", "alphavantage").Logger(),
	}
}

// SetBaseURL overrides the API endpoint (used by tests)
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// GetDailyAdjusted fetches the full daily adjusted series for a symbol and
// returns the bars inside [start, end], ordered oldest first.
// Transient network failures are retried with exponential backoff.
func (c *Client) GetDailyAdjusted(ctx context.Context, symbol string, start, end time.Time) ([]DailyPrice, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY_ADJUSTED")
	params.Set("symbol", symbol)
	params.Set("outputsize", "full")
	params.Set("apikey", c.apiKey)

	body, err := c.getWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	if err := c.checkAPIError(body); err != nil {
		return nil, err
	}

	prices, err := parseDailyAdjustedTimeSeries(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse daily series for %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}

	// Filter to the requested range; the API always returns the full history
	filtered := make([]DailyPrice, 0, len(prices))
	for _, p := range prices {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		filtered = append(filtered, p)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Date.Before(filtered[j].Date)
	})

	c.log.Info().
		Str("symbol", symbol).
		Int("bars", len(filtered)).
		Msg("Fetched daily adjusted series")

	return filtered, nil
}

// getWithRetry performs the HTTP GET with exponential backoff on transient failures
func (c *Client) getWithRetry(ctx context.Context, params url.Values) ([]byte, error) {
	var lastErr error
	backoff := time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.log.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Msg("Retrying Alpha Vantage request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		body, err := c.get(ctx, params)
		if err == nil {
			return body, nil
		}
		lastErr = err

		// Context cancellation is not transient
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

// checkAPIError detects error payloads that come back with HTTP 200
func (c *Client) checkAPIError(body []byte) error {
	s := string(body)
	if strings.Contains(s, "Thank you for using Alpha Vantage") {
		return ErrRateLimitExceeded{}
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		// Not JSON and not a known rate limit message; let the parser decide
		return nil
	}
	if _, ok := payload["Note"]; ok {
		return ErrRateLimitExceeded{}
	}
	if msg, ok := payload["Error Message"]; ok {
		return fmt.Errorf("alpha vantage error: %v", msg)
	}
	return nil
}

// parseDailyAdjustedTimeSeries parses a TIME_SERIES_DAILY_ADJUSTED response
func parseDailyAdjustedTimeSeries(body []byte) ([]DailyPrice, error) {
	var response struct {
		TimeSeries map[string]map[string]string `json:"Time Series (Daily)"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	prices := make([]DailyPrice, 0, len(response.TimeSeries))
	for dateStr, bar := range response.TimeSeries {
		date := parseDate(dateStr)
		if date.IsZero() {
			continue
		}

		adjusted := parseFloat64(bar["5. adjusted close"])
		if adjusted == 0 {
			// Older payloads without the adjusted field fall back to raw close
			adjusted = parseFloat64(bar["4. close"])
		}

		prices = append(prices, DailyPrice{
			Date:          date,
			Open:          parseFloat64(bar["1. open"]),
			High:          parseFloat64(bar["2. high"]),
			Low:           parseFloat64(bar["3. low"]),
			Close:         parseFloat64(bar["4. close"]),
			AdjustedClose: adjusted,
			Volume:        parseInt64(bar["6. volume"]),
		})
	}

	return prices, nil
}

// parseFloat64 parses Alpha Vantage numeric strings, tolerating null markers
func parseFloat64(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" || s == "None" || s == "null" || s == "-" || s == "." {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt64(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "null" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	// Some payloads use scientific notation or decimals for volume
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
