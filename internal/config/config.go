// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir          string  // Base directory for the price cache, snapshot and chart output
	Ticker           string  // Ticker symbol to forecast (e.g. "AAPL")
	StartDate        string  // Inclusive start of the analysis range, YYYY-MM-DD
	EndDate          string  // Inclusive end of the analysis range, YYYY-MM-DD
	Horizon          int     // Holdout / forecast horizon in observations
	SeasonalPeriod   int     // Seasonal period in observations (252 trading days per year)
	LogLambdaEpsilon float64 // |lambda| below this reports the Box-Cox transform as a log transform
	AlphaVantageKey  string  // API key for the Alpha Vantage daily adjusted endpoint
	LogLevel         string
	R2               *R2Config
}

// R2Config holds optional Cloudflare R2 upload configuration.
// Upload is skipped entirely unless all fields are set.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
}

// Enabled reports whether enough configuration is present to attempt uploads
func (r *R2Config) Enabled() bool {
	return r != nil && r.AccountID != "" && r.AccessKeyID != "" &&
		r.SecretAccessKey != "" && r.BucketName != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FORECAST_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Ticker:           getEnv("FORECAST_TICKER", "AAPL"),
		StartDate:        getEnv("FORECAST_START_DATE", "2015-01-01"),
		EndDate:          getEnv("FORECAST_END_DATE", "2024-12-31"),
		Horizon:          getEnvAsInt("FORECAST_HORIZON", 12),
		SeasonalPeriod:   getEnvAsInt("FORECAST_SEASONAL_PERIOD", 252),
		LogLambdaEpsilon: getEnvAsFloat("FORECAST_LOG_LAMBDA_EPSILON", 0.15),
		AlphaVantageKey:  getEnv("ALPHAVANTAGE_API_KEY", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		R2:               loadR2Config(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and coherent
func (c *Config) Validate() error {
	if c.Ticker == "" {
		return fmt.Errorf("ticker must not be empty")
	}

	start, err := time.Parse("2006-01-02", c.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", c.StartDate, err)
	}
	end, err := time.Parse("2006-01-02", c.EndDate)
	if err != nil {
		return fmt.Errorf("invalid end date %q: %w", c.EndDate, err)
	}
	if !start.Before(end) {
		return fmt.Errorf("start date %s must be before end date %s", c.StartDate, c.EndDate)
	}

	if c.Horizon < 1 {
		return fmt.Errorf("horizon must be at least 1, got %d", c.Horizon)
	}
	if c.SeasonalPeriod < 2 {
		return fmt.Errorf("seasonal period must be at least 2, got %d", c.SeasonalPeriod)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// loadR2Config loads optional R2 upload configuration
func loadR2Config() *R2Config {
	cfg := &R2Config{
		AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		BucketName:      getEnv("R2_BUCKET_NAME", ""),
	}
	if !cfg.Enabled() {
		return nil
	}
	return cfg
}
