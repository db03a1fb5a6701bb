package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FORECAST_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "AAPL", cfg.Ticker)
	assert.Equal(t, "2015-01-01", cfg.StartDate)
	assert.Equal(t, "2024-12-31", cfg.EndDate)
	assert.Equal(t, 12, cfg.Horizon)
	assert.Equal(t, 252, cfg.SeasonalPeriod)
	assert.InDelta(t, 0.15, cfg.LogLambdaEpsilon, 1e-12)
	assert.Nil(t, cfg.R2)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FORECAST_DATA_DIR", t.TempDir())
	t.Setenv("FORECAST_TICKER", "MSFT")
	t.Setenv("FORECAST_HORIZON", "24")
	t.Setenv("FORECAST_SEASONAL_PERIOD", "12")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "MSFT", cfg.Ticker)
	assert.Equal(t, 24, cfg.Horizon)
	assert.Equal(t, 12, cfg.SeasonalPeriod)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Ticker:         "AAPL",
			StartDate:      "2015-01-01",
			EndDate:        "2024-12-31",
			Horizon:        12,
			SeasonalPeriod: 252,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty ticker", func(c *Config) { c.Ticker = "" }, true},
		{"bad start date", func(c *Config) { c.StartDate = "01/01/2015" }, true},
		{"bad end date", func(c *Config) { c.EndDate = "not-a-date" }, true},
		{"inverted range", func(c *Config) { c.StartDate, c.EndDate = c.EndDate, c.StartDate }, true},
		{"zero horizon", func(c *Config) { c.Horizon = 0 }, true},
		{"seasonal period too small", func(c *Config) { c.SeasonalPeriod = 1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestR2Config_Enabled(t *testing.T) {
	var nilCfg *R2Config
	assert.False(t, nilCfg.Enabled())

	partial := &R2Config{AccountID: "acc", AccessKeyID: "key"}
	assert.False(t, partial.Enabled())

	full := &R2Config{
		AccountID:       "acc",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		BucketName:      "bucket",
	}
	assert.True(t, full.Enabled())
}
