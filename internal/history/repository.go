// Package history provides the local cache of daily price data.
// Cached series make re-runs reproducible and avoid re-hitting the data
// provider for ranges that were already fetched.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/T1mvae/fm-forecast/pkg/logger"
)

// Schema is the idempotent schema for the history database
const Schema = `
CREATE TABLE IF NOT EXISTS daily_prices (
	ticker TEXT NOT NULL,
	date INTEGER NOT NULL,
	open REAL,
	high REAL,
	low REAL,
	close REAL NOT NULL,
	adjusted_close REAL NOT NULL,
	volume INTEGER,
	PRIMARY KEY (ticker, date)
);
CREATE INDEX IF NOT EXISTS idx_daily_prices_ticker_date ON daily_prices (ticker, date);
`

// DailyPrice represents a cached daily bar
type DailyPrice struct {
	Date          time.Time `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        *int64    `json:"volume,omitempty"`
}

// Repository provides access to cached daily prices
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: logger.Component(log, "history_repo"),
	}
}

// SyncDailyPrices writes daily price bars to the cache in a single transaction
func (r *Repository) SyncDailyPrices(ticker string, prices []DailyPrice) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be no-op if Commit succeeds

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO daily_prices
		(ticker, date, open, high, low, close, adjusted_close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, price := range prices {
		volume := sql.NullInt64{}
		if price.Volume != nil {
			volume.Int64 = *price.Volume
			volume.Valid = true
		}

		dateUnix := price.Date.UTC().Truncate(24 * time.Hour).Unix()

		_, err = stmt.Exec(
			ticker,
			dateUnix,
			price.Open,
			price.High,
			price.Low,
			price.Close,
			price.AdjustedClose,
			volume,
		)
		if err != nil {
			return fmt.Errorf("failed to insert daily price for %s: %w", price.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Info().
		Str("ticker", ticker).
		Int("count", len(prices)).
		Msg("Synced daily prices")

	return nil
}

// GetDailyPrices fetches cached bars for a ticker inside [start, end], oldest first
func (r *Repository) GetDailyPrices(ticker string, start, end time.Time) ([]DailyPrice, error) {
	query := `
		SELECT date, open, high, low, close, adjusted_close, volume
		FROM daily_prices
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := r.db.Query(query, ticker, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		var volume sql.NullInt64
		var dateUnix int64

		err := rows.Scan(&dateUnix, &p.Open, &p.High, &p.Low, &p.Close, &p.AdjustedClose, &volume)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}

		p.Date = time.Unix(dateUnix, 0).UTC()
		if volume.Valid {
			p.Volume = &volume.Int64
		}

		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return prices, nil
}

// Count returns the number of cached bars for a ticker inside [start, end]
func (r *Repository) Count(ticker string, start, end time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM daily_prices WHERE ticker = ? AND date >= ? AND date <= ?",
		ticker, start.Unix(), end.Unix(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count daily prices: %w", err)
	}

	return count, nil
}
