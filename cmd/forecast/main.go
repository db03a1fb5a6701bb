// Package main is the entry point for the forecasting study. It fetches
// daily adjusted prices for one ticker, characterizes the series, fits
// the candidate model set on the training split, scores every model on
// the holdout horizon and persists the full run as a snapshot.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/T1mvae/fm-forecast/internal/clients/alphavantage"
	"github.com/T1mvae/fm-forecast/internal/config"
	"github.com/T1mvae/fm-forecast/internal/database"
	"github.com/T1mvae/fm-forecast/internal/history"
	"github.com/T1mvae/fm-forecast/internal/pipeline"
	"github.com/T1mvae/fm-forecast/internal/snapshot"
	"github.com/T1mvae/fm-forecast/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().
		Str("ticker", cfg.Ticker).
		Str("range", cfg.StartDate+".."+cfg.EndDate).
		Int("horizon", cfg.Horizon).
		Msg("Starting forecasting study")

	if cfg.AlphaVantageKey == "" {
		log.Fatal().Msg("ALPHAVANTAGE_API_KEY is not set")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "history.db"),
		Name: "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open the price cache")
	}
	defer db.Close()

	if err := db.Migrate(history.Schema); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate the price cache")
	}

	repo := history.NewRepository(db.Conn(), log)
	fetcher := alphavantage.NewClient(cfg.AlphaVantageKey, log)

	store, err := snapshot.NewStore(cfg.DataDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create the snapshot store")
	}

	p := pipeline.New(cfg, fetcher, repo, log)
	report, err := p.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Run failed")
	}

	path, err := store.Write(report.RunID, report)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to persist the snapshot")
	}

	if len(report.Ranking) > 0 && report.Ranking[0].Metrics != nil {
		best := report.Ranking[0]
		log.Info().
			Str("model", best.Model).
			Float64("rmse", best.Metrics.RMSE).
			Float64("mase", best.Metrics.MASE).
			Msg("Best model on the holdout split")
	}
	for _, w := range report.Warnings {
		log.Warn().Msg(w)
	}

	if cfg.R2.Enabled() {
		uploadCtx, uploadCancel := context.WithTimeout(ctx, 2*time.Minute)
		defer uploadCancel()

		r2, err := snapshot.NewR2Client(uploadCtx, snapshot.R2Config{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
		}, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create the R2 client")
		} else if err := r2.Upload(uploadCtx, "snapshots/"+report.RunID+".msgpack", path); err != nil {
			log.Error().Err(err).Msg("Failed to upload the snapshot")
		}
	}

	log.Info().Str("run_id", report.RunID).Str("snapshot", path).Msg("Done")
}
