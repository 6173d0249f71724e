// Package main deletes fares, combinations and alerts older than the
// configured retention windows. Intended to run from cron.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"farewatch/internal/config"
	"farewatch/internal/logging"
	pgstore "farewatch/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	dryRun := flag.Bool("dry-run", false, "Report what would be deleted without deleting")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{Level: cfg.Logging.Level, Console: true})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()

	now := time.Now()
	fareCutoff := now.Add(-cfg.Retention.Fares).UnixMilli()
	comboCutoff := now.Add(-cfg.Retention.Combinations).UnixMilli()
	alertCutoff := now.Add(-cfg.Retention.Alerts).UnixMilli()

	if *dryRun {
		logger.Info().
			Int64("fare_cutoff", fareCutoff).
			Int64("combination_cutoff", comboCutoff).
			Int64("alert_cutoff", alertCutoff).
			Msg("dry run, nothing deleted")
		return
	}

	// Combinations go first so fare deletions never cascade rows we still
	// want to count.
	combos, err := pgstore.NewCombinationStore(pool).DeleteCreatedBefore(ctx, comboCutoff)
	if err != nil {
		logger.Fatal().Err(err).Msg("purge combinations failed")
	}
	fares, err := pgstore.NewFareStore(pool).DeleteObservedBefore(ctx, fareCutoff)
	if err != nil {
		logger.Fatal().Err(err).Msg("purge fares failed")
	}
	alerts, err := pgstore.NewAlertStore(pool).DeleteCreatedBefore(ctx, alertCutoff)
	if err != nil {
		logger.Fatal().Err(err).Msg("purge alerts failed")
	}

	logger.Info().
		Int64("fares_deleted", fares).
		Int64("combinations_deleted", combos).
		Int64("alerts_deleted", alerts).
		Msg("purge completed")
}
