// Package main runs a single pipeline tick against in-memory stores with
// the synthetic fare source. Useful for smoke-testing detection settings
// without external services.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"farewatch/internal/alert"
	"farewatch/internal/baseline"
	"farewatch/internal/combiner"
	"farewatch/internal/config"
	"farewatch/internal/currency"
	"farewatch/internal/detector"
	"farewatch/internal/dispatch"
	"farewatch/internal/domain"
	"farewatch/internal/fetch"
	"farewatch/internal/logging"
	"farewatch/internal/notify"
	"farewatch/internal/orchestrator"
	"farewatch/internal/storage/memory"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	timeout := flag.Duration("timeout", 5*time.Minute, "Tick timeout")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{Level: cfg.Logging.Level, Console: true})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	routes := make([]domain.RouteKey, 0, len(cfg.Pipeline.Routes))
	for _, s := range cfg.Pipeline.Routes {
		route, err := domain.ParseRouteKey(s)
		if err != nil {
			logger.Fatal().Err(err).Str("route", s).Msg("invalid route")
		}
		routes = append(routes, route)
	}

	orch := buildOrchestrator(cfg, routes, logger)

	result, err := orch.RunTick(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("tick failed")
	}

	logger.Info().
		Int("fares_fetched", result.FaresFetched).
		Int("fares_persisted", result.FaresPersisted).
		Int("combinations", result.CombinationsBuilt).
		Int("alerts_fired", result.AlertsFired).
		Int("alerts_suppressed", result.AlertsSuppressed).
		Int("alerts_delivered", result.AlertsDelivered).
		Msg("tick completed")
	for _, msg := range result.Errors {
		logger.Warn().Msg(msg)
	}
}

func buildOrchestrator(cfg *config.Config, routes []domain.RouteKey, logger zerolog.Logger) *orchestrator.Orchestrator {
	normalizer := currency.NewNormalizer(cfg.Currency.Reference, currency.StaticRates(cfg.Currency.Rates))

	comb := combiner.New(combiner.Config{
		LongHaulMinutes: cfg.Combiner.LongHaulMinutes,
		Windows: map[domain.DurationCategory]domain.StayWindow{
			domain.DurationShort: {
				MinNights: cfg.Combiner.ShortStay.MinNights,
				MaxNights: cfg.Combiner.ShortStay.MaxNights,
			},
			domain.DurationLong: {
				MinNights: cfg.Combiner.LongStay.MinNights,
				MaxNights: cfg.Combiner.LongStay.MaxNights,
			},
		},
	}, normalizer)

	alerts := memory.NewAlertStore()

	maxStay := cfg.Combiner.ShortStay.MaxNights
	if cfg.Combiner.LongStay.MaxNights > maxStay {
		maxStay = cfg.Combiner.LongStay.MaxNights
	}

	return orchestrator.New(orchestrator.Options{
		FareStore:        memory.NewFareStore(),
		CombinationStore: memory.NewCombinationStore(),
		AlertStore:       alerts,
		BaselineStore:    memory.NewBaselineStore(),
		PriceHistory:     memory.NewPriceHistoryStore(),
		Source:           &fetch.StubSource{Currency: cfg.Currency.Reference},
		Normalizer:       normalizer,
		Combiner:         comb,
		Tracker:          baseline.NewTracker(),
		Detector: detector.New(detector.Config{
			PercentEnabled:   cfg.Detection.PercentEnabled,
			PercentThreshold: cfg.Detection.PercentThreshold,
			ZScoreEnabled:    cfg.Detection.ZScoreEnabled,
			ZScoreThreshold:  cfg.Detection.ZScoreThreshold,
			MinSamples:       int64(cfg.Detection.MinSamples),
			PriceCeiling:     cfg.Detection.PriceCeiling,
			PriceBucketSize:  cfg.Detection.PriceBucketSize,
			Currency:         cfg.Currency.Reference,
		}),
		Deduplicator: alert.NewDeduplicator(alerts, cfg.Alerts.DedupeRetention),
		Dispatcher: dispatch.New(dispatch.Options{
			Alerts:   alerts,
			Notifier: notify.Nop{},
			Logger:   logger,
		}),
		Logger:          logger,
		Routes:          routes,
		LookaheadDays:   cfg.Pipeline.LookaheadDays,
		MaxStayNights:   maxStay,
		DetectWorkers:   cfg.Pipeline.DetectWorkers,
		TickInterval:    cfg.Pipeline.TickInterval,
		ShutdownTimeout: cfg.Pipeline.ShutdownTimeout,
	})
}
