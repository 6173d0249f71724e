// Package main runs the full fare watch service: the scheduled pipeline
// (fetch → normalize → combine → detect → dispatch) together with the
// dashboard HTTP API and the live alert stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"farewatch/internal/alert"
	"farewatch/internal/archive"
	"farewatch/internal/baseline"
	"farewatch/internal/combiner"
	"farewatch/internal/config"
	"farewatch/internal/currency"
	"farewatch/internal/dashboard"
	"farewatch/internal/detector"
	"farewatch/internal/dispatch"
	"farewatch/internal/domain"
	"farewatch/internal/fetch"
	"farewatch/internal/logging"
	"farewatch/internal/notify"
	"farewatch/internal/observability"
	"farewatch/internal/orchestrator"
	"farewatch/internal/storage"
	chstore "farewatch/internal/storage/clickhouse"
	"farewatch/internal/storage/memory"
	"farewatch/internal/storage/migrations"
	pgstore "farewatch/internal/storage/postgres"
)

// stores holds the storage implementations behind the pipeline.
type stores struct {
	fares        storage.FareStore
	combinations storage.CombinationStore
	alerts       storage.AlertStore
	baselines    storage.BaselineStore
	priceHistory storage.PriceHistoryStore
}

func main() {
	// .env values never override the real environment.
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL and ClickHouse")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := buildStores(ctx, cfg, *useMemory)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage initialization failed")
	}
	defer cleanup()

	routes, err := parseRoutes(cfg.Pipeline.Routes)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid route configuration")
	}

	orch, hub, err := buildPipeline(ctx, cfg, st, routes, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline initialization failed")
	}

	server := dashboard.NewServer(dashboard.Options{
		Fares:        st.fares,
		Combinations: st.combinations,
		Alerts:       st.alerts,
		Baselines:    st.baselines,
		PriceHistory: st.priceHistory,
		Hub:          hub,
		Config: dashboard.ConfigView{
			Routes:           cfg.Pipeline.Routes,
			ReferenceCcy:     cfg.Currency.Reference,
			TickInterval:     cfg.Pipeline.TickInterval.String(),
			PercentThreshold: cfg.Detection.PercentThreshold,
			ZScoreThreshold:  cfg.Detection.ZScoreThreshold,
			MinSamples:       cfg.Detection.MinSamples,
			DedupeRetention:  cfg.Alerts.DedupeRetention.String(),
		},
		State:        func() string { return string(orch.State()) },
		Logger:       logger,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()

		// Second signal forces immediate shutdown.
		select {
		case sig := <-sigCh:
			logger.Error().Str("signal", sig.String()).Msg("forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(cfg.Pipeline.ShutdownTimeout + cfg.Server.ShutdownTimeout):
			logger.Error().Msg("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("dashboard server failed")
			cancel()
		}
	}()

	logger.Info().
		Int("routes", len(routes)).
		Dur("tick_interval", cfg.Pipeline.TickInterval).
		Int("port", cfg.Server.Port).
		Msg("farewatch server started")

	if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("pipeline stopped unexpectedly")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("dashboard shutdown failed")
	}

	close(done)
	logger.Info().Msg("farewatch server stopped")
}

// buildStores connects to Postgres and ClickHouse and runs migrations, or
// falls back to memory stores when requested. A persistence failure at
// startup is fatal by contract, so errors propagate.
func buildStores(ctx context.Context, cfg *config.Config, useMemory bool) (*stores, func(), error) {
	if useMemory {
		return &stores{
			fares:        memory.NewFareStore(),
			combinations: memory.NewCombinationStore(),
			alerts:       memory.NewAlertStore(),
			baselines:    memory.NewBaselineStore(),
			priceHistory: memory.NewPriceHistoryStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chDSN := fmt.Sprintf("clickhouse://%s:%s@%s/%s",
		cfg.ClickHouse.User, cfg.ClickHouse.Password, cfg.ClickHouse.Addr, cfg.ClickHouse.Database)
	conn, err := migrations.RunClickhouseMigrations(ctx, chDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		pool.Close()
		conn.Close()
	}
	return &stores{
		fares:        pgstore.NewFareStore(pool),
		combinations: pgstore.NewCombinationStore(pool),
		alerts:       pgstore.NewAlertStore(pool),
		baselines:    pgstore.NewBaselineStore(pool),
		priceHistory: chstore.NewPriceHistoryStore(conn),
	}, cleanup, nil
}

// buildPipeline wires every pipeline component from config.
func buildPipeline(ctx context.Context, cfg *config.Config, st *stores, routes []domain.RouteKey, logger zerolog.Logger) (*orchestrator.Orchestrator, *dashboard.Hub, error) {
	var rates currency.RateProvider
	if cfg.Currency.RatesURL != "" {
		live := currency.NewLiveRates(cfg.Currency.RatesURL, cfg.Currency.RefreshInterval,
			currency.StaticRates(cfg.Currency.Rates))
		go live.Run(ctx)
		rates = live
	} else {
		rates = currency.StaticRates(cfg.Currency.Rates)
	}
	normalizer := currency.NewNormalizer(cfg.Currency.Reference, rates)

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

	tracker := baseline.NewTracker()
	stored, err := st.baselines.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load baselines: %w", err)
	}
	tracker.Seed(stored)

	det := detector.New(detector.Config{
		PercentEnabled:   cfg.Detection.PercentEnabled,
		PercentThreshold: cfg.Detection.PercentThreshold,
		ZScoreEnabled:    cfg.Detection.ZScoreEnabled,
		ZScoreThreshold:  cfg.Detection.ZScoreThreshold,
		MinSamples:       int64(cfg.Detection.MinSamples),
		PriceCeiling:     cfg.Detection.PriceCeiling,
		PriceBucketSize:  cfg.Detection.PriceBucketSize,
		Currency:         cfg.Currency.Reference,
	})

	var notifiers notify.Multi
	if cfg.Telegram.Enabled {
		notifiers = append(notifiers, notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}
	if cfg.Kafka.Enabled {
		notifiers = append(notifiers, notify.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	}
	var notifier notify.Notifier = notifiers
	if len(notifiers) == 0 {
		notifier = notify.Nop{}
	}

	hub := dashboard.NewHub(logger)
	dispatcher := dispatch.New(dispatch.Options{
		Alerts:        st.alerts,
		Notifier:      notifier,
		Broadcaster:   hub,
		Logger:        logger,
		MaxRetries:    cfg.Alerts.MaxRetries,
		RetryInterval: cfg.Alerts.RetryInterval,
	})

	var source fetch.Source
	if cfg.Source.Type == "stub" {
		source = &fetch.StubSource{Currency: cfg.Currency.Reference}
	} else {
		source = fetch.NewHTTPSource(fetch.HTTPSourceOptions{
			BaseURL:     cfg.Source.BaseURL,
			APIKey:      cfg.Source.APIKey,
			Timeout:     cfg.Source.Timeout,
			MinInterval: cfg.Source.MinInterval,
		})
	}

	var archiver orchestrator.Archiver
	if cfg.Archive.Enabled {
		a, err := archive.New(ctx, archive.Options{
			Bucket:    cfg.Archive.Bucket,
			Prefix:    cfg.Archive.Prefix,
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("archive: %w", err)
		}
		archiver = a
	}

	metrics := observability.New(prometheus.DefaultRegisterer)

	maxStay := cfg.Combiner.ShortStay.MaxNights
	if cfg.Combiner.LongStay.MaxNights > maxStay {
		maxStay = cfg.Combiner.LongStay.MaxNights
	}

	orch := orchestrator.New(orchestrator.Options{
		FareStore:        st.fares,
		CombinationStore: st.combinations,
		AlertStore:       st.alerts,
		BaselineStore:    st.baselines,
		PriceHistory:     st.priceHistory,
		Source:           source,
		Normalizer:       normalizer,
		Combiner:         comb,
		Tracker:          tracker,
		Detector:         det,
		Deduplicator:     alert.NewDeduplicator(st.alerts, cfg.Alerts.DedupeRetention),
		Dispatcher:       dispatcher,
		Archiver:         archiver,
		Metrics:          metrics,
		Logger:           logger,
		Routes:           routes,
		LookaheadDays:    cfg.Pipeline.LookaheadDays,
		MaxStayNights:    maxStay,
		DetectWorkers:    cfg.Pipeline.DetectWorkers,
		TickInterval:     cfg.Pipeline.TickInterval,
		ShutdownTimeout:  cfg.Pipeline.ShutdownTimeout,
	})
	return orch, hub, nil
}

func parseRoutes(raw []string) ([]domain.RouteKey, error) {
	routes := make([]domain.RouteKey, 0, len(raw))
	for _, s := range raw {
		route, err := domain.ParseRouteKey(s)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", s, err)
		}
		routes = append(routes, route)
	}
	return routes, nil
}
