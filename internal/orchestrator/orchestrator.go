// Package orchestrator coordinates one pipeline tick end to end.
// Flow: fetch → normalize → combine → detect → dispatch
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"farewatch/internal/alert"
	"farewatch/internal/baseline"
	"farewatch/internal/combiner"
	"farewatch/internal/currency"
	"farewatch/internal/detector"
	"farewatch/internal/dispatch"
	"farewatch/internal/domain"
	"farewatch/internal/fetch"
	"farewatch/internal/observability"
	"farewatch/internal/storage"
)

// State names the stage a tick is currently executing.
type State string

const (
	StateIdle        State = "IDLE"
	StateFetching    State = "FETCHING"
	StateNormalizing State = "NORMALIZING"
	StateCombining   State = "COMBINING"
	StateDetecting   State = "DETECTING"
	StateDispatching State = "DISPATCHING"
	StateFailed      State = "FAILED"
)

// Orchestrator runs the fare pipeline on a fixed tick.
type Orchestrator struct {
	// Stores
	fareStore        storage.FareStore
	combinationStore storage.CombinationStore
	alertStore       storage.AlertStore
	baselineStore    storage.BaselineStore
	priceHistory     storage.PriceHistoryStore

	// Collaborators
	source       fetch.Source
	normalizer   *currency.Normalizer
	combiner     *combiner.Combiner
	tracker      *baseline.Tracker
	detector     *detector.Detector
	deduplicator *alert.Deduplicator
	dispatcher   *dispatch.Dispatcher
	archiver     Archiver
	metrics      *observability.Metrics
	logger       zerolog.Logger

	// Options
	routes          []domain.RouteKey
	lookaheadDays   int
	maxStayNights   int
	detectWorkers   int
	tickInterval    time.Duration
	shutdownTimeout time.Duration

	mu    sync.RWMutex
	state State
	now   func() time.Time
}

// Archiver receives the raw fares of each tick for cold storage. A nil
// Archiver disables archiving.
type Archiver interface {
	ArchiveTick(ctx context.Context, fares []*domain.FareRecord, tickAt time.Time) error
}

// Options for creating an Orchestrator.
type Options struct {
	// Required stores
	FareStore        storage.FareStore
	CombinationStore storage.CombinationStore
	AlertStore       storage.AlertStore
	BaselineStore    storage.BaselineStore
	PriceHistory     storage.PriceHistoryStore

	// Required collaborators
	Source       fetch.Source
	Normalizer   *currency.Normalizer
	Combiner     *combiner.Combiner
	Tracker      *baseline.Tracker
	Detector     *detector.Detector
	Deduplicator *alert.Deduplicator
	Dispatcher   *dispatch.Dispatcher

	// Optional
	Archiver Archiver
	Metrics  *observability.Metrics
	Logger   zerolog.Logger

	// Routes to watch, in both directions.
	Routes []domain.RouteKey
	// LookaheadDays bounds the outbound departure window from today.
	LookaheadDays int
	// MaxStayNights extends the inbound window past the outbound one.
	MaxStayNights int
	// DetectWorkers bounds per-route detection parallelism.
	DetectWorkers int
	// TickInterval spaces consecutive ticks in Run.
	TickInterval time.Duration
	// ShutdownTimeout bounds the final tick on graceful shutdown.
	ShutdownTimeout time.Duration
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.DetectWorkers <= 0 {
		opts.DetectWorkers = 4
	}
	if opts.LookaheadDays <= 0 {
		opts.LookaheadDays = 30
	}
	if opts.MaxStayNights <= 0 {
		opts.MaxStayNights = 14
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}
	return &Orchestrator{
		fareStore:        opts.FareStore,
		combinationStore: opts.CombinationStore,
		alertStore:       opts.AlertStore,
		baselineStore:    opts.BaselineStore,
		priceHistory:     opts.PriceHistory,
		source:           opts.Source,
		normalizer:       opts.Normalizer,
		combiner:         opts.Combiner,
		tracker:          opts.Tracker,
		detector:         opts.Detector,
		deduplicator:     opts.Deduplicator,
		dispatcher:       opts.Dispatcher,
		archiver:         opts.Archiver,
		metrics:          opts.Metrics,
		logger:           opts.Logger,
		routes:           opts.Routes,
		lookaheadDays:    opts.LookaheadDays,
		maxStayNights:    opts.MaxStayNights,
		detectWorkers:    opts.DetectWorkers,
		tickInterval:     opts.TickInterval,
		shutdownTimeout:  opts.ShutdownTimeout,
		state:            StateIdle,
		now:              time.Now,
	}
}

// RunResult contains counts from one tick.
type RunResult struct {
	FaresFetched      int
	FaresPersisted    int
	CombinationsBuilt int
	AlertsFired       int
	AlertsSuppressed  int
	AlertsDelivered   int
	AlertsFailed      int
	Errors            []string
}

// State reports the stage the orchestrator is currently in.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run executes ticks on the configured interval until ctx is cancelled.
// On cancellation the tick in flight finishes on a detached context
// bounded by the shutdown timeout, so a tick is never torn down halfway
// through dispatch.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.tickInterval)
	defer ticker.Stop()

	for {
		tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.shutdownTimeout+o.tickInterval)
		result, err := o.RunTick(tickCtx)
		cancel()
		if err != nil {
			o.logger.Error().Err(err).Msg("tick failed")
		} else {
			o.logger.Info().
				Int("fares", result.FaresFetched).
				Int("combinations", result.CombinationsBuilt).
				Int("alerts", result.AlertsFired).
				Int("suppressed", result.AlertsSuppressed).
				Int("stage_errors", len(result.Errors)).
				Msg("tick completed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunTick executes one full pipeline pass. A stage failure is recorded
// and the tick continues with whatever the failed stage produced, which
// for a total failure is nothing.
func (o *Orchestrator) RunTick(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}
	started := o.now()
	defer func() {
		if o.metrics != nil {
			o.metrics.TickDuration.Observe(o.now().Sub(started).Seconds())
		}
		o.setState(StateIdle)
	}()

	// Stage 1: fetch raw fares for every watched route, both directions.
	o.setState(StateFetching)
	fares := o.runFetch(ctx, result)
	result.FaresFetched = len(fares)

	// Stage 2: persist fares and record normalized price history.
	o.setState(StateNormalizing)
	valid := o.runNormalize(ctx, fares, result)
	if o.archiver != nil && len(fares) > 0 {
		if err := o.archiver.ArchiveTick(ctx, fares, started); err != nil {
			o.stageError(result, "normalize", "archive snapshot: %v", err)
		}
	}

	// Stage 3: pair outbound and inbound fares per route.
	o.setState(StateCombining)
	combos := o.runCombine(ctx, valid, result)
	result.CombinationsBuilt = len(combos)

	// Stage 4: baseline update and anomaly detection per route.
	o.setState(StateDetecting)
	candidates := o.runDetect(ctx, valid, result)

	// Stage 5: dedupe, persist and deliver alerts.
	o.setState(StateDispatching)
	o.runDispatch(ctx, candidates, result)

	return result, nil
}

func (o *Orchestrator) stageError(result *RunResult, stage, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", stage, msg))
	if o.metrics != nil {
		o.metrics.StageErrors.WithLabelValues(stage).Inc()
	}
	o.logger.Warn().Str("stage", stage).Msg(msg)
}

// runFetch queries the source for each watched route and its reverse.
// A source error on one route never blocks the others.
func (o *Orchestrator) runFetch(ctx context.Context, result *RunResult) []*domain.FareRecord {
	today := o.now().UTC()
	departFrom := domain.Date(today.Format(domain.DateLayout))
	departTo := domain.Date(today.AddDate(0, 0, o.lookaheadDays).Format(domain.DateLayout))
	returnTo := domain.Date(today.AddDate(0, 0, o.lookaheadDays+o.maxStayNights).Format(domain.DateLayout))

	var fares []*domain.FareRecord
	for _, route := range o.routes {
		queries := []fetch.Query{
			{Route: route, DepartFrom: departFrom, DepartTo: departTo},
			{Route: route.Reverse(), DepartFrom: departFrom, DepartTo: returnTo},
		}
		for _, q := range queries {
			batch, err := o.source.Fetch(ctx, q)
			if err != nil {
				o.stageError(result, "fetch", "route %s: %v", q.Route, err)
				continue
			}
			for i := range batch {
				fares = append(fares, &batch[i])
			}
		}
	}
	if o.metrics != nil {
		o.metrics.FaresFetched.Add(float64(len(fares)))
	}
	return fares
}

// runNormalize persists every fetched record verbatim, then writes
// normalized observation points for the valid ones. Sentinel records are
// stored for auditability but never flow further down the pipeline.
func (o *Orchestrator) runNormalize(ctx context.Context, fares []*domain.FareRecord, result *RunResult) []*domain.FareRecord {
	inserted, err := o.fareStore.InsertBulk(ctx, fares)
	if err != nil {
		o.stageError(result, "normalize", "persist fares: %v", err)
	}
	result.FaresPersisted = inserted

	var (
		valid  []*domain.FareRecord
		points []*domain.PricePoint
	)
	for _, f := range fares {
		if !f.PriceValid() {
			if o.metrics != nil {
				o.metrics.FaresInvalid.Inc()
			}
			continue
		}
		price, err := o.normalizePrice(f)
		if err != nil {
			if o.metrics != nil {
				o.metrics.ConversionsFailed.Inc()
			}
			o.stageError(result, "normalize", "fare %s: %v", f.FareID, err)
			continue
		}
		valid = append(valid, f)
		points = append(points, &domain.PricePoint{
			Origin:      f.Origin,
			Destination: f.Destination,
			ObservedAt:  f.ObservedAt,
			Price:       price,
			Currency:    o.normalizer.Reference(),
		})
	}

	if len(points) > 0 && o.priceHistory != nil {
		if err := o.priceHistory.InsertBulk(ctx, points); err != nil {
			o.stageError(result, "normalize", "persist price history: %v", err)
		}
	}
	return valid
}

// runCombine groups valid fares by directed route and pairs each route's
// outbounds with the reverse route's fares.
func (o *Orchestrator) runCombine(ctx context.Context, fares []*domain.FareRecord, result *RunResult) []*domain.FareCombination {
	byRoute := groupByRoute(fares)

	var combos []*domain.FareCombination
	for _, route := range sortedRoutes(byRoute) {
		inbounds := byRoute[route.Reverse()]
		if len(inbounds) == 0 {
			continue
		}
		combos = append(combos, o.combiner.Combine(byRoute[route], inbounds)...)
	}

	for _, combo := range combos {
		if err := o.combinationStore.Insert(ctx, combo); err != nil {
			// Re-observed pairs are expected across ticks.
			if errors.Is(err, storage.ErrDuplicateKey) {
				continue
			}
			o.stageError(result, "combine", "combination %s: %v", combo.CombinationID, err)
		}
	}
	if o.metrics != nil {
		o.metrics.CombinationsBuilt.Add(float64(len(combos)))
	}
	return combos
}

// runDetect scores each valid fare against its route baseline, updating
// the baseline with the observation afterwards. Routes are processed in
// parallel by a bounded worker pool; within a route, fares stay ordered
// so the baseline evolves deterministically. The updated baselines are
// flushed to the store at the end of the stage.
func (o *Orchestrator) runDetect(ctx context.Context, fares []*domain.FareRecord, result *RunResult) []*domain.AlertRecord {
	byRoute := groupByRoute(fares)
	routes := sortedRoutes(byRoute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		alerts  []*domain.AlertRecord
		workers = make(chan struct{}, o.detectWorkers)
	)

	for _, route := range routes {
		wg.Add(1)
		workers <- struct{}{}
		go func(route domain.RouteKey, fares []*domain.FareRecord) {
			defer wg.Done()
			defer func() { <-workers }()

			var routeAlerts []*domain.AlertRecord
			for _, f := range fares {
				price, err := o.normalizePrice(f)
				if err != nil {
					continue
				}
				prev := o.tracker.Observe(route, price)
				if candidate, fired := o.detector.Evaluate(f, price, prev); fired {
					routeAlerts = append(routeAlerts, candidate)
				}
			}

			mu.Lock()
			alerts = append(alerts, routeAlerts...)
			mu.Unlock()
		}(route, byRoute[route])
	}
	wg.Wait()

	// Deterministic dispatch order regardless of worker scheduling.
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Origin != alerts[j].Origin {
			return alerts[i].Origin < alerts[j].Origin
		}
		if alerts[i].Destination != alerts[j].Destination {
			return alerts[i].Destination < alerts[j].Destination
		}
		return alerts[i].FareID < alerts[j].FareID
	})

	o.flushBaselines(ctx, result)
	return alerts
}

// flushBaselines writes the tracker snapshot so baselines survive restarts.
func (o *Orchestrator) flushBaselines(ctx context.Context, result *RunResult) {
	for _, b := range o.tracker.Snapshot() {
		if err := o.baselineStore.Upsert(ctx, b); err != nil {
			o.stageError(result, "detect", "flush baseline %s-%s: %v", b.Origin, b.Destination, err)
		}
	}
}

// runDispatch filters duplicate alerts and hands the rest to the
// dispatcher.
func (o *Orchestrator) runDispatch(ctx context.Context, candidates []*domain.AlertRecord, result *RunResult) {
	fresh, suppressed, err := o.deduplicator.Filter(ctx, candidates)
	if err != nil {
		o.stageError(result, "dispatch", "dedupe: %v", err)
	}
	result.AlertsFired = len(fresh)
	result.AlertsSuppressed = suppressed
	if o.metrics != nil {
		o.metrics.AlertsFired.Add(float64(len(fresh)))
		o.metrics.AlertsSuppressed.Add(float64(suppressed))
	}

	if len(fresh) == 0 {
		return
	}

	batch := make([]domain.AlertRecord, 0, len(fresh))
	for _, a := range fresh {
		batch = append(batch, *a)
	}
	dres := o.dispatcher.Dispatch(ctx, batch)
	result.AlertsDelivered = dres.Delivered
	result.AlertsFailed = dres.Failed
	result.Errors = append(result.Errors, dres.Errors...)
	if o.metrics != nil {
		o.metrics.AlertsDelivered.Add(float64(dres.Delivered))
		o.metrics.AlertsFailed.Add(float64(dres.Failed))
	}
}

func (o *Orchestrator) normalizePrice(f *domain.FareRecord) (float64, error) {
	return o.normalizer.Normalize(f.Price, f.Currency)
}

func groupByRoute(fares []*domain.FareRecord) map[domain.RouteKey][]*domain.FareRecord {
	byRoute := make(map[domain.RouteKey][]*domain.FareRecord)
	for _, f := range fares {
		byRoute[f.Route()] = append(byRoute[f.Route()], f)
	}
	return byRoute
}

func sortedRoutes(byRoute map[domain.RouteKey][]*domain.FareRecord) []domain.RouteKey {
	routes := make([]domain.RouteKey, 0, len(byRoute))
	for route := range byRoute {
		routes = append(routes, route)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].String() < routes[j].String() })
	return routes
}
