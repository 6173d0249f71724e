// Package observability exposes pipeline counters and timings as
// Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all collectors registered by the pipeline.
type Metrics struct {
	FaresFetched      prometheus.Counter
	FaresInvalid      prometheus.Counter
	ConversionsFailed prometheus.Counter
	CombinationsBuilt prometheus.Counter
	AlertsFired       prometheus.Counter
	AlertsSuppressed  prometheus.Counter
	AlertsDelivered   prometheus.Counter
	AlertsFailed      prometheus.Counter
	StageErrors       *prometheus.CounterVec
	TickDuration      prometheus.Histogram
}

// New registers the pipeline collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FaresFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "farewatch_fares_fetched_total",
			Help: "One-way fare records returned by the fare source.",
		}),
		FaresInvalid: factory.NewCounter(prometheus.CounterOpts{
			Name: "farewatch_fares_invalid_total",
			Help: "Fare records carrying sentinel or non-positive prices.",
		}),
		ConversionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "farewatch_currency_conversions_failed_total",
			Help: "Fare prices skipped because no conversion rate was known.",
		}),
		CombinationsBuilt: factory.NewCounter(prometheus.CounterOpts{
			Name: "farewatch_combinations_built_total",
			Help: "Round-trip combinations produced by the combiner.",
		}),
		AlertsFired: factory.NewCounter(prometheus.CounterOpts{
			Name: "farewatch_alerts_fired_total",
			Help: "Anomalies that passed detection thresholds.",
		}),
		AlertsSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "farewatch_alerts_suppressed_total",
			Help: "Alerts dropped by dedupe within the retention window.",
		}),
		AlertsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "farewatch_alerts_delivered_total",
			Help: "Alerts successfully handed to a notifier.",
		}),
		AlertsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "farewatch_alerts_failed_total",
			Help: "Alerts that exhausted delivery retries.",
		}),
		StageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "farewatch_stage_errors_total",
			Help: "Pipeline stage failures by stage name.",
		}, []string{"stage"}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "farewatch_tick_duration_seconds",
			Help:    "Wall time of a full pipeline tick.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}
