// Package detector decides whether a normalized price observation is an
// alertable drop against the route's pre-update baseline.
package detector

import (
	"time"

	"github.com/google/uuid"

	"farewatch/internal/domain"
	"farewatch/internal/idhash"
)

// Config holds the detection thresholds. The percentage and z-score tests
// are independently toggleable; either one firing produces an alert.
type Config struct {
	PercentEnabled   bool
	PercentThreshold float64 // e.g. 15 means a 15% drop fires

	ZScoreEnabled   bool
	ZScoreThreshold float64 // standard deviations below the mean
	MinSamples      int64   // z-score test is mute below this sample count

	// PriceCeiling is the user's maximum acceptable price in the reference
	// currency. A drop above the ceiling is still ignored.
	PriceCeiling float64

	// PriceBucketSize groups near-identical prices into one dedupe bucket.
	PriceBucketSize float64

	Currency string // reference currency recorded on alerts
}

// Detector applies the configured tests to observations.
type Detector struct {
	cfg Config
	now func() time.Time
}

// New creates a Detector.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg, now: time.Now}
}

// Evaluate scores a normalized price against the pre-update baseline and
// returns a candidate alert when either enabled test fires. The hard
// filters come first: sentinel/non-positive prices never alert, and a price
// above the ceiling never alerts no matter how large the drop. Both scores
// are recorded on the alert even when only one test fired.
func (d *Detector) Evaluate(fare *domain.FareRecord, price float64, prev domain.RouteBaseline) (*domain.AlertRecord, bool) {
	if !domain.ValidPrice(price) {
		return nil, false
	}
	if d.cfg.PriceCeiling > 0 && price > d.cfg.PriceCeiling {
		return nil, false
	}
	if prev.SampleCount == 0 || prev.Mean <= 0 {
		// First observation for the route: nothing to compare against.
		return nil, false
	}

	dropPercent := (prev.Mean - price) / prev.Mean * 100

	var zScore float64
	if stddev := prev.StdDev(); stddev > 0 {
		zScore = (prev.Mean - price) / stddev
	}

	percentFired := d.cfg.PercentEnabled && dropPercent >= d.cfg.PercentThreshold

	zFired := d.cfg.ZScoreEnabled &&
		prev.SampleCount >= d.cfg.MinSamples &&
		prev.StdDev() > 0 &&
		zScore >= d.cfg.ZScoreThreshold

	if !percentFired && !zFired {
		return nil, false
	}

	route := fare.Route()
	return &domain.AlertRecord{
		AlertID:       uuid.NewString(),
		Origin:        route.Origin,
		Destination:   route.Destination,
		FareID:        fare.FareID,
		PreviousPrice: prev.Mean,
		CurrentPrice:  price,
		DropPercent:   dropPercent,
		ZScore:        zScore,
		Currency:      d.cfg.Currency,
		DedupeKey:     idhash.ComputeDedupeKey(route, fare.FareID, price, d.cfg.PriceBucketSize),
		CreatedAt:     d.now().UnixMilli(),
	}, true
}
