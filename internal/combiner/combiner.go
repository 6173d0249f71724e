// Package combiner pairs independently observed one-way fares into valid
// round-trip combinations under per-category stay-duration rules.
package combiner

import (
	"time"

	"farewatch/internal/currency"
	"farewatch/internal/domain"
	"farewatch/internal/idhash"
)

// Config holds the stay-duration rules.
type Config struct {
	// LongHaulMinutes is the outbound duration at or above which the long
	// stay window applies instead of the short one.
	LongHaulMinutes int
	Windows         map[domain.DurationCategory]domain.StayWindow
}

// Combiner builds round-trip combinations for one route pair at a time.
type Combiner struct {
	cfg        Config
	normalizer *currency.Normalizer
	now        func() time.Time
}

// New creates a Combiner. Prices are compared after normalization, so fares
// quoted in different currencies combine correctly.
func New(cfg Config, normalizer *currency.Normalizer) *Combiner {
	return &Combiner{
		cfg:        cfg,
		normalizer: normalizer,
		now:        time.Now,
	}
}

// Combine pairs each outbound fare with its best matching inbound fare.
// Rules:
//   - inbound must reverse the outbound route exactly; self-pairs are rejected
//   - stay nights must fall inside the window of the outbound's category
//   - among qualifying inbounds, the one minimizing combined normalized
//     price wins; ties go to the earliest return date
//   - an outbound with no qualifying inbound yields nothing: absence is
//     silence, never a sentinel record
//
// Fares with sentinel or non-positive prices and fares whose currency cannot
// be normalized are skipped.
func (c *Combiner) Combine(outbounds, inbounds []*domain.FareRecord) []*domain.FareCombination {
	var result []*domain.FareCombination

	for _, out := range outbounds {
		combo := c.combineOne(out, inbounds)
		if combo != nil {
			result = append(result, combo)
		}
	}

	return result
}

// combineOne selects the best inbound candidate for a single outbound fare.
func (c *Combiner) combineOne(out *domain.FareRecord, inbounds []*domain.FareRecord) *domain.FareCombination {
	if out == nil || !out.PriceValid() {
		return nil
	}
	if out.Origin == out.Destination {
		return nil
	}

	category := domain.CategorizeDuration(out.DurationMinutes, c.cfg.LongHaulMinutes)
	window, ok := c.cfg.Windows[category]
	if !ok {
		return nil
	}

	outPrice, err := c.normalizer.Normalize(out.Price, out.Currency)
	if err != nil {
		return nil
	}

	var (
		best      *domain.FareRecord
		bestTotal float64
		bestStay  int
	)

	for _, in := range inbounds {
		if in == nil || !in.PriceValid() {
			continue
		}
		if in.Origin != out.Destination || in.Destination != out.Origin {
			continue
		}
		if in.Origin == in.Destination {
			continue
		}

		nights, err := out.DepartureDate.NightsUntil(in.DepartureDate)
		if err != nil || !window.Contains(nights) {
			continue
		}

		inPrice, err := c.normalizer.Normalize(in.Price, in.Currency)
		if err != nil {
			continue
		}

		total := outPrice + inPrice
		switch {
		case best == nil:
		case total < bestTotal:
		case total == bestTotal && string(in.DepartureDate) < string(best.DepartureDate):
		default:
			continue
		}
		best = in
		bestTotal = total
		bestStay = nights
	}

	if best == nil {
		return nil
	}

	return &domain.FareCombination{
		CombinationID: idhash.ComputeCombinationID(out.FareID, best.FareID),
		OutboundID:    out.FareID,
		InboundID:     best.FareID,
		Outbound:      *out,
		Inbound:       *best,
		TotalPrice:    bestTotal,
		Currency:      c.normalizer.Reference(),
		StayNights:    bestStay,
		Category:      category,
		CreatedAt:     c.now().UnixMilli(),
	}
}
