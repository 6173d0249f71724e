package fetch

import (
	"context"
	"hash/fnv"
	"time"

	"farewatch/internal/domain"
	"farewatch/internal/idhash"
)

// StubSource generates deterministic synthetic fares without touching the
// network. Prices are a stable function of route and departure date, so
// repeated runs produce identical observations. Used by the one-shot
// pipeline binary and in tests.
type StubSource struct {
	// BasePrice anchors generated prices; defaults to 5000 when zero.
	BasePrice float64
	// Currency stamps every generated fare; defaults to "TRY".
	Currency string
	// Now overrides the observation clock in tests.
	Now func() time.Time
}

var _ Source = (*StubSource)(nil)

// Fetch generates one fare per day inside the query window.
func (s *StubSource) Fetch(_ context.Context, q Query) ([]domain.FareRecord, error) {
	base := s.BasePrice
	if base <= 0 {
		base = 5000
	}
	currency := s.Currency
	if currency == "" {
		currency = "TRY"
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	from, err := q.DepartFrom.Parse()
	if err != nil {
		return nil, err
	}
	to, err := q.DepartTo.Parse()
	if err != nil {
		return nil, err
	}

	observed := now().UTC().UnixMilli()
	var records []domain.FareRecord
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		date := domain.Date(d.Format(domain.DateLayout))
		rec := domain.FareRecord{
			Origin:          q.Route.Origin,
			Destination:     q.Route.Destination,
			DepartureDate:   date,
			Price:           base + jitter(q.Route.String()+string(date), 0.2*base),
			Currency:        currency,
			Airline:         "XQ",
			DurationMinutes: 180 + int(jitter(q.Route.String(), 600)),
			Stops:           0,
			ObservedAt:      observed,
			CreatedAt:       observed,
		}
		rec.FareID = idhash.ComputeFareID(rec.Origin, rec.Destination,
			rec.DepartureDate, rec.ReturnDate, rec.Airline, observed)
		records = append(records, rec)
	}
	return records, nil
}

// jitter maps a seed string to a stable offset in [0, span).
func jitter(seed string, span float64) float64 {
	h := fnv.New64a()
	h.Write([]byte(seed))
	return float64(h.Sum64()%10000) / 10000 * span
}
