package domain

// Reserved sentinel prices emitted by the fetch collaborator instead of an
// explicit absence marker. Both are invalid for every downstream stage; the
// two constants stay distinct so logs can tell "searched and found nothing"
// apart from "search failed".
const (
	// PriceNoFlights means the search completed but no fare was offered.
	PriceNoFlights = 9999
	// PriceFetchError means the fetch failed before a price could be read.
	PriceFetchError = -1
)

// FareRecord is a single observed one-way (or pre-bundled round-trip) fare.
// Corresponds to the fares table in PostgreSQL.
type FareRecord struct {
	FareID          string // PRIMARY KEY, deterministic hash
	Origin          string // IATA airport code
	Destination     string // IATA airport code
	DepartureDate   Date
	ReturnDate      Date // empty for one-way fares
	Price           float64
	Currency        string // ISO 4217 code of Price
	Airline         string
	DurationMinutes int
	Stops           int
	ObservedAt      int64 // Unix timestamp in milliseconds
	RoundTrip       bool
	CreatedAt       int64 // record creation timestamp (ms)
}

// Route returns the fare's directed route key.
func (f *FareRecord) Route() RouteKey {
	return RouteKey{Origin: f.Origin, Destination: f.Destination}
}

// PriceValid reports whether the fare carries a real price: positive and not
// one of the reserved sentinels. Records failing this are persisted verbatim
// but excluded from every downstream stage.
func (f *FareRecord) PriceValid() bool {
	return ValidPrice(f.Price)
}

// ValidPrice applies the sentinel/positivity filter to a bare price. The
// same predicate is used by every stage so a sentinel can never leak past
// the boundary of one of them.
func ValidPrice(p float64) bool {
	return p > 0 && p != PriceNoFlights && p != PriceFetchError
}

// PricePoint is one normalized price observation for a route, stored in the
// price_history ClickHouse table for dashboard statistics.
type PricePoint struct {
	Origin      string
	Destination string
	ObservedAt  int64 // Unix timestamp in milliseconds
	Price       float64
	Currency    string // reference currency the price was normalized to
}
