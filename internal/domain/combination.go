package domain

// FareCombination pairs an outbound one-way fare with an inbound one-way
// fare into a synthetic round trip. Corresponds to the fare_combinations
// table in PostgreSQL.
type FareCombination struct {
	CombinationID string // PRIMARY KEY, deterministic hash
	OutboundID    string // FK to fares
	InboundID     string // FK to fares
	Outbound      FareRecord
	Inbound       FareRecord
	// TotalPrice is outbound + inbound after normalization to Currency.
	TotalPrice float64
	Currency   string // reference currency
	StayNights int
	Category   DurationCategory // category of the outbound leg
	CreatedAt  int64            // record creation timestamp (ms)
}

// Route returns the outbound route of the combination.
func (c *FareCombination) Route() RouteKey {
	return RouteKey{Origin: c.Outbound.Origin, Destination: c.Outbound.Destination}
}
