package domain

// AlertRecord is a detected price drop, persisted before dispatch so its
// dedupe key survives delivery failures. Corresponds to the alerts table in
// PostgreSQL.
type AlertRecord struct {
	AlertID       string // PRIMARY KEY, uuid
	Origin        string
	Destination   string
	FareID        string // fare that triggered the alert
	PreviousPrice float64
	CurrentPrice  float64
	DropPercent   float64 // (previous - current) / previous * 100
	ZScore        float64 // standard deviations below the baseline mean
	Currency      string  // reference currency of both prices
	DedupeKey     string  // base58 digest of route + fare + price bucket
	Delivered     bool
	CreatedAt     int64 // Unix timestamp in milliseconds
}

// Route returns the alert's route key.
func (a *AlertRecord) Route() RouteKey {
	return RouteKey{Origin: a.Origin, Destination: a.Destination}
}
