package domain

import "math"

// RouteBaseline holds the running price statistics for one route, kept as
// Welford sufficient statistics (mean and M2, the sum of squared deviations)
// so the update is single-pass and numerically stable.
// Corresponds to the route_baselines table in PostgreSQL.
type RouteBaseline struct {
	Origin      string
	Destination string
	Mean        float64
	M2          float64
	SampleCount int64
	UpdatedAt   int64 // Unix timestamp in milliseconds
}

// Route returns the baseline's route key.
func (b *RouteBaseline) Route() RouteKey {
	return RouteKey{Origin: b.Origin, Destination: b.Destination}
}

// Variance returns the sample variance. Zero until two observations exist.
func (b *RouteBaseline) Variance() float64 {
	if b.SampleCount < 2 {
		return 0
	}
	return b.M2 / float64(b.SampleCount-1)
}

// StdDev returns the sample standard deviation.
func (b *RouteBaseline) StdDev() float64 {
	return math.Sqrt(b.Variance())
}
