package fetch

import (
	"context"

	"farewatch/internal/domain"
)

// Query describes one fare search: all one-way fares on a route with a
// departure date inside [DepartFrom, DepartTo].
type Query struct {
	Route      domain.RouteKey
	DepartFrom domain.Date
	DepartTo   domain.Date
}

// Source produces raw one-way fares for a query. Implementations report
// routes with no availability using the sentinel price rather than an
// error, so a quiet route does not abort the batch.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]domain.FareRecord, error)
}
