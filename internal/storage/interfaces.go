package storage

import (
	"context"

	"farewatch/internal/domain"
)

// FareStore provides access to observed one-way and round-trip fares.
type FareStore interface {
	// Insert adds a new fare. Returns ErrDuplicateKey if fare_id exists.
	Insert(ctx context.Context, f *domain.FareRecord) error

	// InsertBulk adds multiple fares, skipping duplicates.
	// Returns the number of records actually inserted.
	InsertBulk(ctx context.Context, fares []*domain.FareRecord) (int, error)

	// GetByID retrieves a fare by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, fareID string) (*domain.FareRecord, error)

	// GetByRoute retrieves all fares for a route, ordered by observed_at ASC.
	GetByRoute(ctx context.Context, route domain.RouteKey) ([]*domain.FareRecord, error)

	// GetByRouteAndDateRange retrieves fares for a route departing within
	// [from, to] (inclusive, calendar dates), ordered by departure_date ASC.
	GetByRouteAndDateRange(ctx context.Context, route domain.RouteKey, from, to domain.Date) ([]*domain.FareRecord, error)

	// ListRoutes returns the distinct directed routes with at least one fare.
	ListRoutes(ctx context.Context) ([]domain.RouteKey, error)

	// Count returns the total number of stored fares.
	Count(ctx context.Context) (int64, error)

	// DeleteObservedBefore removes fares observed before the cutoff (ms).
	// Returns how many records were deleted.
	DeleteObservedBefore(ctx context.Context, cutoff int64) (int64, error)
}

// CombinationStore provides access to round-trip fare combinations.
type CombinationStore interface {
	// Insert adds a new combination. Returns ErrDuplicateKey if combination_id exists.
	Insert(ctx context.Context, c *domain.FareCombination) error

	// GetByRoute retrieves combinations whose outbound leg flies the given
	// route, ordered by total_price ASC.
	GetByRoute(ctx context.Context, route domain.RouteKey) ([]*domain.FareCombination, error)

	// Count returns the total number of stored combinations.
	Count(ctx context.Context) (int64, error)

	// DeleteCreatedBefore removes combinations created before the cutoff (ms).
	DeleteCreatedBefore(ctx context.Context, cutoff int64) (int64, error)
}

// AlertStore provides access to emitted alerts and the dedupe history.
type AlertStore interface {
	// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
	Insert(ctx context.Context, a *domain.AlertRecord) error

	// ExistsDedupeKeySince reports whether any alert with the dedupe key was
	// created at or after the since timestamp (ms).
	ExistsDedupeKeySince(ctx context.Context, dedupeKey string, since int64) (bool, error)

	// MarkDelivered flags an alert as delivered. Returns ErrNotFound if the
	// alert does not exist.
	MarkDelivered(ctx context.Context, alertID string) error

	// ListRecent retrieves up to limit alerts, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.AlertRecord, error)

	// Count returns the total number of stored alerts.
	Count(ctx context.Context) (int64, error)

	// DeleteCreatedBefore removes alerts created before the cutoff (ms).
	DeleteCreatedBefore(ctx context.Context, cutoff int64) (int64, error)
}

// BaselineStore provides read/update access to per-route price baselines.
// Baselines are never deleted by the pipeline; retention belongs to the
// operator (cmd/purge).
type BaselineStore interface {
	// Get retrieves the baseline for a route. Returns ErrNotFound if the
	// route has never been observed.
	Get(ctx context.Context, route domain.RouteKey) (*domain.RouteBaseline, error)

	// Upsert creates or replaces the baseline for its route.
	Upsert(ctx context.Context, b *domain.RouteBaseline) error

	// List retrieves all stored baselines.
	List(ctx context.Context) ([]*domain.RouteBaseline, error)
}

// PriceHistoryStore provides access to the normalized price observation
// timeseries (ClickHouse in production, memory in tests).
type PriceHistoryStore interface {
	// InsertBulk adds multiple observation points.
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetByRoute retrieves points for a route within [start, end] (ms,
	// inclusive), ordered by observed_at ASC.
	GetByRoute(ctx context.Context, route domain.RouteKey, start, end int64) ([]*domain.PricePoint, error)
}
