package postgres

import (
	"context"
	"fmt"

	"farewatch/internal/domain"
	"farewatch/internal/storage"
)

// CombinationStore implements storage.CombinationStore using PostgreSQL.
// Legs reference the fares table; retrieval rehydrates both legs with a
// double join.
type CombinationStore struct {
	pool *Pool
}

// NewCombinationStore creates a new CombinationStore.
func NewCombinationStore(pool *Pool) *CombinationStore {
	return &CombinationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CombinationStore = (*CombinationStore)(nil)

// Insert adds a new combination. Returns ErrDuplicateKey if
// combination_id exists.
func (s *CombinationStore) Insert(ctx context.Context, c *domain.FareCombination) error {
	query := `
		INSERT INTO fare_combinations (
			combination_id, outbound_id, inbound_id, total_price, currency,
			stay_nights, category, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		c.CombinationID,
		c.OutboundID,
		c.InboundID,
		c.TotalPrice,
		c.Currency,
		c.StayNights,
		string(c.Category),
		c.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert combination: %w", err)
	}
	return nil
}

// GetByRoute retrieves combinations whose outbound leg flies the given
// route, ordered by total_price ASC.
func (s *CombinationStore) GetByRoute(ctx context.Context, route domain.RouteKey) ([]*domain.FareCombination, error) {
	query := `
		SELECT
			c.combination_id, c.outbound_id, c.inbound_id, c.total_price,
			c.currency, c.stay_nights, c.category, c.created_at,
			o.fare_id, o.origin, o.destination, o.departure_date, o.return_date,
			o.price, o.currency, o.airline, o.duration_minutes, o.stops,
			o.observed_at, o.round_trip, o.created_at,
			i.fare_id, i.origin, i.destination, i.departure_date, i.return_date,
			i.price, i.currency, i.airline, i.duration_minutes, i.stops,
			i.observed_at, i.round_trip, i.created_at
		FROM fare_combinations c
		JOIN fares o ON o.fare_id = c.outbound_id
		JOIN fares i ON i.fare_id = c.inbound_id
		WHERE o.origin = $1 AND o.destination = $2
		ORDER BY c.total_price ASC, c.combination_id ASC
	`

	rows, err := s.pool.Query(ctx, query, route.Origin, route.Destination)
	if err != nil {
		return nil, fmt.Errorf("get combinations by route: %w", err)
	}
	defer rows.Close()

	var combos []*domain.FareCombination
	for rows.Next() {
		var (
			c              domain.FareCombination
			category       string
			outDep, outRet string
			inDep, inRet   string
		)
		err := rows.Scan(
			&c.CombinationID, &c.OutboundID, &c.InboundID, &c.TotalPrice,
			&c.Currency, &c.StayNights, &category, &c.CreatedAt,
			&c.Outbound.FareID, &c.Outbound.Origin, &c.Outbound.Destination,
			&outDep, &outRet, &c.Outbound.Price, &c.Outbound.Currency,
			&c.Outbound.Airline, &c.Outbound.DurationMinutes, &c.Outbound.Stops,
			&c.Outbound.ObservedAt, &c.Outbound.RoundTrip, &c.Outbound.CreatedAt,
			&c.Inbound.FareID, &c.Inbound.Origin, &c.Inbound.Destination,
			&inDep, &inRet, &c.Inbound.Price, &c.Inbound.Currency,
			&c.Inbound.Airline, &c.Inbound.DurationMinutes, &c.Inbound.Stops,
			&c.Inbound.ObservedAt, &c.Inbound.RoundTrip, &c.Inbound.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan combination row: %w", err)
		}
		c.Category = domain.DurationCategory(category)
		c.Outbound.DepartureDate = domain.Date(outDep)
		c.Outbound.ReturnDate = domain.Date(outRet)
		c.Inbound.DepartureDate = domain.Date(inDep)
		c.Inbound.ReturnDate = domain.Date(inRet)
		combos = append(combos, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate combination rows: %w", err)
	}
	return combos, nil
}

// Count returns the total number of stored combinations.
func (s *CombinationStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fare_combinations`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count combinations: %w", err)
	}
	return count, nil
}

// DeleteCreatedBefore removes combinations created before the cutoff (ms).
func (s *CombinationStore) DeleteCreatedBefore(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fare_combinations WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete combinations before cutoff: %w", err)
	}
	return tag.RowsAffected(), nil
}
