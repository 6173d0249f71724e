package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"farewatch/internal/domain"
	"farewatch/internal/storage"
)

// FareStore implements storage.FareStore using PostgreSQL.
type FareStore struct {
	pool *Pool
}

// NewFareStore creates a new FareStore.
func NewFareStore(pool *Pool) *FareStore {
	return &FareStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FareStore = (*FareStore)(nil)

const fareColumns = `
	fare_id, origin, destination, departure_date, return_date, price,
	currency, airline, duration_minutes, stops, observed_at, round_trip, created_at
`

// Insert adds a new fare. Returns ErrDuplicateKey if fare_id exists.
func (s *FareStore) Insert(ctx context.Context, f *domain.FareRecord) error {
	query := `
		INSERT INTO fares (` + fareColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.pool.Exec(ctx, query,
		f.FareID,
		f.Origin,
		f.Destination,
		string(f.DepartureDate),
		string(f.ReturnDate),
		f.Price,
		f.Currency,
		f.Airline,
		f.DurationMinutes,
		f.Stops,
		f.ObservedAt,
		f.RoundTrip,
		f.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert fare: %w", err)
	}
	return nil
}

// InsertBulk adds multiple fares, skipping duplicates. Returns the number
// of records actually inserted.
func (s *FareStore) InsertBulk(ctx context.Context, fares []*domain.FareRecord) (int, error) {
	query := `
		INSERT INTO fares (` + fareColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (fare_id) DO NOTHING
	`

	var inserted int
	for _, f := range fares {
		tag, err := s.pool.Exec(ctx, query,
			f.FareID,
			f.Origin,
			f.Destination,
			string(f.DepartureDate),
			string(f.ReturnDate),
			f.Price,
			f.Currency,
			f.Airline,
			f.DurationMinutes,
			f.Stops,
			f.ObservedAt,
			f.RoundTrip,
			f.CreatedAt,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert fare %s: %w", f.FareID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// GetByID retrieves a fare by its ID. Returns ErrNotFound if not exists.
func (s *FareStore) GetByID(ctx context.Context, fareID string) (*domain.FareRecord, error) {
	query := `SELECT ` + fareColumns + ` FROM fares WHERE fare_id = $1`

	row := s.pool.QueryRow(ctx, query, fareID)
	f, err := scanFare(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get fare by id: %w", err)
	}
	return f, nil
}

// GetByRoute retrieves all fares for a route, ordered by observed_at ASC.
func (s *FareStore) GetByRoute(ctx context.Context, route domain.RouteKey) ([]*domain.FareRecord, error) {
	query := `
		SELECT ` + fareColumns + `
		FROM fares
		WHERE origin = $1 AND destination = $2
		ORDER BY observed_at ASC, fare_id ASC
	`

	rows, err := s.pool.Query(ctx, query, route.Origin, route.Destination)
	if err != nil {
		return nil, fmt.Errorf("get fares by route: %w", err)
	}
	defer rows.Close()

	return scanFares(rows)
}

// GetByRouteAndDateRange retrieves fares departing within [from, to],
// ordered by departure_date ASC.
func (s *FareStore) GetByRouteAndDateRange(ctx context.Context, route domain.RouteKey, from, to domain.Date) ([]*domain.FareRecord, error) {
	query := `
		SELECT ` + fareColumns + `
		FROM fares
		WHERE origin = $1 AND destination = $2
		  AND departure_date >= $3 AND departure_date <= $4
		ORDER BY departure_date ASC, fare_id ASC
	`

	rows, err := s.pool.Query(ctx, query, route.Origin, route.Destination, string(from), string(to))
	if err != nil {
		return nil, fmt.Errorf("get fares by date range: %w", err)
	}
	defer rows.Close()

	return scanFares(rows)
}

// ListRoutes returns the distinct directed routes with at least one fare.
func (s *FareStore) ListRoutes(ctx context.Context) ([]domain.RouteKey, error) {
	query := `
		SELECT DISTINCT origin, destination
		FROM fares
		ORDER BY origin ASC, destination ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()

	var routes []domain.RouteKey
	for rows.Next() {
		var r domain.RouteKey
		if err := rows.Scan(&r.Origin, &r.Destination); err != nil {
			return nil, fmt.Errorf("scan route row: %w", err)
		}
		routes = append(routes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate route rows: %w", err)
	}
	return routes, nil
}

// Count returns the total number of stored fares.
func (s *FareStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fares`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count fares: %w", err)
	}
	return count, nil
}

// DeleteObservedBefore removes fares observed before the cutoff (ms).
func (s *FareStore) DeleteObservedBefore(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fares WHERE observed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete fares before cutoff: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanFare scans a single row into a FareRecord.
func scanFare(row pgx.Row) (*domain.FareRecord, error) {
	var f domain.FareRecord
	var departure, ret string

	err := row.Scan(
		&f.FareID,
		&f.Origin,
		&f.Destination,
		&departure,
		&ret,
		&f.Price,
		&f.Currency,
		&f.Airline,
		&f.DurationMinutes,
		&f.Stops,
		&f.ObservedAt,
		&f.RoundTrip,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.DepartureDate = domain.Date(departure)
	f.ReturnDate = domain.Date(ret)
	return &f, nil
}

// scanFares scans multiple rows into a slice of FareRecord.
func scanFares(rows pgx.Rows) ([]*domain.FareRecord, error) {
	var fares []*domain.FareRecord

	for rows.Next() {
		var f domain.FareRecord
		var departure, ret string

		err := rows.Scan(
			&f.FareID,
			&f.Origin,
			&f.Destination,
			&departure,
			&ret,
			&f.Price,
			&f.Currency,
			&f.Airline,
			&f.DurationMinutes,
			&f.Stops,
			&f.ObservedAt,
			&f.RoundTrip,
			&f.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fare row: %w", err)
		}

		f.DepartureDate = domain.Date(departure)
		f.ReturnDate = domain.Date(ret)
		fares = append(fares, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fare rows: %w", err)
	}

	return fares, nil
}
