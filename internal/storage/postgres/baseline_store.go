package postgres

import (
	"context"
	"fmt"

	"farewatch/internal/domain"
	"farewatch/internal/storage"
)

// BaselineStore implements storage.BaselineStore using PostgreSQL.
type BaselineStore struct {
	pool *Pool
}

// NewBaselineStore creates a new BaselineStore.
func NewBaselineStore(pool *Pool) *BaselineStore {
	return &BaselineStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BaselineStore = (*BaselineStore)(nil)

// Get retrieves the baseline for a route. Returns ErrNotFound if the
// route has never been observed.
func (s *BaselineStore) Get(ctx context.Context, route domain.RouteKey) (*domain.RouteBaseline, error) {
	query := `
		SELECT origin, destination, mean, m2, sample_count, updated_at
		FROM route_baselines
		WHERE origin = $1 AND destination = $2
	`

	var b domain.RouteBaseline
	err := s.pool.QueryRow(ctx, query, route.Origin, route.Destination).Scan(
		&b.Origin,
		&b.Destination,
		&b.Mean,
		&b.M2,
		&b.SampleCount,
		&b.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get baseline: %w", err)
	}
	return &b, nil
}

// Upsert creates or replaces the baseline for its route.
func (s *BaselineStore) Upsert(ctx context.Context, b *domain.RouteBaseline) error {
	query := `
		INSERT INTO route_baselines (origin, destination, mean, m2, sample_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (origin, destination) DO UPDATE SET
			mean = EXCLUDED.mean,
			m2 = EXCLUDED.m2,
			sample_count = EXCLUDED.sample_count,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		b.Origin,
		b.Destination,
		b.Mean,
		b.M2,
		b.SampleCount,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert baseline: %w", err)
	}
	return nil
}

// List retrieves all stored baselines.
func (s *BaselineStore) List(ctx context.Context) ([]*domain.RouteBaseline, error) {
	query := `
		SELECT origin, destination, mean, m2, sample_count, updated_at
		FROM route_baselines
		ORDER BY origin ASC, destination ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list baselines: %w", err)
	}
	defer rows.Close()

	var baselines []*domain.RouteBaseline
	for rows.Next() {
		var b domain.RouteBaseline
		err := rows.Scan(
			&b.Origin,
			&b.Destination,
			&b.Mean,
			&b.M2,
			&b.SampleCount,
			&b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan baseline row: %w", err)
		}
		baselines = append(baselines, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate baseline rows: %w", err)
	}
	return baselines, nil
}
