package clickhouse

import (
	"context"
	"fmt"

	"farewatch/internal/domain"
	"farewatch/internal/storage"
)

// PriceHistoryStore implements storage.PriceHistoryStore using ClickHouse.
// Duplicate observation points are tolerated; the table is an append-only
// timeseries and the pipeline never rereads points it wrote in the same
// tick.
type PriceHistoryStore struct {
	conn *Conn
}

// NewPriceHistoryStore creates a new PriceHistoryStore.
func NewPriceHistoryStore(conn *Conn) *PriceHistoryStore {
	return &PriceHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// InsertBulk adds multiple observation points in a single batch.
func (s *PriceHistoryStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_history (
			origin, destination, observed_at, price, currency
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.Origin, p.Destination, uint64(p.ObservedAt), p.Price, p.Currency,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRoute retrieves points for a route within [start, end] (ms,
// inclusive), ordered by observed_at ASC.
func (s *PriceHistoryStore) GetByRoute(ctx context.Context, route domain.RouteKey, start, end int64) ([]*domain.PricePoint, error) {
	query := `
		SELECT origin, destination, observed_at, price, currency
		FROM price_history
		WHERE origin = ? AND destination = ?
		  AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, route.Origin, route.Destination, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("get price history by route: %w", err)
	}
	defer rows.Close()

	var points []*domain.PricePoint
	for rows.Next() {
		var (
			p          domain.PricePoint
			observedAt uint64
		)
		if err := rows.Scan(&p.Origin, &p.Destination, &observedAt, &p.Price, &p.Currency); err != nil {
			return nil, fmt.Errorf("scan price history row: %w", err)
		}
		p.ObservedAt = int64(observedAt)
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price history rows: %w", err)
	}
	return points, nil
}
