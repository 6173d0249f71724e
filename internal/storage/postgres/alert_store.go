package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"farewatch/internal/domain"
	"farewatch/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

const alertColumns = `
	alert_id, origin, destination, fare_id, previous_price, current_price,
	drop_percent, z_score, currency, dedupe_key, delivered, created_at
`

// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
func (s *AlertStore) Insert(ctx context.Context, a *domain.AlertRecord) error {
	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		a.AlertID,
		a.Origin,
		a.Destination,
		a.FareID,
		a.PreviousPrice,
		a.CurrentPrice,
		a.DropPercent,
		a.ZScore,
		a.Currency,
		a.DedupeKey,
		a.Delivered,
		a.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// ExistsDedupeKeySince reports whether any alert with the dedupe key was
// created at or after the since timestamp (ms).
func (s *AlertStore) ExistsDedupeKeySince(ctx context.Context, dedupeKey string, since int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM alerts WHERE dedupe_key = $1 AND created_at >= $2
		)
	`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, dedupeKey, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("check dedupe key: %w", err)
	}
	return exists, nil
}

// MarkDelivered flags an alert as delivered. Returns ErrNotFound if the
// alert does not exist.
func (s *AlertStore) MarkDelivered(ctx context.Context, alertID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET delivered = TRUE WHERE alert_id = $1`, alertID)
	if err != nil {
		return fmt.Errorf("mark alert delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListRecent retrieves up to limit alerts, newest first.
func (s *AlertStore) ListRecent(ctx context.Context, limit int) ([]*domain.AlertRecord, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		ORDER BY created_at DESC, alert_id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// Count returns the total number of stored alerts.
func (s *AlertStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return count, nil
}

// DeleteCreatedBefore removes alerts created before the cutoff (ms).
func (s *AlertStore) DeleteCreatedBefore(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alerts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete alerts before cutoff: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanAlerts scans multiple rows into a slice of AlertRecord.
func scanAlerts(rows pgx.Rows) ([]*domain.AlertRecord, error) {
	var alerts []*domain.AlertRecord

	for rows.Next() {
		var a domain.AlertRecord
		err := rows.Scan(
			&a.AlertID,
			&a.Origin,
			&a.Destination,
			&a.FareID,
			&a.PreviousPrice,
			&a.CurrentPrice,
			&a.DropPercent,
			&a.ZScore,
			&a.Currency,
			&a.DedupeKey,
			&a.Delivered,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alerts = append(alerts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}

	return alerts, nil
}
