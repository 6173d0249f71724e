// Package alert suppresses re-notification for fares already alerted at the
// same price bucket within the retention window.
package alert

import (
	"context"
	"fmt"
	"time"

	"farewatch/internal/domain"
	"farewatch/internal/storage"
)

// Deduplicator checks candidate alerts against the persisted alert history.
// Because undelivered alerts are persisted too, an alert that exhausted its
// delivery retries is not re-attempted as a "new" alert next tick.
type Deduplicator struct {
	alerts    storage.AlertStore
	retention time.Duration
	now       func() time.Time
}

// NewDeduplicator creates a Deduplicator with the given retention window.
func NewDeduplicator(alerts storage.AlertStore, retention time.Duration) *Deduplicator {
	return &Deduplicator{
		alerts:    alerts,
		retention: retention,
		now:       time.Now,
	}
}

// Seen reports whether the candidate's dedupe key already exists within the
// retention window.
func (d *Deduplicator) Seen(ctx context.Context, candidate *domain.AlertRecord) (bool, error) {
	since := d.now().Add(-d.retention).UnixMilli()
	exists, err := d.alerts.ExistsDedupeKeySince(ctx, candidate.DedupeKey, since)
	if err != nil {
		return false, fmt.Errorf("dedupe lookup for key %s: %w", candidate.DedupeKey, err)
	}
	return exists, nil
}

// Filter returns the candidates whose dedupe keys are unseen, preserving
// order. A lookup failure drops only the affected candidate; suppression
// errs on the side of not alerting twice.
func (d *Deduplicator) Filter(ctx context.Context, candidates []*domain.AlertRecord) ([]*domain.AlertRecord, int, error) {
	var (
		fresh      []*domain.AlertRecord
		suppressed int
		firstErr   error
	)

	// Keys already accepted in this batch suppress later duplicates too:
	// two observations of the same fare in one tick must not double-alert.
	accepted := make(map[string]struct{})

	for _, c := range candidates {
		if _, dup := accepted[c.DedupeKey]; dup {
			suppressed++
			continue
		}

		seen, err := d.Seen(ctx, c)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			suppressed++
			continue
		}
		if seen {
			suppressed++
			continue
		}

		accepted[c.DedupeKey] = struct{}{}
		fresh = append(fresh, c)
	}

	return fresh, suppressed, firstErr
}
