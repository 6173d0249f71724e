package memory

import (
	"context"
	"sort"
	"sync"

	"farewatch/internal/domain"
	"farewatch/internal/storage"
)

// AlertStore is an in-memory implementation of storage.AlertStore.
type AlertStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AlertRecord // keyed by alert_id
}

// NewAlertStore creates a new in-memory alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{
		data: make(map[string]*domain.AlertRecord),
	}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
func (s *AlertStore) Insert(_ context.Context, a *domain.AlertRecord) error {
	if a == nil || a.AlertID == "" || a.DedupeKey == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.AlertID]; exists {
		return storage.ErrDuplicateKey
	}

	alertCopy := *a
	s.data[a.AlertID] = &alertCopy
	return nil
}

// ExistsDedupeKeySince reports whether any alert with the dedupe key was
// created at or after the since timestamp (ms).
func (s *AlertStore) ExistsDedupeKeySince(_ context.Context, dedupeKey string, since int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.data {
		if a.DedupeKey == dedupeKey && a.CreatedAt >= since {
			return true, nil
		}
	}
	return false, nil
}

// MarkDelivered flags an alert as delivered.
func (s *AlertStore) MarkDelivered(_ context.Context, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.data[alertID]
	if !exists {
		return storage.ErrNotFound
	}
	a.Delivered = true
	return nil
}

// ListRecent retrieves up to limit alerts, newest first.
func (s *AlertStore) ListRecent(_ context.Context, limit int) ([]*domain.AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.AlertRecord, 0, len(s.data))
	for _, a := range s.data {
		alertCopy := *a
		result = append(result, &alertCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].AlertID < result[j].AlertID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Count returns the total number of stored alerts.
func (s *AlertStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data)), nil
}

// DeleteCreatedBefore removes alerts created before the cutoff (ms).
func (s *AlertStore) DeleteCreatedBefore(_ context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, a := range s.data {
		if a.CreatedAt < cutoff {
			delete(s.data, id)
			deleted++
		}
	}
	return deleted, nil
}
