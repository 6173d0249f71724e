package memory

import (
	"context"
	"sort"
	"sync"

	"farewatch/internal/domain"
	"farewatch/internal/storage"
)

// PriceHistoryStore is an in-memory implementation of storage.PriceHistoryStore.
type PriceHistoryStore struct {
	mu   sync.RWMutex
	data []*domain.PricePoint
}

// NewPriceHistoryStore creates a new in-memory price history store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// InsertBulk adds multiple observation points.
func (s *PriceHistoryStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		pointCopy := *p
		s.data = append(s.data, &pointCopy)
	}
	return nil
}

// GetByRoute retrieves points for a route within [start, end] (inclusive),
// ordered by observed_at ASC.
func (s *PriceHistoryStore) GetByRoute(_ context.Context, route domain.RouteKey, start, end int64) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.data {
		if p.Origin != route.Origin || p.Destination != route.Destination {
			continue
		}
		if p.ObservedAt < start || p.ObservedAt > end {
			continue
		}
		pointCopy := *p
		result = append(result, &pointCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt < result[j].ObservedAt
	})

	return result, nil
}
