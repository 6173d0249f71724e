package memory

import (
	"context"
	"sort"
	"sync"

	"farewatch/internal/domain"
	"farewatch/internal/storage"
)

// FareStore is an in-memory implementation of storage.FareStore.
type FareStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FareRecord // keyed by fare_id
}

// NewFareStore creates a new in-memory fare store.
func NewFareStore() *FareStore {
	return &FareStore{
		data: make(map[string]*domain.FareRecord),
	}
}

// Compile-time interface check.
var _ storage.FareStore = (*FareStore)(nil)

// Insert adds a new fare. Returns ErrDuplicateKey if fare_id exists.
func (s *FareStore) Insert(_ context.Context, f *domain.FareRecord) error {
	if f == nil || f.FareID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[f.FareID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	fareCopy := *f
	s.data[f.FareID] = &fareCopy
	return nil
}

// InsertBulk adds multiple fares, skipping duplicates.
func (s *FareStore) InsertBulk(_ context.Context, fares []*domain.FareRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, f := range fares {
		if f == nil || f.FareID == "" {
			return inserted, storage.ErrInvalidInput
		}
		if _, exists := s.data[f.FareID]; exists {
			continue
		}
		fareCopy := *f
		s.data[f.FareID] = &fareCopy
		inserted++
	}
	return inserted, nil
}

// GetByID retrieves a fare by its ID. Returns ErrNotFound if not exists.
func (s *FareStore) GetByID(_ context.Context, fareID string) (*domain.FareRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.data[fareID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	fareCopy := *f
	return &fareCopy, nil
}

// GetByRoute retrieves all fares for a route, ordered by observed_at ASC.
func (s *FareStore) GetByRoute(_ context.Context, route domain.RouteKey) ([]*domain.FareRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FareRecord
	for _, f := range s.data {
		if f.Origin == route.Origin && f.Destination == route.Destination {
			fareCopy := *f
			result = append(result, &fareCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt < result[j].ObservedAt
	})

	return result, nil
}

// GetByRouteAndDateRange retrieves fares for a route departing within [from, to].
func (s *FareStore) GetByRouteAndDateRange(_ context.Context, route domain.RouteKey, from, to domain.Date) ([]*domain.FareRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FareRecord
	for _, f := range s.data {
		if f.Origin != route.Origin || f.Destination != route.Destination {
			continue
		}
		if string(f.DepartureDate) < string(from) || string(f.DepartureDate) > string(to) {
			continue
		}
		fareCopy := *f
		result = append(result, &fareCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].DepartureDate != result[j].DepartureDate {
			return string(result[i].DepartureDate) < string(result[j].DepartureDate)
		}
		return result[i].ObservedAt < result[j].ObservedAt
	})

	return result, nil
}

// ListRoutes returns the distinct directed routes with at least one fare.
func (s *FareStore) ListRoutes(_ context.Context) ([]domain.RouteKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[domain.RouteKey]struct{})
	for _, f := range s.data {
		seen[f.Route()] = struct{}{}
	}

	result := make([]domain.RouteKey, 0, len(seen))
	for r := range seen {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].String() < result[j].String()
	})

	return result, nil
}

// Count returns the total number of stored fares.
func (s *FareStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data)), nil
}

// DeleteObservedBefore removes fares observed before the cutoff (ms).
func (s *FareStore) DeleteObservedBefore(_ context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, f := range s.data {
		if f.ObservedAt < cutoff {
			delete(s.data, id)
			deleted++
		}
	}
	return deleted, nil
}
