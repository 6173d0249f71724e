package memory

import (
	"context"
	"sort"
	"sync"

	"farewatch/internal/domain"
	"farewatch/internal/storage"
)

// BaselineStore is an in-memory implementation of storage.BaselineStore.
type BaselineStore struct {
	mu   sync.RWMutex
	data map[domain.RouteKey]*domain.RouteBaseline
}

// NewBaselineStore creates a new in-memory baseline store.
func NewBaselineStore() *BaselineStore {
	return &BaselineStore{
		data: make(map[domain.RouteKey]*domain.RouteBaseline),
	}
}

// Compile-time interface check.
var _ storage.BaselineStore = (*BaselineStore)(nil)

// Get retrieves the baseline for a route. Returns ErrNotFound if the route
// has never been observed.
func (s *BaselineStore) Get(_ context.Context, route domain.RouteKey) (*domain.RouteBaseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.data[route]
	if !exists {
		return nil, storage.ErrNotFound
	}

	baselineCopy := *b
	return &baselineCopy, nil
}

// Upsert creates or replaces the baseline for its route.
func (s *BaselineStore) Upsert(_ context.Context, b *domain.RouteBaseline) error {
	if b == nil || b.Origin == "" || b.Destination == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	baselineCopy := *b
	s.data[b.Route()] = &baselineCopy
	return nil
}

// List retrieves all stored baselines.
func (s *BaselineStore) List(_ context.Context) ([]*domain.RouteBaseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RouteBaseline, 0, len(s.data))
	for _, b := range s.data {
		baselineCopy := *b
		result = append(result, &baselineCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Route().String() < result[j].Route().String()
	})

	return result, nil
}
