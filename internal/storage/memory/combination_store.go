package memory

import (
	"context"
	"sort"
	"sync"

	"farewatch/internal/domain"
	"farewatch/internal/storage"
)

// CombinationStore is an in-memory implementation of storage.CombinationStore.
type CombinationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FareCombination // keyed by combination_id
}

// NewCombinationStore creates a new in-memory combination store.
func NewCombinationStore() *CombinationStore {
	return &CombinationStore{
		data: make(map[string]*domain.FareCombination),
	}
}

// Compile-time interface check.
var _ storage.CombinationStore = (*CombinationStore)(nil)

// Insert adds a new combination. Returns ErrDuplicateKey if combination_id exists.
func (s *CombinationStore) Insert(_ context.Context, c *domain.FareCombination) error {
	if c == nil || c.CombinationID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.CombinationID]; exists {
		return storage.ErrDuplicateKey
	}

	comboCopy := *c
	s.data[c.CombinationID] = &comboCopy
	return nil
}

// GetByRoute retrieves combinations whose outbound leg flies the given route,
// ordered by total_price ASC.
func (s *CombinationStore) GetByRoute(_ context.Context, route domain.RouteKey) ([]*domain.FareCombination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FareCombination
	for _, c := range s.data {
		if c.Outbound.Origin == route.Origin && c.Outbound.Destination == route.Destination {
			comboCopy := *c
			result = append(result, &comboCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalPrice != result[j].TotalPrice {
			return result[i].TotalPrice < result[j].TotalPrice
		}
		return result[i].CombinationID < result[j].CombinationID
	})

	return result, nil
}

// Count returns the total number of stored combinations.
func (s *CombinationStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data)), nil
}

// DeleteCreatedBefore removes combinations created before the cutoff (ms).
func (s *CombinationStore) DeleteCreatedBefore(_ context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, c := range s.data {
		if c.CreatedAt < cutoff {
			delete(s.data, id)
			deleted++
		}
	}
	return deleted, nil
}
