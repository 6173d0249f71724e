// Package baseline maintains per-route running price statistics using
// Welford's online algorithm: single pass, no re-scan of history, no
// catastrophic cancellation from naive sum-of-squares.
package baseline

import (
	"sort"
	"sync"
	"time"

	"farewatch/internal/domain"
)

// Tracker shards baseline state by route key. Updates to one route are
// serialized by that route's shard lock; unrelated routes never contend.
// No store or notifier call ever happens under a shard lock.
type Tracker struct {
	mu     sync.RWMutex
	shards map[domain.RouteKey]*shard
	now    func() time.Time
}

type shard struct {
	mu sync.Mutex
	b  domain.RouteBaseline
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		shards: make(map[domain.RouteKey]*shard),
		now:    time.Now,
	}
}

// Seed loads previously persisted baselines, replacing any in-memory state
// for their routes. Called once at startup before the first tick.
func (t *Tracker) Seed(baselines []*domain.RouteBaseline) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, b := range baselines {
		if b == nil {
			continue
		}
		t.shards[b.Route()] = &shard{b: *b}
	}
}

// getShard returns the shard for a route, creating it on first observation.
func (t *Tracker) getShard(route domain.RouteKey) *shard {
	t.mu.RLock()
	s, ok := t.shards[route]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.shards[route]; ok {
		return s
	}
	s = &shard{b: domain.RouteBaseline{Origin: route.Origin, Destination: route.Destination}}
	t.shards[route] = s
	return s
}

// Observe folds a normalized price into the route's statistics and returns
// the baseline as it was BEFORE the update, so detection always scores a
// price against history and never against itself. The update is atomic:
// the new mean and M2 are computed first, then committed under the shard
// lock in one step.
func (t *Tracker) Observe(route domain.RouteKey, price float64) domain.RouteBaseline {
	s := t.getShard(route)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.b

	next := prev
	next.SampleCount++
	delta := price - next.Mean
	next.Mean += delta / float64(next.SampleCount)
	next.M2 += delta * (price - next.Mean)
	next.UpdatedAt = t.now().UnixMilli()

	s.b = next
	return prev
}

// Get returns the current baseline for a route, if any observation exists.
func (t *Tracker) Get(route domain.RouteKey) (domain.RouteBaseline, bool) {
	t.mu.RLock()
	s, ok := t.shards[route]
	t.mu.RUnlock()
	if !ok {
		return domain.RouteBaseline{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.b.SampleCount == 0 {
		return domain.RouteBaseline{}, false
	}
	return s.b, true
}

// Snapshot returns copies of all baselines with at least one observation,
// sorted by route for deterministic persistence order.
func (t *Tracker) Snapshot() []*domain.RouteBaseline {
	t.mu.RLock()
	shards := make(map[domain.RouteKey]*shard, len(t.shards))
	for k, s := range t.shards {
		shards[k] = s
	}
	t.mu.RUnlock()

	result := make([]*domain.RouteBaseline, 0, len(shards))
	for _, s := range shards {
		s.mu.Lock()
		b := s.b
		s.mu.Unlock()
		if b.SampleCount == 0 {
			continue
		}
		result = append(result, &b)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Route().String() < result[j].Route().String()
	})
	return result
}
