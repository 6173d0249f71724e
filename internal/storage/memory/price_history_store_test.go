package memory

import (
	"context"
	"testing"

	"farewatch/internal/domain"
)

func point(origin, destination string, observedAt int64, price float64) *domain.PricePoint {
	return &domain.PricePoint{
		Origin:      origin,
		Destination: destination,
		ObservedAt:  observedAt,
		Price:       price,
		Currency:    "TRY",
	}
}

func TestPriceHistoryStore_GetByRouteWindow(t *testing.T) {
	s := NewPriceHistoryStore()
	ctx := context.Background()
	route := domain.RouteKey{Origin: "IST", Destination: "JFK"}

	err := s.InsertBulk(ctx, []*domain.PricePoint{
		point("IST", "JFK", 3000, 9800),
		point("IST", "JFK", 1000, 10000),
		point("IST", "JFK", 2000, 9900),
		point("JFK", "IST", 1500, 9000),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	points, err := s.GetByRoute(ctx, route, 1000, 2000)
	if err != nil {
		t.Fatalf("GetByRoute failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("points: got %d, want 2", len(points))
	}
	// Window bounds are inclusive and results come back in time order.
	if points[0].ObservedAt != 1000 || points[1].ObservedAt != 2000 {
		t.Errorf("unexpected window contents: %+v", points)
	}
}

func TestPriceHistoryStore_DuplicatesAllowed(t *testing.T) {
	s := NewPriceHistoryStore()
	ctx := context.Background()

	p := point("IST", "JFK", 1000, 10000)
	if err := s.InsertBulk(ctx, []*domain.PricePoint{p, p}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	points, _ := s.GetByRoute(ctx, domain.RouteKey{Origin: "IST", Destination: "JFK"}, 0, 2000)
	if len(points) != 2 {
		t.Errorf("append-only store should keep both rows, got %d", len(points))
	}
}
