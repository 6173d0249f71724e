package baseline

import (
	"math"
	"sync"
	"testing"

	"farewatch/internal/domain"
)

// batchStats computes mean and sample variance directly for comparison.
func batchStats(xs []float64) (mean, variance float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs) - 1)
	return mean, variance
}

func TestTracker_MatchesBatchComputation(t *testing.T) {
	route := domain.RouteKey{Origin: "IST", Destination: "JFK"}
	prices := []float64{5200, 4800, 5100, 5350, 4990, 5020, 5500, 4750, 5110, 5280}

	tr := NewTracker()
	for _, p := range prices {
		tr.Observe(route, p)
	}

	got, ok := tr.Get(route)
	if !ok {
		t.Fatal("route should have a baseline")
	}

	wantMean, wantVar := batchStats(prices)
	if math.Abs(got.Mean-wantMean) > 1e-9 {
		t.Errorf("mean: got %f, want %f", got.Mean, wantMean)
	}
	if math.Abs(got.Variance()-wantVar) > 1e-9 {
		t.Errorf("variance: got %f, want %f", got.Variance(), wantVar)
	}
	if got.SampleCount != int64(len(prices)) {
		t.Errorf("sample count: got %d, want %d", got.SampleCount, len(prices))
	}
}

func TestTracker_ObserveReturnsPreUpdateBaseline(t *testing.T) {
	route := domain.RouteKey{Origin: "IST", Destination: "JFK"}
	tr := NewTracker()

	prev := tr.Observe(route, 5000)
	if prev.SampleCount != 0 {
		t.Errorf("first observation should see an empty baseline, got count %d", prev.SampleCount)
	}

	prev = tr.Observe(route, 6000)
	if prev.SampleCount != 1 || prev.Mean != 5000 {
		t.Errorf("second observation should see the first-only baseline, got %+v", prev)
	}

	prev = tr.Observe(route, 7000)
	if prev.SampleCount != 2 || prev.Mean != 5500 {
		t.Errorf("third observation should see two samples, got %+v", prev)
	}
}

func TestTracker_Seed(t *testing.T) {
	route := domain.RouteKey{Origin: "IST", Destination: "JFK"}
	tr := NewTracker()
	tr.Seed([]*domain.RouteBaseline{
		{Origin: "IST", Destination: "JFK", Mean: 5000, M2: 19e6, SampleCount: 20},
	})

	prev := tr.Observe(route, 4000)
	if prev.SampleCount != 20 || prev.Mean != 5000 {
		t.Errorf("seeded baseline should be visible pre-update, got %+v", prev)
	}

	got, _ := tr.Get(route)
	if got.SampleCount != 21 {
		t.Errorf("sample count after seeded observe: got %d, want 21", got.SampleCount)
	}
}

func TestTracker_RoutesAreIndependent(t *testing.T) {
	tr := NewTracker()
	a := domain.RouteKey{Origin: "IST", Destination: "JFK"}
	b := domain.RouteKey{Origin: "JFK", Destination: "IST"}

	tr.Observe(a, 5000)
	tr.Observe(b, 100)

	gotA, _ := tr.Get(a)
	gotB, _ := tr.Get(b)
	if gotA.Mean == gotB.Mean {
		t.Error("directions must track separate baselines")
	}
}

func TestTracker_Snapshot(t *testing.T) {
	tr := NewTracker()
	tr.Observe(domain.RouteKey{Origin: "JFK", Destination: "IST"}, 100)
	tr.Observe(domain.RouteKey{Origin: "IST", Destination: "JFK"}, 5000)

	snap := tr.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot length: got %d, want 2", len(snap))
	}
	// Deterministic order for flushing.
	if snap[0].Origin != "IST" {
		t.Errorf("snapshot should be sorted by route, got %s first", snap[0].Origin)
	}
}

func TestTracker_ConcurrentObserve(t *testing.T) {
	route := domain.RouteKey{Origin: "IST", Destination: "JFK"}
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Observe(route, 5000)
			}
		}()
	}
	wg.Wait()

	got, _ := tr.Get(route)
	if got.SampleCount != 800 {
		t.Errorf("sample count: got %d, want 800", got.SampleCount)
	}
	if math.Abs(got.Mean-5000) > 1e-9 {
		t.Errorf("mean: got %f, want 5000", got.Mean)
	}
}
