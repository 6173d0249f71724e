package fetch

import (
	"context"
	"testing"
	"time"

	"farewatch/internal/domain"
)

func fixedClock() time.Time {
	return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestStubSource_OneFarePerDay(t *testing.T) {
	s := &StubSource{Now: fixedClock}
	q := Query{
		Route:      domain.RouteKey{Origin: "IST", Destination: "JFK"},
		DepartFrom: "2026-06-10",
		DepartTo:   "2026-06-14",
	}

	fares, err := s.Fetch(context.Background(), q)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(fares) != 5 {
		t.Fatalf("fares: got %d, want 5 (window is inclusive)", len(fares))
	}
	for i, f := range fares {
		if f.Origin != "IST" || f.Destination != "JFK" {
			t.Errorf("fare %d: wrong route %s-%s", i, f.Origin, f.Destination)
		}
		if f.Currency != "TRY" {
			t.Errorf("fare %d: default currency got %s, want TRY", i, f.Currency)
		}
		if !f.PriceValid() {
			t.Errorf("fare %d: generated price %v is not valid", i, f.Price)
		}
		if f.FareID == "" {
			t.Errorf("fare %d: missing fare ID", i)
		}
	}
	if fares[0].DepartureDate != "2026-06-10" || fares[4].DepartureDate != "2026-06-14" {
		t.Errorf("unexpected date coverage: %s .. %s", fares[0].DepartureDate, fares[4].DepartureDate)
	}
}

func TestStubSource_Deterministic(t *testing.T) {
	s := &StubSource{Now: fixedClock}
	q := Query{
		Route:      domain.RouteKey{Origin: "IST", Destination: "JFK"},
		DepartFrom: "2026-06-10",
		DepartTo:   "2026-06-12",
	}

	first, err := s.Fetch(context.Background(), q)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	second, err := s.Fetch(context.Background(), q)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	for i := range first {
		if first[i].Price != second[i].Price {
			t.Errorf("fare %d: prices differ across runs: %v vs %v", i, first[i].Price, second[i].Price)
		}
		if first[i].FareID != second[i].FareID {
			t.Errorf("fare %d: fare IDs differ across runs", i)
		}
	}
}

func TestStubSource_PricesVaryByDate(t *testing.T) {
	s := &StubSource{Now: fixedClock, BasePrice: 5000}
	q := Query{
		Route:      domain.RouteKey{Origin: "IST", Destination: "JFK"},
		DepartFrom: "2026-06-10",
		DepartTo:   "2026-06-20",
	}

	fares, err := s.Fetch(context.Background(), q)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	distinct := make(map[float64]struct{})
	for _, f := range fares {
		distinct[f.Price] = struct{}{}
		if f.Price < 5000 || f.Price >= 6000 {
			t.Errorf("price %v outside expected band [5000, 6000)", f.Price)
		}
	}
	if len(distinct) < 2 {
		t.Error("expected price variation across departure dates")
	}
}

func TestStubSource_InvalidWindow(t *testing.T) {
	s := &StubSource{Now: fixedClock}
	q := Query{
		Route:      domain.RouteKey{Origin: "IST", Destination: "JFK"},
		DepartFrom: "not-a-date",
		DepartTo:   "2026-06-12",
	}
	if _, err := s.Fetch(context.Background(), q); err == nil {
		t.Error("expected an error for a malformed window")
	}
}
