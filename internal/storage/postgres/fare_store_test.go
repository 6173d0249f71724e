package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farewatch/internal/domain"
	"farewatch/internal/storage"
	"farewatch/internal/storage/postgres"
)

func newFare(id string, origin, destination string, date domain.Date, observedAt int64) *domain.FareRecord {
	return &domain.FareRecord{
		FareID:          id,
		Origin:          origin,
		Destination:     destination,
		DepartureDate:   date,
		Price:           12500,
		Currency:        "TRY",
		Airline:         "TK",
		DurationMinutes: 620,
		Stops:           0,
		ObservedAt:      observedAt,
		CreatedAt:       observedAt,
	}
}

func TestFareStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewFareStore(pool)
	ctx := context.Background()

	fare := newFare("fare-001", "IST", "JFK", "2026-06-10", 1700000000000)
	fare.ReturnDate = ""
	fare.Stops = 1

	require.NoError(t, store.Insert(ctx, fare))

	retrieved, err := store.GetByID(ctx, "fare-001")
	require.NoError(t, err)

	assert.Equal(t, fare.FareID, retrieved.FareID)
	assert.Equal(t, fare.Origin, retrieved.Origin)
	assert.Equal(t, fare.Destination, retrieved.Destination)
	assert.Equal(t, fare.DepartureDate, retrieved.DepartureDate)
	assert.Equal(t, fare.Price, retrieved.Price)
	assert.Equal(t, fare.Currency, retrieved.Currency)
	assert.Equal(t, fare.Airline, retrieved.Airline)
	assert.Equal(t, fare.DurationMinutes, retrieved.DurationMinutes)
	assert.Equal(t, fare.Stops, retrieved.Stops)
	assert.Equal(t, fare.ObservedAt, retrieved.ObservedAt)
	assert.False(t, retrieved.RoundTrip)
}

func TestFareStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewFareStore(pool)
	ctx := context.Background()

	fare := newFare("fare-dup", "IST", "JFK", "2026-06-10", 1700000000000)
	require.NoError(t, store.Insert(ctx, fare))

	err := store.Insert(ctx, fare)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestFareStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewFareStore(pool)

	_, err := store.GetByID(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFareStore_InsertBulk(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewFareStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newFare("bulk-1", "IST", "JFK", "2026-06-10", 1700000000000)))

	inserted, err := store.InsertBulk(ctx, []*domain.FareRecord{
		newFare("bulk-1", "IST", "JFK", "2026-06-10", 1700000000000), // duplicate
		newFare("bulk-2", "IST", "JFK", "2026-06-11", 1700000001000),
		newFare("bulk-3", "JFK", "IST", "2026-06-20", 1700000002000),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestFareStore_GetByRoute(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewFareStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newFare("r-2", "IST", "JFK", "2026-06-12", 1700000002000)))
	require.NoError(t, store.Insert(ctx, newFare("r-1", "IST", "JFK", "2026-06-10", 1700000001000)))
	require.NoError(t, store.Insert(ctx, newFare("r-3", "JFK", "IST", "2026-06-20", 1700000003000)))

	fares, err := store.GetByRoute(ctx, domain.RouteKey{Origin: "IST", Destination: "JFK"})
	require.NoError(t, err)
	require.Len(t, fares, 2)

	// Ordered by observation time.
	assert.Equal(t, "r-1", fares[0].FareID)
	assert.Equal(t, "r-2", fares[1].FareID)
}

func TestFareStore_GetByRouteAndDateRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewFareStore(pool)
	ctx := context.Background()
	route := domain.RouteKey{Origin: "IST", Destination: "JFK"}

	require.NoError(t, store.Insert(ctx, newFare("d-1", "IST", "JFK", "2026-06-05", 1700000001000)))
	require.NoError(t, store.Insert(ctx, newFare("d-2", "IST", "JFK", "2026-06-10", 1700000002000)))
	require.NoError(t, store.Insert(ctx, newFare("d-3", "IST", "JFK", "2026-06-15", 1700000003000)))

	fares, err := store.GetByRouteAndDateRange(ctx, route, "2026-06-06", "2026-06-14")
	require.NoError(t, err)
	require.Len(t, fares, 1)
	assert.Equal(t, "d-2", fares[0].FareID)

	fares, err = store.GetByRouteAndDateRange(ctx, route, "2026-06-05", "2026-06-15")
	require.NoError(t, err)
	assert.Len(t, fares, 3)
}

func TestFareStore_ListRoutes(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewFareStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newFare("l-1", "IST", "JFK", "2026-06-10", 1700000001000)))
	require.NoError(t, store.Insert(ctx, newFare("l-2", "IST", "JFK", "2026-06-11", 1700000002000)))
	require.NoError(t, store.Insert(ctx, newFare("l-3", "JFK", "IST", "2026-06-20", 1700000003000)))

	routes, err := store.ListRoutes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, domain.RouteKey{Origin: "IST", Destination: "JFK"}, routes[0])
	assert.Equal(t, domain.RouteKey{Origin: "JFK", Destination: "IST"}, routes[1])
}

func TestFareStore_DeleteObservedBefore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewFareStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newFare("old", "IST", "JFK", "2026-06-10", 1700000000000)))
	require.NoError(t, store.Insert(ctx, newFare("new", "IST", "JFK", "2026-06-11", 1700000005000)))

	deleted, err := store.DeleteObservedBefore(ctx, 1700000001000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.GetByID(ctx, "old")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetByID(ctx, "new")
	assert.NoError(t, err)
}

func TestFareStore_SentinelPricesRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewFareStore(pool)
	ctx := context.Background()

	noFlights := newFare("s-1", "IST", "JFK", "2026-06-10", 1700000001000)
	noFlights.Price = domain.PriceNoFlights
	noFlights.Currency = ""
	fetchError := newFare("s-2", "IST", "JFK", "2026-06-11", 1700000002000)
	fetchError.Price = domain.PriceFetchError
	fetchError.Currency = ""

	require.NoError(t, store.Insert(ctx, noFlights))
	require.NoError(t, store.Insert(ctx, fetchError))

	got, err := store.GetByID(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PriceNoFlights, got.Price)

	got, err = store.GetByID(ctx, "s-2")
	require.NoError(t, err)
	assert.Equal(t, domain.PriceFetchError, got.Price)
}
