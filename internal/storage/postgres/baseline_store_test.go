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

func TestBaselineStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewBaselineStore(pool)
	ctx := context.Background()
	route := domain.RouteKey{Origin: "IST", Destination: "JFK"}

	_, err := store.Get(ctx, route)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	baseline := &domain.RouteBaseline{
		Origin:      "IST",
		Destination: "JFK",
		Mean:        10000,
		M2:          19e6,
		SampleCount: 20,
		UpdatedAt:   1700000000000,
	}
	require.NoError(t, store.Upsert(ctx, baseline))

	retrieved, err := store.Get(ctx, route)
	require.NoError(t, err)
	assert.Equal(t, baseline.Mean, retrieved.Mean)
	assert.Equal(t, baseline.M2, retrieved.M2)
	assert.Equal(t, baseline.SampleCount, retrieved.SampleCount)
	assert.Equal(t, baseline.UpdatedAt, retrieved.UpdatedAt)
}

func TestBaselineStore_UpsertReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewBaselineStore(pool)
	ctx := context.Background()
	route := domain.RouteKey{Origin: "IST", Destination: "JFK"}

	baseline := &domain.RouteBaseline{
		Origin:      "IST",
		Destination: "JFK",
		Mean:        10000,
		M2:          19e6,
		SampleCount: 20,
		UpdatedAt:   1700000000000,
	}
	require.NoError(t, store.Upsert(ctx, baseline))

	baseline.Mean = 9800
	baseline.SampleCount = 25
	baseline.UpdatedAt = 1700000005000
	require.NoError(t, store.Upsert(ctx, baseline))

	retrieved, err := store.Get(ctx, route)
	require.NoError(t, err)
	assert.Equal(t, float64(9800), retrieved.Mean)
	assert.Equal(t, int64(25), retrieved.SampleCount)
	assert.Equal(t, int64(1700000005000), retrieved.UpdatedAt)
}

func TestBaselineStore_List(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewBaselineStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &domain.RouteBaseline{
		Origin: "JFK", Destination: "IST", Mean: 9000, SampleCount: 5, UpdatedAt: 1700000000000,
	}))
	require.NoError(t, store.Upsert(ctx, &domain.RouteBaseline{
		Origin: "IST", Destination: "JFK", Mean: 10000, SampleCount: 20, UpdatedAt: 1700000000000,
	}))

	baselines, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, baselines, 2)

	assert.Equal(t, "IST", baselines[0].Origin)
	assert.Equal(t, "JFK", baselines[1].Origin)
}
