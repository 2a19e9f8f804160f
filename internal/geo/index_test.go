package geo

import (
	"context"
	"testing"

	"o42-matching/internal/common/logger"
	"o42-matching/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Bengaluru city center and points at known distances from it.
var (
	queryPoint = models.GeoPoint{Longitude: 77.5946, Latitude: 12.9716}

	// ~1.1 km east of the query point.
	nearPoint = models.GeoPoint{Longitude: 77.6046, Latitude: 12.9716}

	// ~15 km east of the query point, outside a 10 km radius.
	farPoint = models.GeoPoint{Longitude: 77.7326, Latitude: 12.9716}
)

func newTestIndex(t *testing.T) (*Index, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewIndex(rdb, logger.NewTestLogger(t)), mr
}

func TestFindAgentsNear_RadiusFilter(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, models.Agent{ID: "agent-near", Tier: models.TierRunner, Location: nearPoint}))
	require.NoError(t, ix.Upsert(ctx, models.Agent{ID: "agent-far", Tier: models.TierTycoon, Location: farPoint}))

	found, err := ix.FindAgentsNear(ctx, queryPoint, 10000)
	require.NoError(t, err)

	require.Len(t, found, 1)
	assert.Equal(t, "agent-near", found[0].ID)
	assert.Equal(t, models.TierRunner, found[0].Tier)
	assert.InDelta(t, 1100, found[0].DistanceMeters, 200)
}

func TestFindAgentsNear_EmptyIsNotError(t *testing.T) {
	ix, _ := newTestIndex(t)

	found, err := ix.FindAgentsNear(context.Background(), queryPoint, 10000)

	require.NoError(t, err)
	assert.NotNil(t, found)
	assert.Empty(t, found)
}

func TestFindAgentsNear_WiderRadiusFindsMore(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, models.Agent{ID: "agent-near", Tier: models.TierStarter, Location: nearPoint}))
	require.NoError(t, ix.Upsert(ctx, models.Agent{ID: "agent-far", Tier: models.TierStarter, Location: farPoint}))

	narrow, err := ix.FindAgentsNear(ctx, queryPoint, 10000)
	require.NoError(t, err)
	wide, err := ix.FindAgentsNear(ctx, queryPoint, 20000)
	require.NoError(t, err)

	assert.Len(t, narrow, 1)
	assert.Len(t, wide, 2)
}

func TestFindAgentsNear_InvalidQueryPoint(t *testing.T) {
	ix, _ := newTestIndex(t)

	_, err := ix.FindAgentsNear(context.Background(), models.GeoPoint{Longitude: 200, Latitude: 95}, 10000)

	assert.Error(t, err)
}

func TestUpsert_InvalidLocationExcludesAgent(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, models.Agent{ID: "agent-ok", Tier: models.TierRunner, Location: nearPoint}))
	// An update with a broken location must drop the agent, not keep the
	// stale position.
	require.NoError(t, ix.Upsert(ctx, models.Agent{
		ID:       "agent-ok",
		Tier:     models.TierRunner,
		Location: models.GeoPoint{Longitude: 500, Latitude: 0},
	}))

	found, err := ix.FindAgentsNear(ctx, queryPoint, 50000)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestUpsert_MoveUpdatesPosition(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, models.Agent{ID: "agent-1", Tier: models.TierRunner, Location: farPoint}))
	require.NoError(t, ix.Upsert(ctx, models.Agent{ID: "agent-1", Tier: models.TierRunner, Location: nearPoint}))

	found, err := ix.FindAgentsNear(ctx, queryPoint, 10000)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "agent-1", found[0].ID)
}

func TestRemove(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, models.Agent{ID: "agent-1", Tier: models.TierTycoon, Location: nearPoint}))
	require.NoError(t, ix.Remove(ctx, "agent-1"))

	found, err := ix.FindAgentsNear(ctx, queryPoint, 50000)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestFindAgentsNear_UnknownTierTolerated(t *testing.T) {
	ix, mr := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, models.Agent{ID: "agent-1", Tier: models.TierRunner, Location: nearPoint}))
	// Simulate a tier entry lost out-of-band; the query must still
	// return the agent with an empty tier.
	mr.HDel("agents:tier", "agent-1")

	found, err := ix.FindAgentsNear(ctx, queryPoint, 10000)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, models.SubscriptionTier(""), found[0].Tier)
}

func TestFindAgentsNear_RedisError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	ix := NewIndex(rdb, logger.NewNoOpLogger())

	mock.ExpectGeoRadius("agents:geo", queryPoint.Longitude, queryPoint.Latitude, &redis.GeoRadiusQuery{
		Radius:   10000,
		Unit:     "m",
		WithDist: true,
	}).SetErr(assert.AnError)

	_, err := ix.FindAgentsNear(context.Background(), queryPoint, 10000)

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
