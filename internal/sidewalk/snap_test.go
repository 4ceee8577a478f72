package sidewalk

import (
	"context"
	"testing"
	"time"

	"github.com/bwise1/sidewalk_atlas/internal/geo"
	"github.com/bwise1/sidewalk_atlas/internal/model"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The fixture line from the Alameda reference set: a 2-point segment
// running roughly northwest.
var fixtureLine = orb.LineString{
	{-122.2416, 37.7652},
	{-122.2420, 37.7660},
}

func newTestEngine(t *testing.T, rows ...*model.ReferenceSidewalk) (*Engine, *MemStore) {
	t.Helper()
	store := NewMemStore()
	for _, row := range rows {
		_, err := store.Upsert(context.Background(), row)
		require.NoError(t, err)
	}
	cache := NewCache(store, time.Minute)
	return NewEngine(store, cache, DefaultSnapRadiusM, DefaultValidateBufferM), store
}

func fixtureRow(sourceID int64) *model.ReferenceSidewalk {
	street := "Santa Clara Ave"
	return &model.ReferenceSidewalk{
		SourceID: sourceID,
		Side:     model.SideNone,
		Geometry: fixtureLine,
		Street:   &street,
	}
}

func TestSnapOntoFixtureSegment(t *testing.T) {
	engine, _ := newTestEngine(t, fixtureRow(100))

	point := orb.Point{-122.2415, 37.7651}
	result, err := engine.Snap(context.Background(), point, 50)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Less(t, result.DistanceMeters, 50.0)
	assert.NotEqual(t, uuid.Nil, result.ReferenceID)
	require.NotNil(t, result.Street)
	assert.Equal(t, "Santa Clara Ave", *result.Street)

	// The snapped point must lie on the fixture segment.
	_, distToLine := geo.ClosestOnLine(result.SnappedPoint, fixtureLine)
	assert.Less(t, distToLine, 0.01)

	// And the reported distance matches the actual distance to the
	// snapped point, rounded to 2 decimals.
	assert.InDelta(t, geo.Distance(point, result.SnappedPoint), result.DistanceMeters, 0.01)
}

func TestSnapNothingInRange(t *testing.T) {
	engine, _ := newTestEngine(t, fixtureRow(100))

	// Several kilometers away from the fixture.
	result, err := engine.Snap(context.Background(), orb.Point{-122.5, 37.9}, 50)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestSnapRadiusBoundary(t *testing.T) {
	engine, _ := newTestEngine(t, fixtureRow(100))

	point := orb.Point{-122.2410, 37.7650}
	_, exact := geo.ClosestOnLine(point, fixtureLine)
	require.Greater(t, exact, 1.0)

	// Exactly at the radius: accepted.
	result, err := engine.Snap(context.Background(), point, exact)
	require.NoError(t, err)
	assert.NotNil(t, result)

	// Just inside the distance: rejected.
	result, err = engine.Snap(context.Background(), point, exact-0.001)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestSnapIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t, fixtureRow(100))
	point := orb.Point{-122.2415, 37.7651}

	first, err := engine.Snap(context.Background(), point, 50)
	require.NoError(t, err)
	second, err := engine.Snap(context.Background(), point, 50)
	require.NoError(t, err)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first, second)
}

func TestSnapTieBreaksOnSmallerID(t *testing.T) {
	smaller := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	larger := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	// Identical geometry under two ids, the smaller id inserted
	// last so map ordering cannot mask a broken tie-break.
	rowLarger := fixtureRow(200)
	rowLarger.ID = larger
	rowSmaller := fixtureRow(201)
	rowSmaller.ID = smaller

	engine, _ := newTestEngine(t, rowLarger, rowSmaller)

	result, err := engine.Snap(context.Background(), orb.Point{-122.2415, 37.7651}, 50)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, smaller, result.ReferenceID)
}

func TestSnapMinimalOverReferenceSet(t *testing.T) {
	far := &model.ReferenceSidewalk{
		SourceID: 300,
		Side:     model.SideNone,
		Geometry: orb.LineString{{-122.2500, 37.7700}, {-122.2510, 37.7710}},
	}
	engine, _ := newTestEngine(t, fixtureRow(100), far)

	point := orb.Point{-122.2415, 37.7651}
	result, err := engine.Snap(context.Background(), point, 5000)
	require.NoError(t, err)
	require.NotNil(t, result)

	// Brute force both geometries and confirm the engine found the
	// global minimum.
	_, dNear := geo.ClosestOnLine(point, fixtureLine)
	_, dFar := geo.ClosestOnLine(point, far.Geometry)
	want := dNear
	if dFar < want {
		want = dFar
	}
	assert.InDelta(t, want, result.DistanceMeters, 0.01)
}

func TestSnapExcludesRetiredGeometries(t *testing.T) {
	engine, store := newTestEngine(t, fixtureRow(100))

	require.NoError(t, store.Retire(context.Background(), 100, model.SideNone))

	result, err := engine.Snap(context.Background(), orb.Point{-122.2415, 37.7651}, 50)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestSnapDefaultRadius(t *testing.T) {
	engine, _ := newTestEngine(t, fixtureRow(100))

	// Zero radius falls back to the configured default of 50m.
	result, err := engine.Snap(context.Background(), orb.Point{-122.2415, 37.7651}, 0)
	require.NoError(t, err)
	assert.NotNil(t, result)
}
