package sidewalk

import (
	"context"
	"sort"

	"github.com/bwise1/sidewalk_atlas/internal/geo"
	"github.com/bwise1/sidewalk_atlas/internal/model"
	"github.com/paulmach/orb"
)

const (
	DefaultSnapRadiusM     = 50.0
	DefaultValidateBufferM = 10.0
)

// Engine answers per-request geometry questions against the
// reference store. It is stateless between calls and safe for full
// request parallelism.
type Engine struct {
	store Store
	cache *Cache

	snapRadiusM     float64
	validateBufferM float64
}

func NewEngine(store Store, cache *Cache, snapRadiusM, validateBufferM float64) *Engine {
	if snapRadiusM <= 0 {
		snapRadiusM = DefaultSnapRadiusM
	}
	if validateBufferM <= 0 {
		validateBufferM = DefaultValidateBufferM
	}
	return &Engine{
		store:           store,
		cache:           cache,
		snapRadiusM:     snapRadiusM,
		validateBufferM: validateBufferM,
	}
}

// Snap finds the closest point on the closest active reference
// geometry within radiusMeters of the input point. It returns nil
// when nothing is in range, and an error when the store is
// unreachable: absence of data fails closed rather than snapping
// onto a stale or empty network.
//
// For a fixed store state the result is identical across calls:
// candidates are scanned in ascending id order and only a strictly
// smaller distance replaces the current best, so an exact tie keeps
// the geometry with the smaller id.
func (e *Engine) Snap(ctx context.Context, point orb.Point, radiusMeters float64) (*model.SnapResult, error) {
	if radiusMeters <= 0 {
		radiusMeters = e.snapRadiusM
	}

	candidates, err := e.store.QueryNear(ctx, point, radiusMeters)
	if err != nil {
		return nil, err
	}

	best, ok := closestAcross(point, candidates)
	if !ok || best.distance > radiusMeters {
		return nil, nil
	}

	return &model.SnapResult{
		SnappedPoint:   best.point,
		ReferenceID:    best.geometry.ID,
		Street:         best.geometry.Street,
		DistanceMeters: geo.Round2(best.distance),
	}, nil
}

type nearest struct {
	geometry *model.ReferenceSidewalk
	point    orb.Point
	distance float64
}

// closestAcross returns the globally nearest point over every
// candidate polyline. Candidates are re-sorted by id defensively so
// determinism never depends on backend ordering.
func closestAcross(point orb.Point, candidates []model.ReferenceSidewalk) (nearest, bool) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ID.String() < candidates[j].ID.String()
	})

	var best nearest
	found := false
	for i := range candidates {
		sw := &candidates[i]
		snapped, dist := geo.ClosestOnLine(point, sw.Geometry)
		if !found || dist < best.distance {
			best = nearest{geometry: sw, point: snapped, distance: dist}
			found = true
		}
	}
	return best, found
}
