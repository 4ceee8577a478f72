package sidewalk

import (
	"context"
	"log"
	"sort"

	"github.com/bwise1/sidewalk_atlas/internal/geo"
	"github.com/bwise1/sidewalk_atlas/internal/model"
	"github.com/paulmach/orb"
)

// Validate checks that every submitted point lies within
// bufferMeters of some active reference geometry. Points are judged
// independently; no point-to-point connectivity is required.
//
// When the reference set is empty or unreachable the validator fails
// OPEN: absence of data must never block a contribution. The result
// carries FailedOpen so telemetry can tell this apart from a genuine
// all-points-validated success.
func (e *Engine) Validate(ctx context.Context, points []orb.Point, bufferMeters float64) (*model.ValidationResult, error) {
	if bufferMeters <= 0 {
		bufferMeters = e.validateBufferM
	}

	snap, err := e.cache.Get(ctx)
	if err != nil {
		log.Printf("validation failing open: reference store unavailable: %v", err)
		return &model.ValidationResult{IsValid: true, FailedOpen: true}, nil
	}
	if len(snap.Geometries) == 0 {
		log.Println("validation failing open: reference set is empty")
		return &model.ValidationResult{IsValid: true, FailedOpen: true}, nil
	}

	var invalid []orb.Point
	for _, p := range points {
		if minDistanceToSet(p, snap.Geometries) > bufferMeters {
			invalid = append(invalid, p)
		}
	}

	return &model.ValidationResult{
		IsValid:       len(invalid) == 0,
		InvalidPoints: invalid,
	}, nil
}

// minDistanceToSet runs the exact closest-point computation against
// the full set, with no radius pre-filter that could miss a match.
func minDistanceToSet(p orb.Point, set []model.ReferenceSidewalk) float64 {
	best := -1.0
	for i := range set {
		_, dist := geo.ClosestOnLine(p, set[i].Geometry)
		if best < 0 || dist < best {
			best = dist
		}
	}
	return best
}

// Suggest returns up to limit nearby candidate points for correcting
// an invalid coordinate, one per reference geometry, sorted by
// distance with id as the tie-break.
func (e *Engine) Suggest(ctx context.Context, point orb.Point, limit int) ([]model.Suggestion, error) {
	snap, err := e.cache.Get(ctx)
	if err != nil {
		return nil, err
	}

	suggestions := make([]model.Suggestion, 0, len(snap.Geometries))
	for i := range snap.Geometries {
		sw := &snap.Geometries[i]
		snapped, dist := geo.ClosestOnLine(point, sw.Geometry)
		suggestions = append(suggestions, model.Suggestion{
			Point:          [2]float64{snapped.Lat(), snapped.Lon()},
			ReferenceID:    sw.ID,
			Street:         sw.Street,
			DistanceMeters: geo.Round2(dist),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].DistanceMeters != suggestions[j].DistanceMeters {
			return suggestions[i].DistanceMeters < suggestions[j].DistanceMeters
		}
		return suggestions[i].ReferenceID.String() < suggestions[j].ReferenceID.String()
	})

	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}
