// Package sidewalk implements the reference-geometry store, the
// snap/validate engine, and the OSM import pipeline behind the
// sidewalk matching service.
package sidewalk

import (
	"context"

	"github.com/bwise1/sidewalk_atlas/internal/model"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// ErrStoreUnavailable wraps backing-store failures so callers can
// tell "no data" apart from "store error".
var ErrStoreUnavailable = errors.New("sidewalk: reference store unavailable")

// UpsertOutcome reports what an Upsert actually did.
type UpsertOutcome int

const (
	UpsertInserted UpsertOutcome = iota
	UpsertUpdated
	UpsertUnchanged
)

// Store is the single retrieval strategy behind snapping and
// validation. Backends differ only in how candidates are found; the
// exact closest-point math always runs in process.
//
// Implementations must return geometries ordered by ascending id so
// equal-distance ties resolve deterministically, and must propagate
// storage errors rather than returning an empty result set.
type Store interface {
	// Upsert inserts or replaces a geometry keyed on (SourceID,
	// Side). A zero ID is assigned by the store on first insert and
	// preserved across re-imports.
	Upsert(ctx context.Context, s *model.ReferenceSidewalk) (UpsertOutcome, error)

	// QueryAll returns every active geometry, optionally limited to
	// those intersecting the bounding box.
	QueryAll(ctx context.Context, bounds *model.BoundingBox) ([]model.ReferenceSidewalk, error)

	// QueryNear returns active candidate geometries within
	// radiusMeters of the point. The filter is coarse: it may return
	// extra geometries but never misses one within the radius.
	QueryNear(ctx context.Context, point orb.Point, radiusMeters float64) ([]model.ReferenceSidewalk, error)
}
