package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Side identifies which side of a source way a sidewalk geometry
// belongs to. Directly-mapped sidewalks carry SideNone; geometries
// derived by offsetting a road centerline carry left or right.
type Side string

const (
	SideNone  Side = "none"
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Status marks whether a geometry participates in snap and validate
// queries. Retired rows are kept for audit only.
type Status string

const (
	StatusActive  Status = "active"
	StatusRetired Status = "retired"
)

// Well-known tag keys promoted to first-class columns. Everything
// else in the tag bag passes through opaquely.
const (
	TagStreet        = "name"
	TagSurface       = "surface"
	TagWidth         = "width"
	TagGeneratedFrom = "generatedFrom"
)

// ReferenceSidewalk is an authoritative sidewalk polyline used as
// ground truth for snapping and validation. The (SourceID, Side)
// pair is the natural key across re-imports.
type ReferenceSidewalk struct {
	ID          uuid.UUID         `json:"id"`
	SourceID    int64             `json:"source_id"`
	Side        Side              `json:"side"`
	Geometry    orb.LineString    `json:"-"`
	Street      *string           `json:"street,omitempty"`
	Surface     *string           `json:"surface,omitempty"`
	WidthMeters *float64          `json:"width_meters,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	Status      Status            `json:"status"`
	LastUpdated time.Time         `json:"last_updated"`
}

// Coordinates returns the geometry as [lat, lng] pairs, the shape
// every external surface of this service speaks.
func (s *ReferenceSidewalk) Coordinates() [][]float64 {
	coords := make([][]float64, len(s.Geometry))
	for i, p := range s.Geometry {
		coords[i] = []float64{p.Lat(), p.Lon()}
	}
	return coords
}

// SnapResult is the per-point outcome of a snap query. A nil result
// means nothing was within the configured radius.
type SnapResult struct {
	SnappedPoint   orb.Point `json:"-"`
	ReferenceID    uuid.UUID `json:"reference_id"`
	Street         *string   `json:"street,omitempty"`
	DistanceMeters float64   `json:"distance_meters"`
}

// ValidationResult reports which submitted points, if any, fall
// outside the buffer distance of every reference geometry.
type ValidationResult struct {
	IsValid       bool        `json:"is_valid"`
	InvalidPoints []orb.Point `json:"-"`
	// FailedOpen is set when the reference set was empty or
	// unavailable and all points were accepted by policy rather
	// than by measurement.
	FailedOpen bool `json:"-"`
}

// Suggestion is a nearby candidate point offered for correcting an
// invalid submission coordinate.
type Suggestion struct {
	Point          [2]float64 `json:"point"` // [lat, lng]
	ReferenceID    uuid.UUID  `json:"reference_id"`
	Street         *string    `json:"street,omitempty"`
	DistanceMeters float64    `json:"distance_meters"`
}

// ImportStats summarises one ImportBatch run.
type ImportStats struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// BoundingBox is an axis-aligned lat/lng box used to scope reference
// data fetches and imports.
type BoundingBox struct {
	North float64 `json:"north" validate:"latitude"`
	South float64 `json:"south" validate:"latitude"`
	East  float64 `json:"east" validate:"longitude"`
	West  float64 `json:"west" validate:"longitude"`
}

// Bound converts the box to an orb.Bound (min = SW, max = NE).
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// Valid reports whether the box is well formed and non-degenerate.
func (b BoundingBox) Valid() bool {
	return b.North >= -90 && b.North <= 90 &&
		b.South >= -90 && b.South <= 90 &&
		b.East >= -180 && b.East <= 180 &&
		b.West >= -180 && b.West <= 180 &&
		b.North > b.South && b.East > b.West
}
