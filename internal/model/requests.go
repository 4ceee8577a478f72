package model

// SnapCoordinatesRequest is the body of POST /sidewalks/snap. Each
// coordinate is a [lat, lng] pair.
type SnapCoordinatesRequest struct {
	Coordinates [][]float64 `json:"coordinates" validate:"required,min=1,max=500"`
	// Optional override of the configured snap radius, in meters.
	RadiusMeters float64 `json:"radius_meters,omitempty" validate:"omitempty,gt=0,lte=1000"`
}

// SnapPointMeta describes the outcome for a single input coordinate.
type SnapPointMeta struct {
	Original    [2]float64  `json:"original"`
	Snapped     *[2]float64 `json:"snapped"`
	ReferenceID string      `json:"reference_id,omitempty"`
	Street      *string     `json:"street,omitempty"`
	Distance    *float64    `json:"distance,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// SnapCoordinatesResponse preserves input order and length: a
// coordinate with no match keeps its original value in
// SnappedCoordinates and carries an error in its metadata entry.
type SnapCoordinatesResponse struct {
	SnappedCoordinates [][]float64     `json:"snappedCoordinates"`
	Metadata           []SnapPointMeta `json:"metadata"`
}

// ValidateSegmentRequest is the body of POST /sidewalks/validate.
type ValidateSegmentRequest struct {
	Coordinates [][]float64 `json:"coordinates" validate:"required,min=1,max=2000"`
	// Optional override of the configured buffer, in meters.
	BufferMeters float64 `json:"buffer_meters,omitempty" validate:"omitempty,gt=0,lte=500"`
}

// ValidateSegmentResponse is returned with a 422 status when any
// coordinate lies outside the buffer of every reference geometry.
type ValidateSegmentResponse struct {
	IsValid            bool                    `json:"is_valid"`
	Error              string                  `json:"error,omitempty"`
	InvalidCoordinates [][2]float64            `json:"invalidCoordinates,omitempty"`
	Suggestions        map[string][]Suggestion `json:"suggestions,omitempty"`
}

// ReferenceGeometryResponse is one reference sidewalk as served by
// GET /sidewalks. Coordinates are [lat, lng]; Polyline is the same
// geometry in the encoded polyline5 wire format for map renderers.
type ReferenceGeometryResponse struct {
	ID          string            `json:"id"`
	SourceID    int64             `json:"source_id"`
	Side        Side              `json:"side"`
	Street      *string           `json:"street,omitempty"`
	Surface     *string           `json:"surface,omitempty"`
	WidthMeters *float64          `json:"width_meters,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	Coordinates [][]float64       `json:"coordinates"`
	Polyline    string            `json:"polyline"`
	LastUpdated string            `json:"last_updated"`
}
