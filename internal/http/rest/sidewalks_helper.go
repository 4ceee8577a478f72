package rest

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bwise1/sidewalk_atlas/internal/model"
	"github.com/bwise1/sidewalk_atlas/util"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// maxSuggestionsPerPoint caps the correction candidates returned for
// each invalid coordinate.
const maxSuggestionsPerPoint = 5

func firstMalformedCoordinate(coords [][]float64) (int, bool) {
	for i, pair := range coords {
		if !util.ValidCoordinate(pair) {
			return i, true
		}
	}
	return 0, false
}

func coordsToPoints(coords [][]float64) []orb.Point {
	points := make([]orb.Point, len(coords))
	for i, pair := range coords {
		points[i] = orb.Point{pair[1], pair[0]}
	}
	return points
}

// pointKey renders a [lat, lng] pair as the map key used for
// per-point suggestions.
func pointKey(pair [2]float64) string {
	return fmt.Sprintf("%.6f,%.6f", pair[0], pair[1])
}

// parseBoundsQuery reads the optional north/south/east/west query
// parameters. Either all four are present or none.
func parseBoundsQuery(r *http.Request) (*model.BoundingBox, error) {
	q := r.URL.Query()
	raw := []string{q.Get("north"), q.Get("south"), q.Get("east"), q.Get("west")}

	present := 0
	for _, v := range raw {
		if v != "" {
			present++
		}
	}
	if present == 0 {
		return nil, nil
	}
	if present != 4 {
		return nil, errors.New("bounding box requires all of north, south, east, west")
	}

	vals := make([]float64, 4)
	for i, v := range raw {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errors.Errorf("invalid bounding box value %q", v)
		}
		vals[i] = parsed
	}

	box := &model.BoundingBox{North: vals[0], South: vals[1], East: vals[2], West: vals[3]}
	if !box.Valid() {
		return nil, errors.New("invalid bounding box")
	}
	return box, nil
}

func referenceToResponse(sw *model.ReferenceSidewalk) model.ReferenceGeometryResponse {
	coords := sw.Coordinates()
	return model.ReferenceGeometryResponse{
		ID:          sw.ID.String(),
		SourceID:    sw.SourceID,
		Side:        sw.Side,
		Street:      sw.Street,
		Surface:     sw.Surface,
		WidthMeters: sw.WidthMeters,
		Tags:        sw.Tags,
		Coordinates: coords,
		Polyline:    util.EncodePolyLines(coords),
		LastUpdated: sw.LastUpdated.UTC().Format(time.RFC3339),
	}
}
