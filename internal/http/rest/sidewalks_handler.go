package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bwise1/sidewalk_atlas/internal/model"
	"github.com/bwise1/sidewalk_atlas/internal/sidewalk"
	"github.com/bwise1/sidewalk_atlas/util"
	"github.com/bwise1/sidewalk_atlas/util/tracing"
	"github.com/bwise1/sidewalk_atlas/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
)

func (api *API) SidewalkRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Method(http.MethodGet, "/", Handler(api.GetReferenceGeometries))
		r.Method(http.MethodPost, "/snap", Handler(api.SnapCoordinates))
		r.Method(http.MethodPost, "/validate", Handler(api.ValidateSegment))
		r.Method(http.MethodPost, "/import", Handler(api.TriggerImport))
	})

	return mux
}

// SnapCoordinates snaps each submitted [lat, lng] coordinate onto
// the nearest reference sidewalk. Output length always equals input
// length: a coordinate with no match keeps its original value and
// carries a per-point error in the metadata.
func (api *API) SnapCoordinates(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	var req model.SnapCoordinatesRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if validateErr := util.ValidateStruct(req); validateErr != nil {
		return respondWithError(validateErr, "invalid snap request", values.BadRequestBody, &tc)
	}
	if idx, ok := firstMalformedCoordinate(req.Coordinates); ok {
		return respondWithError(nil,
			fmt.Sprintf("coordinate %d is malformed: expected [lat, lng] within range", idx),
			values.BadRequestBody, &tc)
	}

	resp := model.SnapCoordinatesResponse{
		SnappedCoordinates: make([][]float64, len(req.Coordinates)),
		Metadata:           make([]model.SnapPointMeta, len(req.Coordinates)),
	}

	for i, pair := range req.Coordinates {
		original := [2]float64{pair[0], pair[1]}
		point := orb.Point{pair[1], pair[0]}
		meta := model.SnapPointMeta{Original: original}

		result, err := api.Engine.Snap(r.Context(), point, req.RadiusMeters)
		switch {
		case err != nil:
			// Fail closed: never snap against an unreachable store.
			meta.Error = "reference data unavailable"
			resp.SnappedCoordinates[i] = pair
		case result == nil:
			meta.Error = "no sidewalk within snapping radius"
			resp.SnappedCoordinates[i] = pair
		default:
			snapped := [2]float64{result.SnappedPoint.Lat(), result.SnappedPoint.Lon()}
			meta.Snapped = &snapped
			meta.ReferenceID = result.ReferenceID.String()
			meta.Street = result.Street
			meta.Distance = util.Float64Ptr(result.DistanceMeters)
			resp.SnappedCoordinates[i] = []float64{snapped[0], snapped[1]}
		}
		resp.Metadata[i] = meta
	}

	return &ServerResponse{
		Message:    "coordinates snapped",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       resp,
	}
}

// ValidateSegment checks a user-drawn point sequence against the
// reference network. Invalid points come back with nearby candidate
// suggestions so the submitter can correct them.
func (api *API) ValidateSegment(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	var req model.ValidateSegmentRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if validateErr := util.ValidateStruct(req); validateErr != nil {
		return respondWithError(validateErr, "invalid validation request", values.BadRequestBody, &tc)
	}
	if idx, ok := firstMalformedCoordinate(req.Coordinates); ok {
		return respondWithError(nil,
			fmt.Sprintf("coordinate %d is malformed: expected [lat, lng] within range", idx),
			values.BadRequestBody, &tc)
	}

	points := coordsToPoints(req.Coordinates)
	result, err := api.Engine.Validate(r.Context(), points, req.BufferMeters)
	if err != nil {
		return respondWithError(err, "segment validation failed", values.Error, &tc)
	}

	if result.IsValid {
		return &ServerResponse{
			Message:    "segment validated",
			Status:     values.Success,
			StatusCode: util.StatusCode(values.Success),
			Data:       model.ValidateSegmentResponse{IsValid: true},
		}
	}

	resp := model.ValidateSegmentResponse{
		IsValid:            false,
		Error:              "one or more points are too far from the sidewalk network",
		InvalidCoordinates: make([][2]float64, 0, len(result.InvalidPoints)),
		Suggestions:        make(map[string][]model.Suggestion, len(result.InvalidPoints)),
	}
	for _, p := range result.InvalidPoints {
		pair := [2]float64{p.Lat(), p.Lon()}
		resp.InvalidCoordinates = append(resp.InvalidCoordinates, pair)

		suggestions, suggestErr := api.Engine.Suggest(r.Context(), p, maxSuggestionsPerPoint)
		if suggestErr != nil {
			continue
		}
		resp.Suggestions[pointKey(pair)] = suggestions
	}

	return &ServerResponse{
		Message:    "segment rejected",
		Status:     values.Unprocessable,
		StatusCode: util.StatusCode(values.Unprocessable),
		Data:       resp,
	}
}

// GetReferenceGeometries returns all active reference sidewalks,
// optionally limited to a north/south/east/west bounding box.
func (api *API) GetReferenceGeometries(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	bounds, err := parseBoundsQuery(r)
	if err != nil {
		return respondWithError(err, err.Error(), values.BadRequestBody, &tc)
	}

	rows, queryErr := api.Store.QueryAll(r.Context(), bounds)
	if queryErr != nil {
		return respondWithError(queryErr, "unable to load reference geometries", values.Error, &tc)
	}

	resp := make([]model.ReferenceGeometryResponse, 0, len(rows))
	for i := range rows {
		resp = append(resp, referenceToResponse(&rows[i]))
	}

	return &ServerResponse{
		Message:    "reference geometries",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       resp,
	}
}

// TriggerImport runs the batch import for a bounding box: fetch raw
// ways and nodes from Overpass, classify and offset them, and upsert
// into the reference store. Re-triggering with the same box is safe.
func (api *API) TriggerImport(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	var box model.BoundingBox
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &box); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if !box.Valid() {
		return respondWithError(nil, "invalid bounding box", values.BadRequestBody, &tc)
	}

	fetchCtx, cancel := context.WithTimeout(r.Context(), api.Config.OverpassTimeout)
	defer cancel()

	doc, fetchErr := api.Overpass.FetchSidewalkData(fetchCtx, box)
	if fetchErr != nil {
		return respondWithError(fetchErr, "unable to fetch source data", values.Unavailable, &tc)
	}

	ways, nodes := sidewalk.SplitElements(doc)
	stats, importErr := api.Importer.ImportBatch(r.Context(), ways, nodes)
	if importErr != nil {
		return respondWithError(importErr, "import aborted", values.Error, &tc)
	}

	return &ServerResponse{
		Message:    "import complete",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       stats,
	}
}
