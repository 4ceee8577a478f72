package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwise1/sidewalk_atlas/config"
	"github.com/bwise1/sidewalk_atlas/internal/http/overpass"
	"github.com/bwise1/sidewalk_atlas/internal/model"
	"github.com/bwise1/sidewalk_atlas/internal/sidewalk"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Message string          `json:"message"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
}

func newTestAPI(t *testing.T, rows ...*model.ReferenceSidewalk) (*API, *sidewalk.MemStore) {
	t.Helper()

	store := sidewalk.NewMemStore()
	for _, row := range rows {
		_, err := store.Upsert(context.Background(), row)
		require.NoError(t, err)
	}
	cache := sidewalk.NewCache(store, time.Minute)

	api := &API{
		Config:   &config.Config{Port: 0, OverpassTimeout: 5 * time.Second},
		Store:    store,
		Engine:   sidewalk.NewEngine(store, cache, sidewalk.DefaultSnapRadiusM, sidewalk.DefaultValidateBufferM),
		Importer: sidewalk.NewImporter(store, cache, sidewalk.DefaultOffsetMeters),
	}
	return api, store
}

func fixtureReference() *model.ReferenceSidewalk {
	street := "Santa Clara Ave"
	return &model.ReferenceSidewalk{
		SourceID: 100,
		Side:     model.SideNone,
		Geometry: orb.LineString{{-122.2416, 37.7652}, {-122.2420, 37.7660}},
		Street:   &street,
	}
}

func doRequest(t *testing.T, api *API, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	api.setUpServerHandler().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && json.Valid(rec.Body.Bytes()) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestSnapEndpoint(t *testing.T) {
	api, _ := newTestAPI(t, fixtureReference())

	rec, env := doRequest(t, api, http.MethodPost, "/sidewalks/snap", model.SnapCoordinatesRequest{
		Coordinates: [][]float64{
			{37.7651, -122.2415}, // near the fixture
			{37.9, -122.5},       // kilometers away
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.SnapCoordinatesResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))

	require.Len(t, resp.SnappedCoordinates, 2, "output length equals input length")
	require.Len(t, resp.Metadata, 2)

	// First point snapped onto the reference.
	require.NotNil(t, resp.Metadata[0].Snapped)
	assert.NotEmpty(t, resp.Metadata[0].ReferenceID)
	require.NotNil(t, resp.Metadata[0].Distance)
	assert.Less(t, *resp.Metadata[0].Distance, 50.0)
	assert.Empty(t, resp.Metadata[0].Error)

	// Second point keeps its original coordinate and carries an error.
	assert.Nil(t, resp.Metadata[1].Snapped)
	assert.NotEmpty(t, resp.Metadata[1].Error)
	assert.Equal(t, []float64{37.9, -122.5}, resp.SnappedCoordinates[1])
}

func TestSnapEndpointRejectsMalformedCoordinate(t *testing.T) {
	api, _ := newTestAPI(t, fixtureReference())

	rec, _ := doRequest(t, api, http.MethodPost, "/sidewalks/snap", model.SnapCoordinatesRequest{
		Coordinates: [][]float64{{95.0, -122.2415}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, api, http.MethodPost, "/sidewalks/snap", model.SnapCoordinatesRequest{
		Coordinates: [][]float64{{37.7651}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSnapEndpointRejectsEmptyBody(t *testing.T) {
	api, _ := newTestAPI(t, fixtureReference())

	rec, _ := doRequest(t, api, http.MethodPost, "/sidewalks/snap", model.SnapCoordinatesRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateEndpointAccepts(t *testing.T) {
	api, _ := newTestAPI(t, fixtureReference())

	rec, env := doRequest(t, api, http.MethodPost, "/sidewalks/validate", model.ValidateSegmentRequest{
		Coordinates: [][]float64{{37.7652, -122.2416}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ValidateSegmentResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.True(t, resp.IsValid)
}

func TestValidateEndpointRejectsWithSuggestions(t *testing.T) {
	api, _ := newTestAPI(t, fixtureReference())

	rec, env := doRequest(t, api, http.MethodPost, "/sidewalks/validate", model.ValidateSegmentRequest{
		Coordinates: [][]float64{{37.9, -122.5}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp model.ValidateSegmentResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))

	assert.False(t, resp.IsValid)
	assert.NotEmpty(t, resp.Error)
	require.Len(t, resp.InvalidCoordinates, 1)
	assert.Equal(t, [2]float64{37.9, -122.5}, resp.InvalidCoordinates[0])

	suggestions := resp.Suggestions[pointKey(resp.InvalidCoordinates[0])]
	require.NotEmpty(t, suggestions)
	assert.LessOrEqual(t, len(suggestions), maxSuggestionsPerPoint)
}

func TestReferenceFetchEndpoint(t *testing.T) {
	api, _ := newTestAPI(t, fixtureReference())

	rec, env := doRequest(t, api, http.MethodGet, "/sidewalks/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []model.ReferenceGeometryResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Len(t, resp, 1)

	assert.Equal(t, int64(100), resp[0].SourceID)
	assert.Equal(t, model.SideNone, resp[0].Side)
	assert.Len(t, resp[0].Coordinates, 2)
	assert.NotEmpty(t, resp[0].Polyline)
	assert.Equal(t, []float64{37.7652, -122.2416}, resp[0].Coordinates[0])
}

func TestReferenceFetchEndpointBounds(t *testing.T) {
	api, _ := newTestAPI(t, fixtureReference())

	rec, env := doRequest(t, api, http.MethodGet,
		"/sidewalks/?north=38.0&south=37.7&east=-122.2&west=-122.3", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []model.ReferenceGeometryResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Len(t, resp, 1)

	// A box away from the fixture returns nothing.
	rec, env = doRequest(t, api, http.MethodGet,
		"/sidewalks/?north=38.2&south=38.1&east=-121.0&west=-121.1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Empty(t, resp)

	// Partial bounds are rejected.
	rec, _ = doRequest(t, api, http.MethodGet, "/sidewalks/?north=38.0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

const overpassFixtureXML = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="Overpass API">
  <node id="1" lat="37.7650" lon="-122.2440"/>
  <node id="2" lat="37.7650" lon="-122.2420"/>
  <way id="600">
    <nd ref="1"/>
    <nd ref="2"/>
    <tag k="highway" v="residential"/>
    <tag k="sidewalk" v="both"/>
  </way>
</osm>`

func TestImportEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(overpassFixtureXML))
	}))
	defer srv.Close()

	api, store := newTestAPI(t)
	api.Overpass = overpass.NewClient(srv.URL, 30*time.Second)

	box := model.BoundingBox{North: 37.78, South: 37.76, East: -122.23, West: -122.25}

	rec, env := doRequest(t, api, http.MethodPost, "/sidewalks/import", box)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats model.ImportStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 2, stats.Imported, "sidewalk=both yields left and right offsets")

	rows, err := store.QueryAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// Re-triggering is safe and imports nothing new.
	rec, env = doRequest(t, api, http.MethodPost, "/sidewalks/import", box)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Zero(t, stats.Imported)
}

func TestImportEndpointRejectsBadBox(t *testing.T) {
	api, _ := newTestAPI(t)

	rec, _ := doRequest(t, api, http.MethodPost, "/sidewalks/import",
		model.BoundingBox{North: 37.0, South: 38.0, East: -122.0, West: -121.0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportEndpointUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	api, _ := newTestAPI(t)
	api.Overpass = overpass.NewClient(srv.URL, 30*time.Second)

	rec, _ := doRequest(t, api, http.MethodPost, "/sidewalks/import",
		model.BoundingBox{North: 37.78, South: 37.76, East: -122.23, West: -122.25})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
