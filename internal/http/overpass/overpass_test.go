package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwise1/sidewalk_atlas/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureXML = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="Overpass API">
  <node id="1" lat="37.7650" lon="-122.2440"/>
  <node id="2" lat="37.7650" lon="-122.2420"/>
  <way id="500">
    <nd ref="1"/>
    <nd ref="2"/>
    <tag k="highway" v="footway"/>
  </way>
</osm>`

func testBox() model.BoundingBox {
	return model.BoundingBox{North: 37.78, South: 37.76, East: -122.23, West: -122.25}
}

func TestFetchSidewalkData(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotQuery = r.PostFormValue("data")
		w.Write([]byte(fixtureXML))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 30*time.Second)
	doc, err := client.FetchSidewalkData(context.Background(), testBox())
	require.NoError(t, err)

	require.Len(t, doc.Ways, 1)
	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, "footway", doc.Ways[0].Tags.Find("highway"))
	assert.Contains(t, gotQuery, "sidewalk")
	assert.Contains(t, gotQuery, "37.76")
}

func TestFetchSidewalkDataServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too busy", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 30*time.Second)
	_, err := client.FetchSidewalkData(context.Background(), testBox())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestFetchSidewalkDataHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(fixtureXML))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := NewClient(srv.URL, 30*time.Second)
	_, err := client.FetchSidewalkData(ctx, testBox())
	assert.Error(t, err)
}
