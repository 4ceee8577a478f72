package overpass

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwise1/sidewalk_atlas/internal/model"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
)

// Client fetches raw sidewalk source data from an Overpass API
// endpoint. Every request carries a bounded timeout; retries are the
// caller's concern.
type Client struct {
	BaseURL string
	Client  *http.Client
}

// NewClient creates a new Overpass client instance
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		log.Println("Warning: Overpass base URL is empty.")
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

// sidewalkQuery selects dedicated pedestrian ways plus roads tagged
// with a sidewalk, and pulls the node coordinates they reference.
// Overpass bbox order is (south,west,north,east).
const sidewalkQuery = `
[out:xml][timeout:%d];
(
  way["highway"~"^(footway|path|pedestrian|living_street)$"](%f,%f,%f,%f);
  way["footway"="sidewalk"](%f,%f,%f,%f);
  way["highway"]["sidewalk"~"^(both|left|right|yes)$"](%f,%f,%f,%f);
);
out body;
>;
out skel qt;
`

// FetchSidewalkData retrieves every way and node relevant to
// sidewalk import within the bounding box.
func (c *Client) FetchSidewalkData(ctx context.Context, box model.BoundingBox) (*osm.OSM, error) {
	// Leave the server a little less time than our own deadline.
	serverTimeout := int(c.Client.Timeout.Seconds()) - 5
	if serverTimeout < 25 {
		serverTimeout = 25
	}

	s, w, n, e := box.South, box.West, box.North, box.East
	query := fmt.Sprintf(sidewalkQuery,
		serverTimeout,
		s, w, n, e,
		s, w, n, e,
		s, w, n, e,
	)

	form := url.Values{}
	form.Set("data", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "building overpass request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "overpass request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("overpass returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var doc osm.OSM
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decoding overpass response")
	}

	log.Printf("overpass: fetched %d ways and %d nodes for box (%.4f,%.4f)-(%.4f,%.4f)",
		len(doc.Ways), len(doc.Nodes), box.South, box.West, box.North, box.East)
	return &doc, nil
}
