package sidewalk

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/bwise1/sidewalk_atlas/internal/geo"
	"github.com/bwise1/sidewalk_atlas/internal/model"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// Importer turns raw OSM ways and nodes into reference sidewalk
// geometries. It runs as a single batch job; re-running with the
// same input is a no-op thanks to idempotent upserts.
type Importer struct {
	store        Store
	cache        *Cache
	offsetMeters float64
}

const DefaultOffsetMeters = 3.0

func NewImporter(store Store, cache *Cache, offsetMeters float64) *Importer {
	if offsetMeters <= 0 {
		offsetMeters = DefaultOffsetMeters
	}
	return &Importer{store: store, cache: cache, offsetMeters: offsetMeters}
}

// directSidewalkHighways are the highway values that mark a
// dedicated pedestrian way.
var directSidewalkHighways = map[string]bool{
	"footway":       true,
	"path":          true,
	"pedestrian":    true,
	"living_street": true,
}

// sidewalkTagSides maps a road's sidewalk tag value to the offset
// sides to generate. An unqualified "yes" generates both, same as
// "both". Values like no/none/separate classify as no sidewalk so a
// corrected tag upstream cannot resurrect stale offsets.
var sidewalkTagSides = map[string][]model.Side{
	"both":  {model.SideLeft, model.SideRight},
	"yes":   {model.SideLeft, model.SideRight},
	"left":  {model.SideLeft},
	"right": {model.SideRight},
}

// ImportBatch classifies each way, generates offsets for
// road-with-sidewalk ways, and upserts everything into the store.
// One malformed way never aborts the batch: per-way failures are
// counted and the run continues. Cancellation is honoured between
// way records.
func (imp *Importer) ImportBatch(ctx context.Context, ways []*osm.Way, nodes map[osm.NodeID]*osm.Node) (model.ImportStats, error) {
	var stats model.ImportStats

	for _, way := range ways {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		line := resolveLine(way, nodes)
		if len(geo.Dedup(line)) < 2 {
			stats.Skipped++
			continue
		}

		tags := tagMap(way.Tags)
		switch {
		case isDirectSidewalk(tags):
			imp.upsertWay(ctx, way, geo.Dedup(line), model.SideNone, tags, &stats)
		case len(sidewalkTagSides[tags["sidewalk"]]) > 0:
			for _, side := range sidewalkTagSides[tags["sidewalk"]] {
				offset, err := geo.OffsetLine(line, imp.signedOffset(side))
				if err != nil {
					// Degenerate or over-span centerlines are data
					// quality issues, not pipeline failures.
					stats.Skipped++
					continue
				}
				generated := withGeneratedFrom(tags, int64(way.ID))
				imp.upsertWay(ctx, way, offset, side, generated, &stats)
			}
		default:
			stats.Skipped++
		}
	}

	if imp.cache != nil && (stats.Imported > 0 || stats.Updated > 0) {
		imp.cache.Invalidate()
	}
	return stats, nil
}

func (imp *Importer) signedOffset(side model.Side) float64 {
	if side == model.SideLeft {
		return imp.offsetMeters
	}
	return -imp.offsetMeters
}

func (imp *Importer) upsertWay(ctx context.Context, way *osm.Way, line orb.LineString, side model.Side, tags map[string]string, stats *model.ImportStats) {
	sw := &model.ReferenceSidewalk{
		SourceID:    int64(way.ID),
		Side:        side,
		Geometry:    line,
		Street:      promoteString(tags, model.TagStreet),
		Surface:     promoteString(tags, model.TagSurface),
		WidthMeters: promoteWidth(tags),
		Tags:        tags,
		Status:      model.StatusActive,
	}

	outcome, err := imp.store.Upsert(ctx, sw)
	if err != nil {
		log.Printf("import: upsert way %d side %s failed: %v", way.ID, side, err)
		stats.Errors++
		return
	}
	switch outcome {
	case UpsertInserted:
		stats.Imported++
	case UpsertUpdated:
		stats.Updated++
	}
}

func isDirectSidewalk(tags map[string]string) bool {
	if directSidewalkHighways[tags["highway"]] {
		return true
	}
	return tags["footway"] == "sidewalk"
}

// resolveLine looks up each way node's coordinates, dropping nodes
// the batch did not carry.
func resolveLine(way *osm.Way, nodes map[osm.NodeID]*osm.Node) orb.LineString {
	line := make(orb.LineString, 0, len(way.Nodes))
	for _, wn := range way.Nodes {
		node, ok := nodes[wn.ID]
		if !ok {
			continue
		}
		line = append(line, orb.Point{node.Lon, node.Lat})
	}
	return line
}

func tagMap(tags osm.Tags) map[string]string {
	m := make(map[string]string, len(tags))
	for _, tag := range tags {
		m[tag.Key] = tag.Value
	}
	return m
}

func withGeneratedFrom(tags map[string]string, sourceID int64) map[string]string {
	out := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		out[k] = v
	}
	out[model.TagGeneratedFrom] = strconv.FormatInt(sourceID, 10)
	return out
}

func promoteString(tags map[string]string, key string) *string {
	if v, ok := tags[key]; ok && strings.TrimSpace(v) != "" {
		return &v
	}
	return nil
}

// promoteWidth parses the OSM width tag leniently: "2", "2.5",
// "2.5 m" all work. Unparseable values stay null rather than
// failing the way.
func promoteWidth(tags map[string]string) *float64 {
	raw, ok := tags[model.TagWidth]
	if !ok {
		return nil
	}
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "m"))
	width, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || width <= 0 {
		return nil
	}
	return &width
}

// SplitElements separates an OSM document into the ways and node
// index ImportBatch consumes.
func SplitElements(o *osm.OSM) ([]*osm.Way, map[osm.NodeID]*osm.Node) {
	if o == nil {
		return nil, nil
	}
	nodes := make(map[osm.NodeID]*osm.Node, len(o.Nodes))
	for _, n := range o.Nodes {
		nodes[n.ID] = n
	}
	return o.Ways, nodes
}
