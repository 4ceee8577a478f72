// Package geo holds the planar geometry math behind snapping and
// offset generation. Points are orb.Point values in [lng, lat] order.
//
// Exact computations run in a local equirectangular projection
// anchored near the inputs; at the scales this service works at
// (tens of meters around a city block) the projection error is far
// below the distance thresholds involved. Measured distances use the
// same spherical metric as the candidate pre-filter so that radius
// comparisons are consistent end to end.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

const (
	earthRadiusM = 6378137.0
	degToRad     = math.Pi / 180.0
	radToDeg     = 180.0 / math.Pi
)

// Distance returns the spherical distance between two points in
// meters. All radius and buffer comparisons in this module use this
// metric.
func Distance(a, b orb.Point) float64 {
	return orbgeo.Distance(a, b)
}

// Round2 rounds a distance to 2 decimal places for presentation.
func Round2(meters float64) float64 {
	return math.Round(meters*100) / 100
}

// toPlane projects p into a local equirectangular plane anchored at
// origin. Units are meters east (x) and north (y) of the origin.
func toPlane(p, origin orb.Point) (x, y float64) {
	cosLat := math.Cos(origin.Lat() * degToRad)
	x = (p.Lon() - origin.Lon()) * degToRad * cosLat * earthRadiusM
	y = (p.Lat() - origin.Lat()) * degToRad * earthRadiusM
	return x, y
}

// fromPlane converts local plane coordinates back to lng/lat.
func fromPlane(x, y float64, origin orb.Point) orb.Point {
	cosLat := math.Cos(origin.Lat() * degToRad)
	lon := origin.Lon() + (x/(earthRadiusM*cosLat))*radToDeg
	lat := origin.Lat() + (y/earthRadiusM)*radToDeg
	return orb.Point{lon, lat}
}

// ClosestPointOnSegment returns the point on segment [a, b] closest
// to p, clamped to the segment endpoints.
func ClosestPointOnSegment(p, a, b orb.Point) orb.Point {
	ax, ay := toPlane(a, a)
	bx, by := toPlane(b, a)
	px, py := toPlane(p, a)

	dx, dy := bx-ax, by-ay
	segLenSq := dx*dx + dy*dy
	if segLenSq == 0 {
		return a
	}

	t := ((px-ax)*dx + (py-ay)*dy) / segLenSq
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return fromPlane(ax+t*dx, ay+t*dy, a)
}

// ClosestOnLine returns the point on the polyline closest to p and
// the spherical distance to it in meters. Segments are scanned in
// order and only a strictly smaller distance replaces the current
// best, so repeated calls over the same line are deterministic.
func ClosestOnLine(p orb.Point, line orb.LineString) (orb.Point, float64) {
	if len(line) == 0 {
		return orb.Point{}, math.Inf(1)
	}
	if len(line) == 1 {
		return line[0], Distance(p, line[0])
	}

	best := line[0]
	bestDist := math.Inf(1)
	for i := 0; i+1 < len(line); i++ {
		candidate := ClosestPointOnSegment(p, line[i], line[i+1])
		if d := Distance(p, candidate); d < bestDist {
			best = candidate
			bestDist = d
		}
	}
	return best, bestDist
}

// BoundAroundPoint returns the lat/lng envelope covering a circle of
// the given radius around p, used as the coarse spatial pre-filter
// before exact per-segment distances are computed.
func BoundAroundPoint(p orb.Point, radiusMeters float64) orb.Bound {
	return orbgeo.NewBoundAroundPoint(p, radiusMeters)
}

// BoundDistance returns the spherical distance in meters from p to
// the nearest edge of the bound, or 0 when p lies inside it.
func BoundDistance(p orb.Point, b orb.Bound) float64 {
	lon := math.Min(math.Max(p.Lon(), b.Min.Lon()), b.Max.Lon())
	lat := math.Min(math.Max(p.Lat(), b.Min.Lat()), b.Max.Lat())
	return Distance(p, orb.Point{lon, lat})
}
