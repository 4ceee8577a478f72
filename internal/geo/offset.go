package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

var (
	// ErrDegenerate marks a centerline with fewer than 2 distinct
	// points after dedup. Callers treat it as a skip, not a failure.
	ErrDegenerate = errors.New("geo: centerline has fewer than 2 distinct points")

	// ErrSpanTooLarge marks a centerline too long for the local
	// projection to stay within tolerance of the requested offset.
	ErrSpanTooLarge = errors.New("geo: centerline span exceeds offset projection guard")
)

// maxOffsetSpanDeg guards the equirectangular approximation used by
// OffsetLine. A polyline spanning half a degree (~55 km) keeps the
// projection error well under 10% of a meters-scale offset; anything
// larger is refused rather than silently degraded.
const maxOffsetSpanDeg = 0.5

// miterLimit caps the miter scale at sharp interior corners so a
// near-reversal in the centerline cannot throw the offset vertex far
// from the line.
const miterLimit = 2.0

// Dedup returns the line with consecutive duplicate points removed.
// The input is not modified.
func Dedup(line orb.LineString) orb.LineString {
	if len(line) == 0 {
		return nil
	}
	out := make(orb.LineString, 0, len(line))
	out = append(out, line[0])
	for _, p := range line[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}

// OffsetLine displaces a road centerline sideways to approximate a
// parallel sidewalk. offsetMeters is signed: positive displaces to
// the left of the direction of travel (counter-clockwise), negative
// to the right. The result has the same point count as the
// deduplicated input.
//
// The math runs in a local equirectangular plane anchored at the
// centerline's centroid; each vertex moves along the normalized sum
// of its adjacent segment normals (a clamped miter join).
func OffsetLine(line orb.LineString, offsetMeters float64) (orb.LineString, error) {
	line = Dedup(line)
	if len(line) < 2 {
		return nil, ErrDegenerate
	}

	bound := line.Bound()
	if bound.Max.Lon()-bound.Min.Lon() > maxOffsetSpanDeg ||
		bound.Max.Lat()-bound.Min.Lat() > maxOffsetSpanDeg {
		return nil, ErrSpanTooLarge
	}

	origin := boundCenter(bound)

	// Project every vertex once.
	xs := make([]float64, len(line))
	ys := make([]float64, len(line))
	for i, p := range line {
		xs[i], ys[i] = toPlane(p, origin)
	}

	// Unit left normals per segment.
	nxs := make([]float64, len(line)-1)
	nys := make([]float64, len(line)-1)
	for i := 0; i+1 < len(line); i++ {
		dx, dy := xs[i+1]-xs[i], ys[i+1]-ys[i]
		length := math.Hypot(dx, dy)
		nxs[i] = -dy / length
		nys[i] = dx / length
	}

	out := make(orb.LineString, len(line))
	for i := range line {
		var nx, ny float64
		switch {
		case i == 0:
			nx, ny = nxs[0], nys[0]
		case i == len(line)-1:
			nx, ny = nxs[len(nxs)-1], nys[len(nys)-1]
		default:
			nx, ny = nxs[i-1]+nxs[i], nys[i-1]+nys[i]
			length := math.Hypot(nx, ny)
			if length < 1e-12 {
				// Full reversal: fall back to the incoming normal.
				nx, ny = nxs[i-1], nys[i-1]
			} else {
				// Miter scale restores true parallel distance at the
				// corner, clamped so sharp angles stay bounded.
				scale := math.Min(2/length, miterLimit)
				nx, ny = nx/length*scale, ny/length*scale
			}
		}
		out[i] = fromPlane(xs[i]+nx*offsetMeters, ys[i]+ny*offsetMeters, origin)
	}
	return out, nil
}

func boundCenter(b orb.Bound) orb.Point {
	return orb.Point{
		(b.Min.Lon() + b.Max.Lon()) / 2,
		(b.Min.Lat() + b.Max.Lat()) / 2,
	}
}
