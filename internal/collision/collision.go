// Package collision decides whether two placed footprints overlap, either by
// bounding box or by exact polygon test with a clearance distance.
package collision

import (
	"math"

	"github.com/piwi3910/SlabNest/internal/model"
)

// Shape is a footprint in sheet coordinates. X/Y is the bounding-box corner
// and Polygon, when present, is expressed relative to that corner.
type Shape struct {
	X, Y          float64
	Width, Height float64
	Polygon       model.Outline
}

// At builds a shape for a footprint whose corner sits at (x, y).
func At(x, y, w, h float64, polygon model.Outline) Shape {
	return Shape{X: x, Y: y, Width: w, Height: h, Polygon: polygon}
}

// ShapeOf returns the footprint of a placed instance.
func ShapeOf(p model.PlacementInstance) Shape {
	return Shape{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height, Polygon: p.Polygon}
}

// Collides reports whether a and b overlap, or come closer than padding.
//
// Boxes inflated by padding that do not touch never collide. In bbox mode,
// or when either shape lacks a usable polygon, touching boxes are a
// collision. Otherwise the polygons collide when an edge of one properly
// crosses an edge of the other, when one contains the first vertex of the
// other, or when any vertex lies within padding of the other outline.
func Collides(a, b Shape, padding float64, mode model.NestingMode) bool {
	if boxesDisjoint(a, b, padding) {
		return false
	}
	if mode == model.ModeBBox || len(a.Polygon) < 3 || len(b.Polygon) < 3 {
		return true
	}

	pa := a.Polygon.Translate(a.X, a.Y)
	pb := b.Polygon.Translate(b.X, b.Y)
	if polygonsIntersect(pa, pb) {
		return true
	}
	if padding > 0 {
		return minVertexEdgeDistance(pa, pb) < padding || minVertexEdgeDistance(pb, pa) < padding
	}
	return false
}

// CollidesAny reports whether s collides with any of the given shapes.
func CollidesAny(s Shape, others []Shape, padding float64, mode model.NestingMode) bool {
	for _, o := range others {
		if Collides(s, o, padding, mode) {
			return true
		}
	}
	return false
}

func boxesDisjoint(a, b Shape, padding float64) bool {
	return a.X+a.Width+padding < b.X || b.X+b.Width+padding < a.X ||
		a.Y+a.Height+padding < b.Y || b.Y+b.Height+padding < a.Y
}

func polygonsIntersect(a, b model.Outline) bool {
	for i := range a {
		a1, a2 := a[i], a[(i+1)%len(a)]
		for j := range b {
			if segmentsIntersect(a1, a2, b[j], b[(j+1)%len(b)]) {
				return true
			}
		}
	}
	return pointInPolygon(a[0], b) || pointInPolygon(b[0], a)
}

// segmentsIntersect reports a proper crossing of p1p2 and p3p4. Parallel
// segments and contacts at an endpoint do not count. Only the signs of the
// orientations are compared, so swapping the two segments gives the same
// answer.
func segmentsIntersect(p1, p2, p3, p4 model.Point2D) bool {
	d1 := orientation(p3, p4, p1)
	d2 := orientation(p3, p4, p2)
	d3 := orientation(p1, p2, p3)
	d4 := orientation(p1, p2, p4)
	return d1*d2 < 0 && d3*d4 < 0
}

// orientation is the sign of the turn a→b→c: 1 counter-clockwise,
// -1 clockwise, 0 collinear.
func orientation(a, b, c model.Point2D) int {
	cross := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	switch {
	case cross > 0:
		return 1
	case cross < 0:
		return -1
	}
	return 0
}

// pointInPolygon is the even-odd ray casting test.
func pointInPolygon(p model.Point2D, poly model.Outline) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		pi, pj := poly[i], poly[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) &&
			p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
	}
	return inside
}

// minVertexEdgeDistance returns the smallest distance from a vertex of a to
// an edge of b.
func minVertexEdgeDistance(a, b model.Outline) float64 {
	best := math.Inf(1)
	for _, p := range a {
		for j := range b {
			d := pointSegmentDistance(p, b[j], b[(j+1)%len(b)])
			if d < best {
				best = d
			}
		}
	}
	return best
}

func pointSegmentDistance(p, s1, s2 model.Point2D) float64 {
	dx, dy := s2.X-s1.X, s2.Y-s1.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(p.X-s1.X, p.Y-s1.Y)
	}
	t := ((p.X-s1.X)*dx + (p.Y-s1.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(s1.X+t*dx), p.Y-(s1.Y+t*dy))
}
