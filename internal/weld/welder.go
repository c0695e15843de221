// Package weld turns noisy toolpath contours into a single closed outline.
//
// Every pair of consecutive known positions becomes a straight segment. Segment
// endpoints closer than Threshold are merged, dangling lead-ins and lead-outs
// are pruned, and the largest remaining cycle is returned as the part outline,
// normalized so that its bounding box starts at the origin.
package weld

import (
	"github.com/piwi3910/SlabNest/internal/model"
)

// Weld computes the welded geometry of a set of contours. It is pure and
// deterministic: the same input always yields the same polygon.
func Weld(contours []model.Contour) model.WeldedGeometry {
	segs := extractSegments(contours)
	if len(segs) == 0 {
		return model.WeldedGeometry{}
	}

	g := newGraph(segs)
	g.pruneSpurs()

	loops := g.loops()
	if len(loops) == 0 {
		min, max := model.Outline(g.points).BoundingBox()
		return model.WeldedGeometry{
			IsClosed: false,
			Width:    max.X - min.X,
			Height:   max.Y - min.Y,
		}
	}

	best := g.outline(selectLoop(g, loops))
	poly, offset := best.Normalize()
	_, max := poly.BoundingBox()
	return model.WeldedGeometry{
		IsClosed: true,
		Width:    max.X,
		Height:   max.Y,
		Polygon:  poly,
		Offset:   offset,
	}
}

// WeldPart welds the contours of a raw part.
func WeldPart(p model.RawPart) model.WeldedGeometry {
	return Weld(p.Contours)
}

// extractSegments replays each contour with carry-over of missing axes and
// emits a segment for every move between two distinct, fully known points.
// Command types are not interpreted: arcs contribute their chord.
func extractSegments(contours []model.Contour) []segment {
	var segs []segment
	for _, c := range contours {
		var cur model.Point2D
		hasX, hasY := false, false
		for _, cmd := range c.Commands {
			prev := cur
			prevKnown := hasX && hasY
			if cmd.X != nil {
				cur.X, hasX = *cmd.X, true
			}
			if cmd.Y != nil {
				cur.Y, hasY = *cmd.Y, true
			}
			if prevKnown && cur != prev {
				segs = append(segs, segment{a: prev, b: cur})
			}
		}
	}
	return segs
}

// selectLoop picks the loop with the most vertices. Ties go to the loop with
// the smallest bounding-box area, then to the first one found.
func selectLoop(g *graph, loops [][]int) []int {
	best := loops[0]
	bestArea := bboxArea(g.outline(best))
	for _, l := range loops[1:] {
		area := bboxArea(g.outline(l))
		switch {
		case len(l) > len(best):
			best, bestArea = l, area
		case len(l) == len(best) && area < bestArea:
			best, bestArea = l, area
		}
	}
	return best
}

func bboxArea(o model.Outline) float64 {
	min, max := o.BoundingBox()
	return (max.X - min.X) * (max.Y - min.Y)
}
