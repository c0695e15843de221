package importer

import (
	"fmt"
	"math"
	"sort"

	"github.com/yofu/dxf"
	"github.com/yofu/dxf/entity"

	"github.com/piwi3910/SlabNest/internal/model"
	"github.com/piwi3910/SlabNest/internal/weld"
)

const (
	circleSegments = 64
	arcSegments    = 32
)

type segment struct {
	start, end model.Point2D
}

// ImportDXF reads a drawing into parts. LWPOLYLINE and CIRCLE entities become
// one part each. Loose LINE and ARC entities are chained into paths, each
// path becoming a part whose outline is resolved by the welder.
func ImportDXF(path string) ImportResult {
	drawing, err := dxf.Open(path)
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("Cannot open DXF file: %v", err)}}
	}
	return importEntities(drawing.Entities())
}

func importEntities(entities []entity.Entity) ImportResult {
	var result ImportResult
	if len(entities) == 0 {
		result.Errors = append(result.Errors, "DXF file contains no entities")
		return result
	}

	var paths []model.Outline
	var closed []bool
	var loose []segment
	for _, ent := range entities {
		switch e := ent.(type) {
		case *entity.LwPolyline:
			o := polylineOutline(e)
			if len(o) < 3 {
				result.Warnings = append(result.Warnings, "Skipped LWPOLYLINE with fewer than 3 vertices")
				continue
			}
			paths, closed = append(paths, o), append(closed, true)
		case *entity.Circle:
			paths, closed = append(paths, circleOutline(e.Center[0], e.Center[1], e.Radius)), append(closed, true)
		case *entity.Arc:
			pts := arcPoints(e)
			for i := 0; i+1 < len(pts); i++ {
				loose = append(loose, segment{pts[i], pts[i+1]})
			}
		case *entity.Line:
			loose = append(loose, segment{
				start: model.Point2D{X: e.Start[0], Y: e.Start[1]},
				end:   model.Point2D{X: e.End[0], Y: e.End[1]},
			})
		}
	}
	for _, chain := range chainSegments(loose, weld.Threshold) {
		paths, closed = append(paths, chain), append(closed, false)
	}

	if len(paths) == 0 {
		result.Errors = append(result.Errors, "No shapes found in DXF file")
		return result
	}

	for i, o := range paths {
		c := outlineContour(o, closed[i])
		part := model.RawPart{
			ID:        fmt.Sprintf("dxf-%d", i+1),
			Name:      fmt.Sprintf("DXF Part %d", i+1),
			Contours:  []model.Contour{c},
			Remaining: 1,
		}
		geom := weld.WeldPart(part)
		if geom.Width < 0.01 || geom.Height < 0.01 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Skipped degenerate shape (%.2f x %.2f mm)", geom.Width, geom.Height))
			continue
		}
		if geom.IsClosed {
			part.Width, part.Height = geom.Width, geom.Height
		} else {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s is not a closed shape", part.Name))
		}
		result.Parts = append(result.Parts, part)
	}
	return result
}

// outlineContour traces the outline as a toolpath starting with a rapid move.
func outlineContour(o model.Outline, closed bool) model.Contour {
	c := model.Contour{ID: 1, IsClosed: closed}
	c.Commands = append(c.Commands, model.Rapid(o[0].X, o[0].Y))
	for _, p := range o[1:] {
		c.Commands = append(c.Commands, model.Linear(p.X, p.Y))
	}
	if closed {
		c.Commands = append(c.Commands, model.Linear(o[0].X, o[0].Y))
	}
	c.ComputeStats()
	return c
}

// polylineOutline expands bulged vertices into arc points.
func polylineOutline(lw *entity.LwPolyline) model.Outline {
	var o model.Outline
	n := len(lw.Vertices)
	for i, v := range lw.Vertices {
		cur := model.Point2D{X: v[0], Y: v[1]}
		var bulge float64
		if i < len(lw.Bulges) {
			bulge = lw.Bulges[i]
		}
		if math.Abs(bulge) <= 1e-9 {
			o = append(o, cur)
			continue
		}
		nv := lw.Vertices[(i+1)%n]
		pts := bulgePoints(cur, model.Point2D{X: nv[0], Y: nv[1]}, bulge)
		o = append(o, pts[:len(pts)-1]...)
	}
	return o
}

// bulgePoints samples the arc between p1 and p2. The bulge is the tangent of
// a quarter of the included angle, positive for counter-clockwise arcs.
func bulgePoints(p1, p2 model.Point2D, bulge float64) model.Outline {
	dx, dy := p2.X-p1.X, p2.Y-p1.Y
	chord := math.Hypot(dx, dy)
	if chord < 1e-9 {
		return model.Outline{p1, p2}
	}

	sagitta := math.Abs(bulge) * chord / 2
	radius := (chord*chord/(4*sagitta) + sagitta) / 2
	px, py := -dy/chord, dx/chord
	if bulge > 0 {
		px, py = -px, -py
	}
	dist := radius - sagitta
	cx := (p1.X+p2.X)/2 + px*dist
	cy := (p1.Y+p2.Y)/2 + py*dist

	start := math.Atan2(p1.Y-cy, p1.X-cx)
	end := math.Atan2(p2.Y-cy, p2.X-cx)
	if bulge < 0 && end > start {
		end -= 2 * math.Pi
	}
	if bulge > 0 && end < start {
		end += 2 * math.Pi
	}
	return sampleArc(cx, cy, radius, start, end, arcSegments)
}

func circleOutline(cx, cy, r float64) model.Outline {
	pts := sampleArc(cx, cy, r, 0, 2*math.Pi, circleSegments)
	return pts[:circleSegments]
}

func arcPoints(a *entity.Arc) model.Outline {
	start := a.Angle[0] * math.Pi / 180
	end := a.Angle[1] * math.Pi / 180
	if end <= start {
		end += 2 * math.Pi
	}
	return sampleArc(a.Circle.Center[0], a.Circle.Center[1], a.Circle.Radius, start, end, arcSegments)
}

// sampleArc returns n+1 points from angle start to end inclusive.
func sampleArc(cx, cy, r, start, end float64, n int) model.Outline {
	pts := make(model.Outline, n+1)
	for i := range pts {
		a := start + float64(i)/float64(n)*(end-start)
		pts[i] = model.Point2D{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
	}
	return pts
}

// chainSegments joins segments whose endpoints lie within tolerance into
// paths, largest enclosed area first.
func chainSegments(segs []segment, tolerance float64) []model.Outline {
	used := make([]bool, len(segs))
	var chains []model.Outline

	for first := range segs {
		if used[first] {
			continue
		}
		used[first] = true
		chain := model.Outline{segs[first].start, segs[first].end}

		for extended := true; extended; {
			extended = false
			tail := chain[len(chain)-1]
			for i, s := range segs {
				if used[i] {
					continue
				}
				switch {
				case near(tail, s.start, tolerance):
					chain = append(chain, s.end)
				case near(tail, s.end, tolerance):
					chain = append(chain, s.start)
				default:
					continue
				}
				used[i] = true
				extended = true
				break
			}
		}
		chains = append(chains, chain)
	}

	sort.SliceStable(chains, func(i, j int) bool {
		return chains[i].Area() > chains[j].Area()
	})
	return chains
}

func near(a, b model.Point2D, tolerance float64) bool {
	return math.Hypot(a.X-b.X, a.Y-b.Y) < tolerance
}
