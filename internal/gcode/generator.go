package gcode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/piwi3910/SlabNest/internal/model"
	"github.com/piwi3910/SlabNest/internal/weld"
)

// Generator writes GNC programs for nested sheets. Every placed instance
// becomes one CONTOUR block with its toolpath rotated and moved to its
// placement on the sheet.
type Generator struct {
	// Precision is the number of decimals written for coordinates.
	Precision int
}

func NewGenerator() *Generator {
	return &Generator{Precision: 3}
}

// GenerateSheet produces the program for a single sheet.
func (g *Generator) GenerateSheet(sheet model.Sheet) string {
	var b strings.Builder

	g.writeHeader(&b, sheet)
	for _, inst := range sheet.Parts {
		g.writeInstance(&b, inst)
	}
	b.WriteString("M30\n")
	return b.String()
}

// GenerateAll produces one program per sheet of a result.
func (g *Generator) GenerateAll(result model.NestResult) []string {
	codes := make([]string, 0, len(result.Sheets))
	for _, sheet := range result.Sheets {
		codes = append(codes, g.GenerateSheet(sheet))
	}
	return codes
}

func (g *Generator) writeHeader(b *strings.Builder, sheet model.Sheet) {
	b.WriteString("%\n")
	fmt.Fprintf(b, "(SHEET %s: %s)\n", sheet.ID, sheet.Name)
	fmt.Fprintf(b, "(SIZE: %s x %s)\n", g.format(sheet.Width), g.format(sheet.Height))
	fmt.Fprintf(b, "(PARTS: %d, EFFICIENCY: %.1f%%)\n", len(sheet.Parts), sheet.Efficiency())
}

func (g *Generator) writeInstance(b *strings.Builder, inst model.PlacementInstance) {
	fmt.Fprintf(b, "(===== CONTOUR %d =====)\n", inst.ID)
	fmt.Fprintf(b, "(PART NAME: %s #%d)\n", inst.Name, inst.InstanceIndex)

	place := newPlacement(inst)
	for _, c := range inst.Contours {
		var cur model.Point2D
		for _, cmd := range c.Commands {
			if cmd.X != nil {
				cur.X = *cmd.X
			}
			if cmd.Y != nil {
				cur.Y = *cmd.Y
			}
			if cmd.X == nil && cmd.Y == nil {
				b.WriteString(cmd.Type + "\n")
				continue
			}
			p := place.point(cur)
			line := fmt.Sprintf("%s X%s Y%s", cmd.Type, g.format(p.X), g.format(p.Y))
			if cmd.I != nil || cmd.J != nil {
				var v model.Point2D
				if cmd.I != nil {
					v.X = *cmd.I
				}
				if cmd.J != nil {
					v.Y = *cmd.J
				}
				r := place.vector(v)
				line += fmt.Sprintf(" I%s J%s", g.format(r.X), g.format(r.Y))
			}
			b.WriteString(line + "\n")
		}
	}
}

func (g *Generator) format(v float64) string {
	s := strconv.FormatFloat(v, 'f', g.Precision, 64)
	if s == "-"+strconv.FormatFloat(0, 'f', g.Precision, 64) {
		return s[1:]
	}
	return s
}

// placement maps raw part coordinates onto the sheet. The reference outline
// is the one the engine placed: the welded polygon when the instance carries
// one, the bounding box of the welded extent otherwise.
type placement struct {
	angle float64
	shift model.Point2D
}

func newPlacement(inst model.PlacementInstance) placement {
	geom := weld.Weld(inst.Contours)

	var ref model.Outline
	switch {
	case geom.IsClosed && len(inst.Polygon) > 0:
		ref = geom.Polygon.Translate(geom.Offset.X, geom.Offset.Y)
	case geom.IsClosed:
		ref = box(geom.Polygon.Translate(geom.Offset.X, geom.Offset.Y).BoundingBox())
	default:
		ref = box(extent(inst.Contours))
	}

	min, _ := ref.Rotate(inst.Rotation).BoundingBox()
	return placement{
		angle: inst.Rotation,
		shift: model.Point2D{X: inst.X - min.X, Y: inst.Y - min.Y},
	}
}

func (p placement) point(pt model.Point2D) model.Point2D {
	r := p.vector(pt)
	return model.Point2D{X: r.X + p.shift.X, Y: r.Y + p.shift.Y}
}

func (p placement) vector(v model.Point2D) model.Point2D {
	if p.angle == 0 {
		return v
	}
	return model.Outline{v}.Rotate(p.angle)[0]
}

func box(min, max model.Point2D) model.Outline {
	return model.Outline{min, {X: max.X, Y: min.Y}, max, {X: min.X, Y: max.Y}}
}

// extent is the bounding box of every known position of the contours.
func extent(contours []model.Contour) (min, max model.Point2D) {
	var pts model.Outline
	for _, c := range contours {
		var cur model.Point2D
		hasX, hasY := false, false
		for _, cmd := range c.Commands {
			if cmd.X != nil {
				cur.X, hasX = *cmd.X, true
			}
			if cmd.Y != nil {
				cur.Y, hasY = *cmd.Y, true
			}
			if hasX && hasY {
				pts = append(pts, cur)
			}
		}
	}
	return pts.BoundingBox()
}
