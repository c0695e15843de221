package model

import (
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// Point2D represents a 2D coordinate in mm.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Outline represents a closed polygon as a sequence of 2D points.
// The outline is implicitly closed: the last point connects back to the first.
type Outline []Point2D

// BoundingBox returns the min and max corners of the outline.
func (o Outline) BoundingBox() (min, max Point2D) {
	if len(o) == 0 {
		return Point2D{}, Point2D{}
	}
	min = Point2D{X: o[0].X, Y: o[0].Y}
	max = Point2D{X: o[0].X, Y: o[0].Y}
	for _, p := range o[1:] {
		if p.X < min.X {
			min.X = p.X
		}
		if p.Y < min.Y {
			min.Y = p.Y
		}
		if p.X > max.X {
			max.X = p.X
		}
		if p.Y > max.Y {
			max.Y = p.Y
		}
	}
	return min, max
}

// Translate shifts all points by dx, dy.
func (o Outline) Translate(dx, dy float64) Outline {
	result := make(Outline, len(o))
	for i, p := range o {
		result[i] = Point2D{X: p.X + dx, Y: p.Y + dy}
	}
	return result
}

// Rotate returns a copy of the outline rotated counter-clockwise about the
// origin by the given angle in degrees.
func (o Outline) Rotate(degrees float64) Outline {
	if len(o) == 0 {
		return Outline{}
	}
	rad := degrees * math.Pi / 180
	cos := snapUnit(math.Cos(rad))
	sin := snapUnit(math.Sin(rad))

	pts := mat.NewDense(len(o), 2, nil)
	for i, p := range o {
		pts.Set(i, 0, p.X)
		pts.Set(i, 1, p.Y)
	}
	rot := mat.NewDense(2, 2, []float64{
		cos, -sin,
		sin, cos,
	})

	var out mat.Dense
	out.Mul(pts, rot.T())

	result := make(Outline, len(o))
	for i := range result {
		result[i] = Point2D{X: out.At(i, 0), Y: out.At(i, 1)}
	}
	return result
}

// snapUnit removes the floating point residue of quarter-turn angles so that
// axis-aligned parts stay exactly axis-aligned after rotation.
func snapUnit(v float64) float64 {
	const eps = 1e-12
	switch {
	case math.Abs(v) < eps:
		return 0
	case math.Abs(v-1) < eps:
		return 1
	case math.Abs(v+1) < eps:
		return -1
	}
	return v
}

// Normalize translates the outline so its bounding box starts at (0, 0).
// It returns the shifted outline and the minimum corner that was subtracted.
func (o Outline) Normalize() (Outline, Point2D) {
	if len(o) == 0 {
		return Outline{}, Point2D{}
	}
	min, _ := o.BoundingBox()
	return o.Translate(-min.X, -min.Y), min
}

// Area computes the absolute polygon area using the shoelace formula.
func (o Outline) Area() float64 {
	n := len(o)
	if n < 3 {
		return 0
	}
	var area float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += o[i].X * o[j].Y
		area -= o[j].X * o[i].Y
	}
	return math.Abs(area) / 2
}

// Rect is an axis-aligned rectangle in sheet coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// Command is a single toolpath instruction. A nil X or Y means the axis keeps
// the value of the previous command. I and J are arc-center offsets; they are
// carried through but arcs are treated as straight chords.
type Command struct {
	Type         string   `json:"type"`
	X            *float64 `json:"x,omitempty"`
	Y            *float64 `json:"y,omitempty"`
	I            *float64 `json:"i,omitempty"`
	J            *float64 `json:"j,omitempty"`
	LineNumber   int      `json:"line_number,omitempty"`
	OriginalText string   `json:"original_text,omitempty"`
}

// Coord returns a pointer to v, for building commands in code.
func Coord(v float64) *float64 {
	return &v
}

// Linear returns a G01 command to the absolute position (x, y).
func Linear(x, y float64) Command {
	return Command{Type: "G01", X: Coord(x), Y: Coord(y)}
}

// Rapid returns a G00 command to the absolute position (x, y).
func Rapid(x, y float64) Command {
	return Command{Type: "G00", X: Coord(x), Y: Coord(y)}
}

// Contour is one traced path of a part: its outer profile or an internal hole.
type Contour struct {
	ID          int       `json:"id"`
	Commands    []Command `json:"commands"`
	IsClosed    bool      `json:"is_closed"`
	IsHole      bool      `json:"is_hole"`
	CornerCount int       `json:"corner_count"`
	Length      float64   `json:"length"`
}

// ComputeStats fills CornerCount and Length. Length is the summed chord
// length between consecutive known positions.
func (c *Contour) ComputeStats() {
	c.CornerCount = len(c.Commands)
	c.Length = 0

	var curX, curY float64
	hasX, hasY := false, false
	for _, cmd := range c.Commands {
		prevX, prevY := curX, curY
		prevKnown := hasX && hasY
		if cmd.X != nil {
			curX, hasX = *cmd.X, true
		}
		if cmd.Y != nil {
			curY, hasY = *cmd.Y, true
		}
		if prevKnown && hasX && hasY {
			c.Length += math.Hypot(curX-prevX, curY-prevY)
		}
	}
}

// RectangleContour builds a closed contour tracing a w x h rectangle from the
// origin. Importers use it for parts that only carry dimensions.
func RectangleContour(w, h float64) Contour {
	c := Contour{
		ID: 1,
		Commands: []Command{
			Rapid(0, 0),
			Linear(w, 0),
			Linear(w, h),
			Linear(0, h),
			Linear(0, 0),
		},
		IsClosed: true,
	}
	c.ComputeStats()
	return c
}

// RawPart is one inventory entry waiting to be nested.
type RawPart struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Contours  []Contour      `json:"contours"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Remaining int            `json:"remaining"`
	Width     float64        `json:"width,omitempty"`  // known bounding width, 0 if unknown
	Height    float64        `json:"height,omitempty"` // known bounding height, 0 if unknown
}

// NewRectPart creates a rectangular part with a synthesized outline contour.
func NewRectPart(name string, w, h float64, remaining int) RawPart {
	return RawPart{
		ID:        uuid.New().String()[:8],
		Name:      name,
		Contours:  []Contour{RectangleContour(w, h)},
		Remaining: remaining,
		Width:     w,
		Height:    h,
	}
}

// WeldedGeometry is the cleaned footprint of a RawPart. Polygon is expressed
// relative to its bounding-box corner; Offset is the corner that was removed.
type WeldedGeometry struct {
	IsClosed bool    `json:"isClosed"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Polygon  Outline `json:"polygon,omitempty"`
	Offset   Point2D `json:"offset"`
}
