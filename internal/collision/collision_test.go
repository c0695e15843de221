package collision

import (
	"math/rand"
	"testing"

	"github.com/piwi3910/SlabNest/internal/model"
	"github.com/stretchr/testify/assert"
)

func square(size float64) model.Outline {
	return model.Outline{{X: 0, Y: 0}, {X: size, Y: 0}, {X: size, Y: size}, {X: 0, Y: size}}
}

func TestCollides_DisjointBoxes(t *testing.T) {
	a := At(0, 0, 10, 10, square(10))
	b := At(100, 100, 10, 10, square(10))

	assert.False(t, Collides(a, b, 5, model.ModeHull))
	assert.False(t, Collides(a, b, 5, model.ModeBBox))
}

func TestCollides_PaddingInflatesBoxes(t *testing.T) {
	a := At(0, 0, 10, 10, nil)
	b := At(14, 0, 10, 10, nil)

	assert.True(t, Collides(a, b, 5, model.ModeBBox), "gap 4 < padding 5")
	assert.False(t, Collides(a, b, 3, model.ModeBBox), "gap 4 > padding 3")
}

func TestCollides_BBoxModeIgnoresPolygons(t *testing.T) {
	tri := model.Outline{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 0, Y: 100}}
	a := At(0, 0, 100, 100, tri)
	b := At(60, 60, 100, 100, tri)

	assert.True(t, Collides(a, b, 0, model.ModeBBox))
	assert.False(t, Collides(a, b, 0, model.ModeHull))
}

func TestCollides_MissingPolygonFallsBackToBox(t *testing.T) {
	a := At(0, 0, 10, 10, square(10))
	b := At(5, 5, 10, 10, nil)
	assert.True(t, Collides(a, b, 0, model.ModeHull))

	degenerate := At(5, 5, 10, 10, model.Outline{{X: 0, Y: 0}, {X: 10, Y: 10}})
	assert.True(t, Collides(a, degenerate, 0, model.ModeHull))
}

func TestCollides_HullCrossingEdges(t *testing.T) {
	a := At(0, 0, 10, 10, square(10))
	b := At(5, 5, 10, 10, square(10))
	assert.True(t, Collides(a, b, 0, model.ModeHull))
}

func TestCollides_HullContainment(t *testing.T) {
	outer := At(0, 0, 100, 100, square(100))
	inner := At(40, 40, 10, 10, square(10))

	assert.True(t, Collides(outer, inner, 0, model.ModeHull))
	assert.True(t, Collides(inner, outer, 0, model.ModeHull))
}

func TestCollides_TouchingSquares(t *testing.T) {
	a := At(0, 0, 10, 10, square(10))
	b := At(10, 0, 10, 10, square(10))

	assert.False(t, Collides(a, b, 0, model.ModeHull), "shared edge is not an overlap")
	assert.True(t, Collides(a, b, 1, model.ModeHull), "distance 0 is below padding")
}

func TestCollides_HullClearance(t *testing.T) {
	// Two right triangles facing each other across parallel hypotenuses
	// about 14.14 apart.
	lower := At(0, 0, 100, 100, model.Outline{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 0, Y: 100}})
	upper := At(10, 10, 100, 100, model.Outline{{X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}})

	assert.False(t, Collides(lower, upper, 5, model.ModeHull))
	assert.False(t, Collides(lower, upper, 14, model.ModeHull))
	assert.True(t, Collides(lower, upper, 15, model.ModeHull))
	assert.True(t, Collides(lower, upper, 0, model.ModeBBox))
}

func TestCollides_Symmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	randomShape := func() Shape {
		n := 3 + rng.Intn(4)
		poly := make(model.Outline, n)
		for i := range poly {
			poly[i] = model.Point2D{X: rng.Float64() * 80, Y: rng.Float64() * 80}
		}
		poly, _ = poly.Normalize()
		_, max := poly.BoundingBox()
		return At(rng.Float64()*150, rng.Float64()*150, max.X, max.Y, poly)
	}

	for i := 0; i < 500; i++ {
		a, b := randomShape(), randomShape()
		padding := rng.Float64() * 10
		for _, mode := range []model.NestingMode{model.ModeHull, model.ModeBBox} {
			assert.Equal(t, Collides(a, b, padding, mode), Collides(b, a, padding, mode),
				"case %d mode %s", i, mode)
		}
	}
}

func TestCollides_SymmetricOnFractionalGrid(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	coord := func() float64 {
		if rng.Intn(2) == 0 {
			return float64(rng.Intn(13)) / 3
		}
		return float64(rng.Intn(29)) / 7
	}
	randomShape := func() Shape {
		n := 3 + rng.Intn(4)
		poly := make(model.Outline, n)
		for i := range poly {
			poly[i] = model.Point2D{X: coord(), Y: coord()}
		}
		poly, _ = poly.Normalize()
		_, max := poly.BoundingBox()
		return At(coord(), coord(), max.X, max.Y, poly)
	}

	for i := 0; i < 20000; i++ {
		a, b := randomShape(), randomShape()
		for _, padding := range []float64{0, 0.5} {
			assert.Equal(t, Collides(a, b, padding, model.ModeHull), Collides(b, a, padding, model.ModeHull),
				"case %d padding %v", i, padding)
		}
	}
}

func TestSegmentsIntersect_OrderIndependent(t *testing.T) {
	tests := []struct {
		name           string
		p1, p2, p3, p4 model.Point2D
		want           bool
	}{
		{"crossing", model.Point2D{X: 0, Y: 0}, model.Point2D{X: 4, Y: 4}, model.Point2D{X: 0, Y: 4}, model.Point2D{X: 4, Y: 0}, true},
		{"vertex on edge", model.Point2D{X: 8.0 / 3, Y: 4.0 / 7}, model.Point2D{X: 5, Y: 5}, model.Point2D{X: 2, Y: 4.0 / 7}, model.Point2D{X: 4, Y: 4.0 / 7}, false},
		{"shared endpoint", model.Point2D{X: 0, Y: 0}, model.Point2D{X: 1, Y: 1}, model.Point2D{X: 1, Y: 1}, model.Point2D{X: 2, Y: 0}, false},
		{"collinear overlap", model.Point2D{X: 0, Y: 0}, model.Point2D{X: 2, Y: 0}, model.Point2D{X: 1, Y: 0}, model.Point2D{X: 3, Y: 0}, false},
		{"apart", model.Point2D{X: 0, Y: 0}, model.Point2D{X: 1, Y: 0}, model.Point2D{X: 0, Y: 1}, model.Point2D{X: 1, Y: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, segmentsIntersect(tt.p1, tt.p2, tt.p3, tt.p4))
			assert.Equal(t, tt.want, segmentsIntersect(tt.p3, tt.p4, tt.p1, tt.p2))
		})
	}
}

func TestCollides_DoesNotMutateInputs(t *testing.T) {
	poly := square(10)
	a := At(3, 4, 10, 10, poly)
	b := At(8, 8, 10, 10, square(10))
	_ = Collides(a, b, 2, model.ModeHull)

	assert.Equal(t, square(10), poly)
	assert.Equal(t, 3.0, a.X)
}

func TestCollidesAny(t *testing.T) {
	s := At(0, 0, 10, 10, square(10))
	others := []Shape{
		At(100, 0, 10, 10, square(10)),
		At(5, 5, 10, 10, square(10)),
	}
	assert.True(t, CollidesAny(s, others, 0, model.ModeHull))
	assert.False(t, CollidesAny(s, others[:1], 0, model.ModeHull))
	assert.False(t, CollidesAny(s, nil, 0, model.ModeHull))
}

func TestShapeOf(t *testing.T) {
	p := model.PlacementInstance{X: 12, Y: 34, Width: 5, Height: 6, Polygon: square(5)}
	s := ShapeOf(p)
	assert.Equal(t, 12.0, s.X)
	assert.Equal(t, 34.0, s.Y)
	assert.Equal(t, 5.0, s.Width)
	assert.Len(t, s.Polygon, 4)
}

func TestSegmentsIntersect(t *testing.T) {
	p := func(x, y float64) model.Point2D { return model.Point2D{X: x, Y: y} }
	assert.True(t, segmentsIntersect(p(0, 0), p(10, 10), p(0, 10), p(10, 0)))
	assert.False(t, segmentsIntersect(p(0, 0), p(10, 0), p(0, 5), p(10, 5)), "parallel")
	assert.False(t, segmentsIntersect(p(0, 0), p(10, 0), p(10, 0), p(10, 10)), "shared endpoint")
	assert.False(t, segmentsIntersect(p(0, 0), p(10, 0), p(0, 0), p(20, 0)), "collinear")
}
