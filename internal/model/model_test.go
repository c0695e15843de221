package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutline_BoundingBox(t *testing.T) {
	o := Outline{{X: 5, Y: -2}, {X: 10, Y: 4}, {X: -1, Y: 3}}
	min, max := o.BoundingBox()
	assert.Equal(t, Point2D{X: -1, Y: -2}, min)
	assert.Equal(t, Point2D{X: 10, Y: 4}, max)
}

func TestOutline_RotateQuarterTurnIsExact(t *testing.T) {
	o := Outline{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 50}, {X: 0, Y: 50}}

	r := o.Rotate(90)
	require.Len(t, r, 4)
	assert.Equal(t, Point2D{X: 0, Y: 100}, r[1])
	assert.Equal(t, Point2D{X: -50, Y: 100}, r[2])

	r = o.Rotate(180)
	assert.Equal(t, Point2D{X: -100, Y: 0}, r[1])
	assert.Equal(t, Point2D{X: -100, Y: -50}, r[2])
}

func TestOutline_RotateArbitraryAngle(t *testing.T) {
	o := Outline{{X: 10, Y: 0}}
	r := o.Rotate(45)
	assert.InDelta(t, 10/math.Sqrt2, r[0].X, 1e-9)
	assert.InDelta(t, 10/math.Sqrt2, r[0].Y, 1e-9)
}

func TestOutline_RotateDoesNotMutate(t *testing.T) {
	o := Outline{{X: 1, Y: 2}, {X: 3, Y: 4}}
	_ = o.Rotate(90)
	assert.Equal(t, Outline{{X: 1, Y: 2}, {X: 3, Y: 4}}, o)
}

func TestOutline_Normalize(t *testing.T) {
	o := Outline{{X: 10, Y: 20}, {X: 30, Y: 20}, {X: 30, Y: 50}}
	n, off := o.Normalize()
	assert.Equal(t, Point2D{X: 10, Y: 20}, off)
	assert.Equal(t, Outline{{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 30}}, n)
}

func TestOutline_Area(t *testing.T) {
	square := Outline{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	assert.InDelta(t, 100.0, square.Area(), 1e-9)
	assert.Equal(t, 0.0, Outline{{X: 0, Y: 0}, {X: 1, Y: 1}}.Area())
}

func TestContour_ComputeStatsCarriesOverMissingAxes(t *testing.T) {
	c := Contour{Commands: []Command{
		Rapid(0, 0),
		{Type: "G01", X: Coord(30)},
		{Type: "G01", Y: Coord(40)},
	}}
	c.ComputeStats()
	assert.Equal(t, 3, c.CornerCount)
	assert.InDelta(t, 70.0, c.Length, 1e-9)
}

func TestRectangleContour(t *testing.T) {
	c := RectangleContour(200, 100)
	assert.True(t, c.IsClosed)
	assert.Len(t, c.Commands, 5)
	assert.InDelta(t, 600.0, c.Length, 1e-9)
}

func TestNewRectPart(t *testing.T) {
	p := NewRectPart("Panel", 300, 200, 4)
	assert.Len(t, p.ID, 8)
	assert.Equal(t, 4, p.Remaining)
	assert.Equal(t, 300.0, p.Width)
	require.Len(t, p.Contours, 1)
}

func TestNestingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     NestingConfig
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultNestingConfig()},
		{name: "bbox zero spacing", cfg: NestingConfig{Mode: ModeBBox, Spacing: 0, Rotations: 4}},
		{name: "unknown mode", cfg: NestingConfig{Mode: "convex", Spacing: 5, Rotations: 1}, wantErr: true},
		{name: "negative spacing", cfg: NestingConfig{Mode: ModeHull, Spacing: -1, Rotations: 1}, wantErr: true},
		{name: "NaN spacing", cfg: NestingConfig{Mode: ModeHull, Spacing: math.NaN(), Rotations: 1}, wantErr: true},
		{name: "zero rotations", cfg: NestingConfig{Mode: ModeHull, Spacing: 5, Rotations: 0}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrConfiguration))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNestingConfig_RotationAngles(t *testing.T) {
	cfg := NestingConfig{Mode: ModeHull, Rotations: 4}
	assert.Equal(t, []float64{0, 90, 180, 270}, cfg.RotationAngles())

	cfg.Rotations = 1
	assert.Equal(t, []float64{0}, cfg.RotationAngles())
}

func TestSheet_UsableArea(t *testing.T) {
	s := Sheet{Width: 1000, Height: 500}
	assert.Equal(t, Rect{X: 10, Y: 10, Width: 980, Height: 480}, s.UsableArea())

	s.NestingArea = &Rect{X: 50, Y: 0, Width: 100, Height: 100}
	assert.Equal(t, Rect{X: 50, Y: 0, Width: 100, Height: 100}, s.UsableArea())

	empty := Sheet{}
	assert.Equal(t, Rect{X: 10, Y: 10, Width: 1980, Height: 980}, empty.UsableArea())
}

func TestStockDefinition_Usable(t *testing.T) {
	assert.True(t, StockDefinition{Width: 2000, Height: 1000}.Usable())
	assert.False(t, StockDefinition{}.Usable())
	assert.False(t, StockDefinition{Width: 100, Height: -5}.Usable())
	assert.False(t, StockDefinition{Width: math.NaN(), Height: 100}.Usable())
	assert.False(t, StockDefinition{Width: math.Inf(1), Height: 100}.Usable())
}

func TestSheet_Efficiency(t *testing.T) {
	s := Sheet{Width: 100, Height: 100, Parts: []PlacementInstance{
		{Width: 50, Height: 50},
	}}
	assert.InDelta(t, 25.0, s.Efficiency(), 1e-9)
	assert.Equal(t, 0.0, Sheet{}.Efficiency())
}

func TestNewSheetFromStock(t *testing.T) {
	s := NewSheetFromStock(StockDefinition{Width: 600, Height: 400}, 2)
	assert.Equal(t, "2", s.ID)
	assert.Equal(t, "Sheet 3", s.Name)
	assert.NotNil(t, s.Parts)
}

func TestMaxInstanceID(t *testing.T) {
	sheets := []Sheet{
		{Parts: []PlacementInstance{{ID: 3}, {ID: 7}}},
		{Parts: []PlacementInstance{{ID: 5}}},
	}
	assert.Equal(t, 7, MaxInstanceID(sheets))
	assert.Equal(t, 0, MaxInstanceID(nil))
}

func TestNestResult_TotalEfficiency(t *testing.T) {
	r := NestResult{Sheets: []Sheet{
		{Width: 100, Height: 100, Parts: []PlacementInstance{{Width: 100, Height: 50}}},
		{Width: 100, Height: 100},
	}}
	assert.InDelta(t, 25.0, r.TotalEfficiency(), 1e-9)
}
