package model

import (
	"fmt"
	"math"
)

// NestingMode selects how placed parts are tested for overlap.
type NestingMode string

const (
	ModeHull NestingMode = "hull" // Exact polygon test on the welded outline
	ModeBBox NestingMode = "bbox" // Bounding-box test only
)

// Sheet defaults used when a sheet carries no explicit nesting area.
const (
	DefaultSheetMargin = 10.0
	DefaultSheetWidth  = 2000.0
	DefaultSheetHeight = 1000.0
)

// NestingConfig holds the parameters of a nesting run.
type NestingConfig struct {
	Mode       NestingMode `json:"nestingMode"`
	Spacing    float64     `json:"spacing"`    // Minimum gap between parts in mm
	Rotations  int         `json:"rotations"`  // Number of evenly spaced angles to try
	MultiSheet bool        `json:"multiSheet"` // Allocate new sheets from stock on overflow
}

func DefaultNestingConfig() NestingConfig {
	return NestingConfig{
		Mode:       ModeHull,
		Spacing:    5.0,
		Rotations:  1,
		MultiSheet: false,
	}
}

// Validate reports whether the configuration can drive a run.
func (c NestingConfig) Validate() error {
	switch c.Mode {
	case ModeHull, ModeBBox:
	default:
		return fmt.Errorf("%w: unknown nesting mode %q", ErrConfiguration, c.Mode)
	}
	if c.Spacing < 0 || math.IsNaN(c.Spacing) || math.IsInf(c.Spacing, 0) {
		return fmt.Errorf("%w: spacing must be a finite value >= 0, got %v", ErrConfiguration, c.Spacing)
	}
	if c.Rotations < 1 {
		return fmt.Errorf("%w: rotations must be >= 1, got %d", ErrConfiguration, c.Rotations)
	}
	return nil
}

// RotationAngles returns the angles in degrees tried for each candidate.
func (c NestingConfig) RotationAngles() []float64 {
	n := c.Rotations
	if n < 1 {
		n = 1
	}
	step := 360.0 / float64(n)
	angles := make([]float64, n)
	for i := range angles {
		angles[i] = float64(i) * step
	}
	return angles
}

// StockDefinition is the template for sheets created on overflow.
type StockDefinition struct {
	Name   string  `json:"name,omitempty"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Usable reports whether sheets can be cut from the stock.
func (s StockDefinition) Usable() bool {
	return s.Width > 0 && s.Height > 0 && !math.IsInf(s.Width, 0) && !math.IsInf(s.Height, 0)
}

// PlacementInstance is one unit of a part committed to a sheet.
type PlacementInstance struct {
	ID            int            `json:"id"`
	PartID        string         `json:"partId"`
	Name          string         `json:"name"`
	InstanceIndex int            `json:"instanceId"`
	X             float64        `json:"x"`
	Y             float64        `json:"y"`
	Rotation      float64        `json:"rotation"` // degrees, counter-clockwise
	SheetIndex    int            `json:"sheetIndex"`
	Width         float64        `json:"width"`  // rotated footprint width
	Height        float64        `json:"height"` // rotated footprint height
	Polygon       Outline        `json:"polygon,omitempty"`
	Contours      []Contour      `json:"contours,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Area returns the footprint area: the polygon area when known, otherwise
// the bounding box.
func (p PlacementInstance) Area() float64 {
	if len(p.Polygon) >= 3 {
		return p.Polygon.Area()
	}
	return p.Width * p.Height
}

// Sheet is one stock sheet with the instances placed on it.
type Sheet struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Width       float64             `json:"width"`
	Height      float64             `json:"height"`
	NestingArea *Rect               `json:"nestingArea,omitempty"`
	Parts       []PlacementInstance `json:"parts"`
}

// NewSheetFromStock instantiates the sheet at the given index from a stock template.
func NewSheetFromStock(stock StockDefinition, index int) Sheet {
	return Sheet{
		ID:     fmt.Sprintf("%d", index),
		Name:   fmt.Sprintf("Sheet %d", index+1),
		Width:  stock.Width,
		Height: stock.Height,
		Parts:  []PlacementInstance{},
	}
}

// UsableArea returns the declared nesting area, or the sheet inset by the
// default margin on every edge.
func (s Sheet) UsableArea() Rect {
	if s.NestingArea != nil {
		return *s.NestingArea
	}
	w, h := s.Width, s.Height
	if w <= 0 {
		w = DefaultSheetWidth
	}
	if h <= 0 {
		h = DefaultSheetHeight
	}
	return Rect{
		X:      DefaultSheetMargin,
		Y:      DefaultSheetMargin,
		Width:  w - 2*DefaultSheetMargin,
		Height: h - 2*DefaultSheetMargin,
	}
}

// UsedArea returns the total footprint area of placed parts.
func (s Sheet) UsedArea() float64 {
	var total float64
	for _, p := range s.Parts {
		total += p.Area()
	}
	return total
}

// TotalArea returns the sheet area.
func (s Sheet) TotalArea() float64 {
	return s.Width * s.Height
}

// Efficiency returns the usage percentage.
func (s Sheet) Efficiency() float64 {
	ta := s.TotalArea()
	if ta == 0 {
		return 0
	}
	return (s.UsedArea() / ta) * 100.0
}

// MaxInstanceID returns the highest instance id already present on the sheets.
func MaxInstanceID(sheets []Sheet) int {
	maxID := 0
	for _, s := range sheets {
		for _, p := range s.Parts {
			if p.ID > maxID {
				maxID = p.ID
			}
		}
	}
	return maxID
}

// NestJob is everything a nesting run needs.
type NestJob struct {
	Sheets    []Sheet           `json:"sheets"`
	Inventory []RawPart         `json:"inventory"`
	Stock     []StockDefinition `json:"stock"`
	Config    NestingConfig     `json:"config"`
}

// FailureKind classifies why a unit was not placed.
type FailureKind string

const (
	FailureGeometry      FailureKind = "geometry"
	FailurePlacement     FailureKind = "placement"
	FailureConfiguration FailureKind = "configuration"
)

// Failure records one requested unit that is absent from the placements.
type Failure struct {
	PartID        string      `json:"partId"`
	Name          string      `json:"name"`
	InstanceIndex int         `json:"instanceId"`
	Kind          FailureKind `json:"kind"`
	Reason        string      `json:"reason"`
}

// NestResult holds the outcome of a completed run.
type NestResult struct {
	Sheets  []Sheet             `json:"sheets"`
	Parts   []PlacementInstance `json:"parts"`
	Failed  []Failure           `json:"failed,omitempty"`
	Skipped []Failure           `json:"skipped,omitempty"`
}

// PlacedCount returns the number of instances placed during the run.
func (r NestResult) PlacedCount() int {
	return len(r.Parts)
}

// TotalEfficiency returns overall material usage percentage.
func (r NestResult) TotalEfficiency() float64 {
	var usedArea, totalArea float64
	for _, s := range r.Sheets {
		usedArea += s.UsedArea()
		totalArea += s.TotalArea()
	}
	if totalArea == 0 {
		return 0
	}
	return (usedArea / totalArea) * 100.0
}

// AnalyzedPart is a placed instance with freshly recomputed geometry.
type AnalyzedPart struct {
	PlacementInstance
	Geometry WeldedGeometry `json:"geometry"`
}

// SheetAnalysis is the result of re-welding every instance on a sheet.
type SheetAnalysis struct {
	SheetID string         `json:"sheetId"`
	Parts   []AnalyzedPart `json:"parts"`
}
