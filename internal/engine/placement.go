package engine

import (
	"fmt"

	"github.com/piwi3910/SlabNest/internal/collision"
	"github.com/piwi3910/SlabNest/internal/model"
)

// run is the working state of one Nest call. It is never shared.
type run struct {
	cfg    model.NestingConfig
	stock  []model.StockDefinition
	angles []float64

	sheets []model.Sheet
	shapes [][]collision.Shape // per sheet, in placement order
	placed []model.PlacementInstance
	failed []model.Failure
	nextID int

	footprints map[rotationKey]footprint
}

type rotationKey struct {
	part     int
	rotation int
}

func newRun(job model.NestJob, cfg model.NestingConfig) *run {
	r := &run{
		cfg:        cfg,
		stock:      job.Stock,
		angles:     cfg.RotationAngles(),
		sheets:     make([]model.Sheet, len(job.Sheets)),
		shapes:     make([][]collision.Shape, len(job.Sheets)),
		footprints: make(map[rotationKey]footprint),
	}
	for i, s := range job.Sheets {
		s.Parts = append([]model.PlacementInstance{}, s.Parts...)
		if s.NestingArea != nil {
			area := *s.NestingArea
			s.NestingArea = &area
		}
		r.sheets[i] = s
		for _, p := range s.Parts {
			r.shapes[i] = append(r.shapes[i], collision.ShapeOf(p))
		}
	}
	r.nextID = model.MaxInstanceID(r.sheets)
	return r
}

func (r *run) footprint(c candidate, rot int) footprint {
	key := rotationKey{part: c.part, rotation: rot}
	if fp, ok := r.footprints[key]; ok {
		return fp
	}
	fp := rotateFootprint(c, r.angles[rot])
	r.footprints[key] = fp
	return fp
}

// place tries every rotation on every existing sheet, then a fresh sheet
// from stock when allowed. It returns the committed instance, or the reason
// the candidate stays unplaced.
func (r *run) place(c candidate, part model.RawPart) (*model.PlacementInstance, *model.Failure) {
	for rot := range r.angles {
		fp := r.footprint(c, rot)
		for si := range r.sheets {
			x, y, ok := findPosition(r.sheets[si].UsableArea(), fp, r.shapes[si], r.cfg.Spacing, r.cfg.Mode)
			if ok {
				return r.commit(c, part, fp, si, x, y), nil
			}
		}
	}

	if !r.cfg.MultiSheet {
		return nil, r.failure(c, part, model.FailurePlacement,
			fmt.Sprintf("%v: no collision-free position on %d sheet(s)", model.ErrPlacement, len(r.sheets)))
	}
	stock, ok := r.usableStock()
	if !ok {
		return nil, r.failure(c, part, model.FailureConfiguration,
			fmt.Sprintf("%v: multi-sheet enabled but no usable stock definition among %d", model.ErrConfiguration, len(r.stock)))
	}

	sheet := model.NewSheetFromStock(stock, len(r.sheets))
	area := sheet.UsableArea()
	for rot := range r.angles {
		fp := r.footprint(c, rot)
		x, y, ok := findPosition(area, fp, nil, r.cfg.Spacing, r.cfg.Mode)
		if ok {
			r.sheets = append(r.sheets, sheet)
			r.shapes = append(r.shapes, nil)
			return r.commit(c, part, fp, len(r.sheets)-1, x, y), nil
		}
	}
	return nil, r.failure(c, part, model.FailurePlacement,
		fmt.Sprintf("%v: part does not fit on a new %gx%g sheet", model.ErrPlacement, sheet.Width, sheet.Height))
}

// usableStock returns the first stock definition with a positive size.
// Stock never falls back to the default sheet size.
func (r *run) usableStock() (model.StockDefinition, bool) {
	for _, s := range r.stock {
		if s.Usable() {
			return s, true
		}
	}
	return model.StockDefinition{}, false
}

func (r *run) commit(c candidate, part model.RawPart, fp footprint, sheetIndex int, x, y float64) *model.PlacementInstance {
	r.nextID++
	inst := model.PlacementInstance{
		ID:            r.nextID,
		PartID:        part.ID,
		Name:          part.Name,
		InstanceIndex: c.instance,
		X:             x,
		Y:             y,
		Rotation:      fp.angle,
		SheetIndex:    sheetIndex,
		Width:         fp.width,
		Height:        fp.height,
		Polygon:       fp.polygon,
		Contours:      part.Contours,
		Metadata:      part.Metadata,
	}
	r.sheets[sheetIndex].Parts = append(r.sheets[sheetIndex].Parts, inst)
	r.shapes[sheetIndex] = append(r.shapes[sheetIndex], collision.ShapeOf(inst))
	r.placed = append(r.placed, inst)
	return &inst
}

func (r *run) failure(c candidate, part model.RawPart, kind model.FailureKind, reason string) *model.Failure {
	return &model.Failure{
		PartID:        part.ID,
		Name:          part.Name,
		InstanceIndex: c.instance,
		Kind:          kind,
		Reason:        reason,
	}
}

func (r *run) result(skipped []model.Failure) model.NestResult {
	placed := r.placed
	if placed == nil {
		placed = []model.PlacementInstance{}
	}
	return model.NestResult{
		Sheets:  r.sheets,
		Parts:   placed,
		Failed:  r.failed,
		Skipped: skipped,
	}
}
