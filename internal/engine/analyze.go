package engine

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/piwi3910/SlabNest/internal/model"
	"github.com/piwi3910/SlabNest/internal/weld"
)

// AnalyzeSheet re-welds the contours of every instance on the sheet. Positions
// are left untouched; rotated footprints are refreshed for instances whose
// contours still weld into a closed outline.
func (n *Nester) AnalyzeSheet(ctx context.Context, sheet model.Sheet) (model.SheetAnalysis, error) {
	parts := make([]model.AnalyzedPart, len(sheet.Parts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.weldWorkers)
	for i := range sheet.Parts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parts[i] = analyzeInstance(sheet.Parts[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.SheetAnalysis{}, err
	}

	open := 0
	for _, p := range parts {
		if !p.Geometry.IsClosed {
			open++
		}
	}
	n.logger.Info("Sheet analyzed",
		zap.String("sheet", sheet.ID),
		zap.Int("parts", len(parts)),
		zap.Int("open", open))

	return model.SheetAnalysis{SheetID: sheet.ID, Parts: parts}, nil
}

func analyzeInstance(inst model.PlacementInstance) model.AnalyzedPart {
	geom := weld.Weld(inst.Contours)
	out := model.AnalyzedPart{PlacementInstance: inst, Geometry: geom}
	if !geom.IsClosed {
		return out
	}

	c := candidate{width: geom.Width, height: geom.Height, polygon: geom.Polygon}
	fp := rotateFootprint(c, inst.Rotation)
	out.Width = fp.width
	out.Height = fp.height
	if inst.Polygon != nil {
		out.Polygon = fp.polygon
	}
	return out
}
