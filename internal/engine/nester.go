// Package engine places the requested quantities of welded parts onto stock
// sheets using a first-fit grid scan over every allowed rotation.
package engine

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/piwi3910/SlabNest/internal/collision"
	"github.com/piwi3910/SlabNest/internal/model"
	"github.com/piwi3910/SlabNest/internal/weld"
)

// GridStep is the spacing in mm between scanned positions.
const GridStep = 5.0

// Fallback footprint for parts with neither welded nor known dimensions.
const (
	fallbackWidth  = 100.0
	fallbackHeight = 100.0
)

// Observer receives engine events, typically to feed metrics.
type Observer interface {
	PartWelded(closed bool, elapsed time.Duration)
	CandidateResolved(placed bool)
}

type nopObserver struct{}

func (nopObserver) PartWelded(bool, time.Duration) {}
func (nopObserver) CandidateResolved(bool)         {}

// Nester runs placement jobs. A Nester holds no per-run state and may be
// shared; each call to Nest works on its own copy of the job.
type Nester struct {
	logger      *zap.Logger
	observer    Observer
	weldWorkers int
}

// Option configures a Nester.
type Option func(*Nester)

// WithLogger sets the logger used for warnings and placement tracing.
func WithLogger(l *zap.Logger) Option {
	return func(n *Nester) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithObserver registers an observer for weld and placement events.
func WithObserver(o Observer) Option {
	return func(n *Nester) {
		if o != nil {
			n.observer = o
		}
	}
}

// WithWeldWorkers limits how many parts are welded concurrently.
func WithWeldWorkers(workers int) Option {
	return func(n *Nester) {
		if workers > 0 {
			n.weldWorkers = workers
		}
	}
}

// New creates a Nester.
func New(opts ...Option) *Nester {
	n := &Nester{
		logger:      zap.NewNop(),
		observer:    nopObserver{},
		weldWorkers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// candidate is one unit of a part still waiting to be placed.
type candidate struct {
	part     int // index into the job inventory
	instance int
	width    float64
	height   float64
	polygon  model.Outline // canonical outline, nil in bbox mode
}

func (c candidate) area() float64 {
	return c.width * c.height
}

// Nest places every remaining unit of the job inventory. Progress, when not
// nil, is called after each candidate with the percentage of candidates
// resolved. Cancelling ctx stops the run before the next candidate and
// returns the context error with no result.
func (n *Nester) Nest(ctx context.Context, job model.NestJob, progress func(int)) (model.NestResult, error) {
	if progress == nil {
		progress = func(int) {}
	}
	cfg := job.Config
	if err := cfg.Validate(); err != nil {
		return model.NestResult{}, err
	}

	geoms, err := n.weldInventory(ctx, job.Inventory)
	if err != nil {
		return model.NestResult{}, err
	}

	candidates, skipped := n.buildCandidates(job.Inventory, geoms, cfg.Mode)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].area() > candidates[j].area()
	})

	run := newRun(job, cfg)
	total := len(candidates)
	n.logger.Info("Nesting started",
		zap.Int("sheets", len(run.sheets)),
		zap.Int("inventory", len(job.Inventory)),
		zap.Int("candidates", total),
		zap.String("mode", string(cfg.Mode)),
		zap.Bool("multiSheet", cfg.MultiSheet))

	if total == 0 {
		n.logger.Warn("No valid parts to place")
		progress(100)
		return run.result(skipped), nil
	}

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return model.NestResult{}, err
		}

		part := job.Inventory[c.part]
		placed, failure := run.place(c, part)
		n.observer.CandidateResolved(placed != nil)
		if placed != nil {
			n.logger.Debug("Placed instance",
				zap.String("part", part.Name),
				zap.Int("instance", placed.ID),
				zap.Int("sheet", placed.SheetIndex),
				zap.Float64("x", placed.X),
				zap.Float64("y", placed.Y),
				zap.Float64("rotation", placed.Rotation))
		} else {
			n.logger.Warn("Failed to place instance",
				zap.String("part", part.Name),
				zap.Int("instanceIndex", c.instance),
				zap.String("kind", string(failure.Kind)),
				zap.String("reason", failure.Reason))
			run.failed = append(run.failed, *failure)
		}

		progress(int(math.Floor(100 * float64(i+1) / float64(total))))
	}

	return run.result(skipped), nil
}

// weldInventory welds every inventory entry once, in parallel.
func (n *Nester) weldInventory(ctx context.Context, inventory []model.RawPart) ([]model.WeldedGeometry, error) {
	geoms := make([]model.WeldedGeometry, len(inventory))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.weldWorkers)
	for i := range inventory {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			geoms[i] = weld.WeldPart(inventory[i])
			n.observer.PartWelded(geoms[i].IsClosed, time.Since(start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return geoms, nil
}

// buildCandidates expands the inventory into one candidate per remaining
// unit. In hull mode parts that do not weld into a closed outline are skipped.
func (n *Nester) buildCandidates(inventory []model.RawPart, geoms []model.WeldedGeometry, mode model.NestingMode) ([]candidate, []model.Failure) {
	var candidates []candidate
	var skipped []model.Failure
	for i, part := range inventory {
		g := geoms[i]
		if mode == model.ModeHull && !g.IsClosed {
			n.logger.Warn("Part could not be closed after welding, skipping",
				zap.String("part", part.Name),
				zap.String("partId", part.ID),
				zap.Int("remaining", part.Remaining))
			for k := 0; k < part.Remaining; k++ {
				skipped = append(skipped, model.Failure{
					PartID:        part.ID,
					Name:          part.Name,
					InstanceIndex: k,
					Kind:          model.FailureGeometry,
					Reason:        fmt.Sprintf("%v: contours do not form a closed outline", model.ErrGeometry),
				})
			}
			continue
		}

		w := firstPositive(g.Width, part.Width, fallbackWidth)
		h := firstPositive(g.Height, part.Height, fallbackHeight)
		var poly model.Outline
		if mode == model.ModeHull {
			poly = g.Polygon
		}
		for k := 0; k < part.Remaining; k++ {
			candidates = append(candidates, candidate{
				part:     i,
				instance: k,
				width:    w,
				height:   h,
				polygon:  poly,
			})
		}
	}
	return candidates, skipped
}

func firstPositive(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// footprint is a candidate rotated by one of the configured angles and
// shifted back so that its bounding box starts at the origin.
type footprint struct {
	angle   float64
	width   float64
	height  float64
	polygon model.Outline
}

func rotateFootprint(c candidate, angle float64) footprint {
	if angle == 0 {
		return footprint{width: c.width, height: c.height, polygon: c.polygon}
	}
	if c.polygon != nil {
		rotated, _ := c.polygon.Rotate(angle).Normalize()
		_, max := rotated.BoundingBox()
		return footprint{angle: angle, width: max.X, height: max.Y, polygon: rotated}
	}
	box := model.Outline{{X: 0, Y: 0}, {X: c.width, Y: 0}, {X: c.width, Y: c.height}, {X: 0, Y: c.height}}
	min, max := box.Rotate(angle).BoundingBox()
	return footprint{angle: angle, width: max.X - min.X, height: max.Y - min.Y}
}

// findPosition scans the area row by row at GridStep and returns the first
// corner position where the footprint collides with none of the shapes.
func findPosition(area model.Rect, fp footprint, shapes []collision.Shape, padding float64, mode model.NestingMode) (float64, float64, bool) {
	const eps = 1e-9
	cols := int(math.Floor((area.Width-fp.width)/GridStep + eps))
	rows := int(math.Floor((area.Height-fp.height)/GridStep + eps))
	for iy := 0; iy <= rows; iy++ {
		y := area.Y + float64(iy)*GridStep
		for ix := 0; ix <= cols; ix++ {
			x := area.X + float64(ix)*GridStep
			s := collision.At(x, y, fp.width, fp.height, fp.polygon)
			if !collision.CollidesAny(s, shapes, padding, mode) {
				return x, y, true
			}
		}
	}
	return 0, 0, false
}
