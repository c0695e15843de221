package engine

import (
	"context"
	"fmt"

	"github.com/piwi3910/SlabNest/internal/model"
)

// ComparisonScenario defines a named nesting configuration to compare.
type ComparisonScenario struct {
	Name   string
	Config model.NestingConfig
}

// ComparisonResult holds the nesting result and computed statistics
// for a single scenario.
type ComparisonResult struct {
	Scenario     ComparisonScenario
	Result       model.NestResult
	SheetsUsed   int
	PlacedCount  int
	FailedCount  int
	SkippedCount int
	WastePercent float64
}

// CompareScenarios runs the job once per scenario and returns the results
// in scenario order. Only the configuration changes between runs; sheets,
// inventory and stock are shared.
func CompareScenarios(ctx context.Context, n *Nester, job model.NestJob, scenarios []ComparisonScenario) ([]ComparisonResult, error) {
	results := make([]ComparisonResult, 0, len(scenarios))

	for _, scenario := range scenarios {
		j := job
		j.Config = scenario.Config
		result, err := n.Nest(ctx, j, nil)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
		}

		sheetsUsed := 0
		for _, sheet := range result.Sheets {
			if len(sheet.Parts) > 0 {
				sheetsUsed++
			}
		}

		results = append(results, ComparisonResult{
			Scenario:     scenario,
			Result:       result,
			SheetsUsed:   sheetsUsed,
			PlacedCount:  result.PlacedCount(),
			FailedCount:  len(result.Failed),
			SkippedCount: len(result.Skipped),
			WastePercent: 100.0 - result.TotalEfficiency(),
		})
	}

	return results, nil
}

// BuildDefaultScenarios generates a set of comparison scenarios based on
// the current configuration, varying key parameters to show what-if alternatives.
func BuildDefaultScenarios(base model.NestingConfig) []ComparisonScenario {
	scenarios := []ComparisonScenario{
		{
			Name:   "Current Settings",
			Config: base,
		},
	}

	// Scenario: Try the other collision mode
	altMode := base
	if base.Mode == model.ModeHull {
		altMode.Mode = model.ModeBBox
		scenarios = append(scenarios, ComparisonScenario{
			Name:   "Bounding Box Mode",
			Config: altMode,
		})
	} else {
		altMode.Mode = model.ModeHull
		scenarios = append(scenarios, ComparisonScenario{
			Name:   "Hull Mode",
			Config: altMode,
		})
	}

	// Scenario: Quarter-turn rotations
	if base.Rotations < 4 {
		rotations := base
		rotations.Rotations = 4
		scenarios = append(scenarios, ComparisonScenario{
			Name:   "4 Rotations",
			Config: rotations,
		})
	}

	// Scenario: Halved spacing
	if base.Spacing > 1.0 {
		tight := base
		tight.Spacing = base.Spacing * 0.5
		scenarios = append(scenarios, ComparisonScenario{
			Name:   fmt.Sprintf("Spacing %.1fmm (half)", tight.Spacing),
			Config: tight,
		})
	}

	// Scenario: Allow new sheets from stock
	if !base.MultiSheet {
		multi := base
		multi.MultiSheet = true
		scenarios = append(scenarios, ComparisonScenario{
			Name:   "Multi-Sheet",
			Config: multi,
		})
	}

	return scenarios
}
