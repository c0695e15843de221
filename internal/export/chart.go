package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/piwi3910/SlabNest/internal/model"
)

// UtilizationChart builds a bar chart of per-sheet efficiency and part counts.
func UtilizationChart(result model.NestResult) *charts.Bar {
	names := make([]string, 0, len(result.Sheets))
	eff := make([]opts.BarData, 0, len(result.Sheets))
	counts := make([]opts.BarData, 0, len(result.Sheets))
	for i, s := range result.Sheets {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("Sheet %d", i+1)
		}
		names = append(names, name)
		eff = append(eff, opts.BarData{Value: round1(s.Efficiency())})
		counts = append(counts, opts.BarData{Value: len(s.Parts)})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Sheet Utilization",
			Subtitle: fmt.Sprintf("Overall %.1f%%, %d placed, %d not placed", result.TotalEfficiency(), result.PlacedCount(), len(result.Failed)+len(result.Skipped)),
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("Efficiency %", eff).
		AddSeries("Parts", counts)
	return bar
}

// WriteUtilizationChart renders the utilization chart as an HTML page.
func WriteUtilizationChart(w io.Writer, result model.NestResult) error {
	if len(result.Sheets) == 0 {
		return fmt.Errorf("no sheets to chart")
	}
	return UtilizationChart(result).Render(w)
}
