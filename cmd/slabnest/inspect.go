package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/piwi3910/SlabNest/internal/engine"
	"github.com/piwi3910/SlabNest/internal/gcode"
	"github.com/piwi3910/SlabNest/internal/model"
	"github.com/piwi3910/SlabNest/internal/project"
	"github.com/piwi3910/SlabNest/internal/weld"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <result.json> [sheet-index]",
		Short: "Re-weld the parts on saved sheets and print their geometry",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rf, err := project.LoadResult(args[0])
			if err != nil {
				return err
			}
			sheets := rf.Result.Sheets
			if len(args) == 2 {
				idx, err := strconv.Atoi(args[1])
				if err != nil || idx < 0 || idx >= len(sheets) {
					return fmt.Errorf("sheet index %q out of range (0-%d)", args[1], len(sheets)-1)
				}
				sheets = sheets[idx : idx+1]
			}

			n := a.nester()
			analyses := make([]model.SheetAnalysis, 0, len(sheets))
			for _, s := range sheets {
				analysis, err := n.AnalyzeSheet(cmd.Context(), s)
				if err != nil {
					return err
				}
				analyses = append(analyses, analysis)
			}
			return printJSON(cmd.OutOrStdout(), analyses)
		},
	}
}

func newCompareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <job.json>",
		Short: "Nest a job under several configurations and compare the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := project.LoadJob(args[0])
			if err != nil {
				return err
			}
			a.applyDefaults(cmd, &job)

			results, err := engine.CompareScenarios(cmd.Context(), a.nester(), job, engine.BuildDefaultScenarios(job.Config))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-28s %7s %7s %7s %7s %8s\n", "SCENARIO", "SHEETS", "PLACED", "FAILED", "SKIPPED", "WASTE%")
			for _, r := range results {
				fmt.Fprintf(w, "%-28s %7d %7d %7d %7d %8.1f\n",
					r.Scenario.Name, r.SheetsUsed, r.PlacedCount, r.FailedCount, r.SkippedCount, r.WastePercent)
			}
			return nil
		},
	}
}

// partSummary is the parse command's view of one welded part.
type partSummary struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Commands int     `json:"commands"`
	Closed   bool    `json:"closed"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Vertices int     `json:"vertices"`
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file.gnc>",
		Short: "Parse a GNC program and weld each contour group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			prog := gcode.Parse(string(data), args[0])

			out := make([]partSummary, 0, len(prog.Parts))
			for _, p := range prog.Parts {
				var commands int
				for _, c := range p.Contours {
					commands += len(c.Commands)
				}
				geo := weld.WeldPart(p)
				out = append(out, partSummary{
					ID:       p.ID,
					Name:     p.Name,
					Commands: commands,
					Closed:   geo.IsClosed,
					Width:    geo.Width,
					Height:   geo.Height,
					Vertices: len(geo.Polygon),
				})
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	var into string
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import parts into a job file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var job model.NestJob
			if _, err := os.Stat(into); err == nil {
				if job, err = project.LoadJob(into); err != nil {
					return err
				}
			}
			if err := importInto(a, &job, args); err != nil {
				return err
			}
			a.applyDefaults(cmd, &job)
			return project.SaveJob(into, job)
		},
	}
	cmd.Flags().StringVar(&into, "into", "job.json", "job file to create or extend")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
