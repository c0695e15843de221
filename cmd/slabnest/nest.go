package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/piwi3910/SlabNest/internal/export"
	"github.com/piwi3910/SlabNest/internal/gcode"
	"github.com/piwi3910/SlabNest/internal/importer"
	"github.com/piwi3910/SlabNest/internal/model"
	"github.com/piwi3910/SlabNest/internal/project"
	"github.com/piwi3910/SlabNest/internal/store"
)

type nestOptions struct {
	imports  []string
	output   string
	pdf      string
	labels   string
	report   string
	chart    string
	gcodeDir string
	orderID  string
}

func newNestCmd(a *app) *cobra.Command {
	var o nestOptions
	cmd := &cobra.Command{
		Use:   "nest [job.json]",
		Short: "Run a nesting job and write the result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var job model.NestJob
			if len(args) == 1 {
				var err error
				if job, err = project.LoadJob(args[0]); err != nil {
					return err
				}
			}
			if err := importInto(a, &job, o.imports); err != nil {
				return err
			}
			a.applyDefaults(cmd, &job)
			return runNest(cmd.Context(), a, job, o, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&o.imports, "import", "i", nil, "add parts from CSV, Excel, DXF or GNC files")
	f.StringVarP(&o.output, "output", "o", "", "write the result envelope to this file (default stdout)")
	f.StringVar(&o.pdf, "pdf", "", "write a sheet layout PDF")
	f.StringVar(&o.labels, "labels", "", "write a PDF of part labels")
	f.StringVar(&o.report, "report", "", "write an Excel report")
	f.StringVar(&o.chart, "chart", "", "write an HTML utilization chart")
	f.StringVar(&o.gcodeDir, "gcode", "", "write one GNC program per sheet into this directory")
	f.StringVar(&o.orderID, "order", "", "save the result in the store under this order id")
	return cmd
}

func importInto(a *app, job *model.NestJob, paths []string) error {
	for _, path := range paths {
		res := importer.ImportFile(path)
		for _, w := range res.Warnings {
			a.logger.Warn("Import warning", zap.String("file", path), zap.String("warning", w))
		}
		if res.HasErrors() {
			for _, e := range res.Errors {
				a.logger.Error("Import error", zap.String("file", path), zap.String("error", e))
			}
			return fmt.Errorf("failed to import %s: %d errors", path, len(res.Errors))
		}
		var added int
		job.Inventory, added = project.MergeInventory(job.Inventory, res.Parts)
		a.logger.Info("Imported parts", zap.String("file", path), zap.Int("parts", added))
	}
	return nil
}

func runNest(ctx context.Context, a *app, job model.NestJob, o nestOptions, stdout io.Writer) error {
	log := a.logger.Named("nest")

	a.recorder.RunStarted()
	result, err := a.nester().Nest(ctx, job, func(pct int) {
		log.Debug("Progress", zap.Int("percent", pct))
	})
	if err != nil {
		return err
	}
	a.recorder.RunResult(result.PlacedCount(), len(result.Failed), len(result.Skipped), result.TotalEfficiency())
	log.Info("Nesting finished",
		zap.Int("placed", result.PlacedCount()),
		zap.Int("failed", len(result.Failed)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("sheets", len(result.Sheets)),
		zap.Float64("efficiency", result.TotalEfficiency()))

	if o.output != "" {
		if err := project.SaveResult(o.output, job.Config, result); err != nil {
			return err
		}
	} else if err := printJSON(stdout, project.NewResultFile(job.Config, result)); err != nil {
		return err
	}

	if o.pdf != "" {
		if err := export.ExportPDF(o.pdf, result, job.Config); err != nil {
			return err
		}
	}
	if o.labels != "" {
		if err := export.ExportLabels(o.labels, result); err != nil {
			return err
		}
	}
	if o.report != "" {
		if err := export.ExportReport(o.report, result); err != nil {
			return err
		}
	}
	if o.chart != "" {
		if err := writeChart(o.chart, result); err != nil {
			return err
		}
	}
	if o.gcodeDir != "" {
		if err := writePrograms(o.gcodeDir, result); err != nil {
			return err
		}
	}
	if o.orderID != "" {
		if err := saveOrder(ctx, a, o.orderID, project.NewResultFile(job.Config, result)); err != nil {
			return err
		}
	}
	return nil
}

func writeChart(path string, result model.NestResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart: %w", err)
	}
	if err := export.WriteUtilizationChart(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writePrograms(dir string, result model.NestResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	gen := gcode.NewGenerator()
	for i, program := range gen.GenerateAll(result) {
		name := fmt.Sprintf("sheet_%s_801.gnc", result.Sheets[i].ID)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(program), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

func saveOrder(ctx context.Context, a *app, orderID string, p project.ResultFile) error {
	db, err := store.OpenSQLite(a.cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	st := store.New(db)
	if err := st.Init(ctx); err != nil {
		return err
	}
	if err := st.SaveNesting(ctx, orderID, p); err != nil {
		return err
	}
	a.logger.Info("Saved order nesting", zap.String("order", orderID), zap.String("db", a.cfg.Store.Path))
	return nil
}
