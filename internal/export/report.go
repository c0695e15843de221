package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/piwi3910/SlabNest/internal/model"
)

const (
	sheetsTab     = "Sheets"
	placementsTab = "Placements"
	failuresTab   = "Not Placed"
)

// ExportReport writes the XLSX placement report to path.
func ExportReport(path string, result model.NestResult) error {
	f, err := buildReport(result)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// WriteReport streams the XLSX placement report to w.
func WriteReport(w io.Writer, result model.NestResult) error {
	f, err := buildReport(result)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func buildReport(result model.NestResult) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheetsTab); err != nil {
		f.Close()
		return nil, err
	}
	for _, tab := range []string{placementsTab, failuresTab} {
		if _, err := f.NewSheet(tab); err != nil {
			f.Close()
			return nil, err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	sheets := [][]any{{"Sheet", "Name", "Width", "Height", "Parts", "Used Area", "Efficiency %"}}
	placements := [][]any{{"Sheet", "Instance", "Part", "Name", "Index", "X", "Y", "Rotation", "Width", "Height"}}
	for _, s := range result.Sheets {
		sheets = append(sheets, []any{s.ID, s.Name, s.Width, s.Height, len(s.Parts), s.UsedArea(), round1(s.Efficiency())})
		for _, p := range s.Parts {
			placements = append(placements, []any{s.ID, p.ID, p.PartID, p.Name, p.InstanceIndex, p.X, p.Y, p.Rotation, p.Width, p.Height})
		}
	}
	sheets = append(sheets, []any{"Total", "", "", "", result.PlacedCount(), "", round1(result.TotalEfficiency())})

	failures := [][]any{{"Part", "Name", "Index", "Kind", "Reason"}}
	for _, fl := range append(append([]model.Failure{}, result.Failed...), result.Skipped...) {
		failures = append(failures, []any{fl.PartID, fl.Name, fl.InstanceIndex, string(fl.Kind), fl.Reason})
	}

	for tab, rows := range map[string][][]any{sheetsTab: sheets, placementsTab: placements, failuresTab: failures} {
		if err := writeRows(f, tab, rows, bold); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeRows(f *excelize.File, tab string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(tab, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", tab, i+1, err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(tab, "A1", last, headerStyle)
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
