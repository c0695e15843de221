// Package export renders nesting results as PDF reports, part labels,
// spreadsheets and charts.
package export

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-pdf/fpdf"

	"github.com/piwi3910/SlabNest/internal/model"
)

type partColor struct {
	R, G, B int
}

var partColors = []partColor{
	{R: 76, G: 175, B: 80},  // green
	{R: 33, G: 150, B: 243}, // blue
	{R: 255, G: 152, B: 0},  // orange
	{R: 156, G: 39, B: 176}, // purple
	{R: 0, G: 188, B: 212},  // cyan
	{R: 244, G: 67, B: 54},  // red
	{R: 255, G: 235, B: 59}, // yellow
	{R: 121, G: 85, B: 72},  // brown
}

// Page layout constants (A4 landscape in mm).
const (
	pageWidth    = 297.0
	pageHeight   = 210.0
	marginLeft   = 15.0
	marginRight  = 15.0
	marginTop    = 15.0
	marginBottom = 15.0
	headerHeight = 12.0
	legendHeight = 20.0
	drawAreaTop  = marginTop + headerHeight + 5.0
)

// ExportPDF writes the nesting report to path.
func ExportPDF(path string, result model.NestResult, cfg model.NestingConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WritePDF(f, result, cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WritePDF renders one page per sheet followed by a summary page.
func WritePDF(w io.Writer, result model.NestResult, cfg model.NestingConfig) error {
	if len(result.Sheets) == 0 {
		return fmt.Errorf("no sheets to export")
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, marginBottom)

	for i, sheet := range result.Sheets {
		pdf.AddPage()
		renderSheetPage(pdf, sheet, i+1)
	}
	pdf.AddPage()
	renderSummaryPage(pdf, result, cfg)

	return pdf.Output(w)
}

// sheetSize falls back to the default stock size for sheets without one.
func sheetSize(s model.Sheet) (float64, float64) {
	w, h := s.Width, s.Height
	if w <= 0 {
		w = model.DefaultSheetWidth
	}
	if h <= 0 {
		h = model.DefaultSheetHeight
	}
	return w, h
}

func renderSheetPage(pdf *fpdf.Fpdf, sheet model.Sheet, num int) {
	sw, sh := sheetSize(sheet)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetXY(marginLeft, marginTop)
	title := fmt.Sprintf("Sheet %d: %s (%.0f x %.0f mm)", num, sheet.Name, sw, sh)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, headerHeight, title, "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(marginLeft, marginTop+headerHeight)
	stats := fmt.Sprintf("Parts: %d | Used area: %.0f mm2 | Efficiency: %.1f%%",
		len(sheet.Parts), sheet.UsedArea(), sheet.Efficiency())
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 5, stats, "", 0, "L", false, 0, "")

	drawWidth := pageWidth - marginLeft - marginRight
	drawHeight := pageHeight - drawAreaTop - marginBottom - legendHeight
	scale := math.Min(drawWidth/sw, drawHeight/sh)
	canvasW, canvasH := sw*scale, sh*scale
	ox := marginLeft + (drawWidth-canvasW)/2
	oy := drawAreaTop

	pdf.SetFillColor(210, 180, 140)
	pdf.SetDrawColor(100, 100, 100)
	pdf.SetLineWidth(0.5)
	pdf.Rect(ox, oy, canvasW, canvasH, "FD")

	// usable area
	area := sheet.UsableArea()
	pdf.SetDrawColor(200, 0, 0)
	pdf.SetLineWidth(0.2)
	pdf.SetDashPattern([]float64{2, 1}, 0)
	pdf.Rect(ox+area.X*scale, oy+area.Y*scale, area.Width*scale, area.Height*scale, "D")
	pdf.SetDashPattern([]float64{}, 0)

	for i, p := range sheet.Parts {
		col := partColors[i%len(partColors)]
		pdf.SetFillColor(col.R, col.G, col.B)
		pdf.SetDrawColor(30, 30, 30)
		pdf.SetLineWidth(0.3)

		px, py := ox+p.X*scale, oy+p.Y*scale
		pw, ph := p.Width*scale, p.Height*scale
		if len(p.Polygon) >= 3 {
			pts := make([]fpdf.PointType, len(p.Polygon))
			for j, v := range p.Polygon {
				pts[j] = fpdf.PointType{X: px + v.X*scale, Y: py + v.Y*scale}
			}
			pdf.Polygon(pts, "FD")
		} else {
			pdf.Rect(px, py, pw, ph, "FD")
		}

		if pw > 15 && ph > 8 {
			pdf.SetFont("Helvetica", "", labelFontSize(pw, ph))
			pdf.SetTextColor(0, 0, 0)
			label := fmt.Sprintf("#%d", p.ID)
			lw := pdf.GetStringWidth(label)
			if lw < pw-2 {
				pdf.SetXY(px+(pw-lw)/2, py+ph/2-2)
				pdf.CellFormat(lw, 4, label, "", 0, "C", false, 0, "")
			}
		}
	}

	drawDimensions(pdf, sw, sh, ox, oy, canvasW, canvasH)
	drawLegend(pdf, sheet, oy+canvasH+5)
}

func drawDimensions(pdf *fpdf.Fpdf, sw, sh, ox, oy, canvasW, canvasH float64) {
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(80, 80, 80)

	wLabel := fmt.Sprintf("%.0f mm", sw)
	wl := pdf.GetStringWidth(wLabel)
	pdf.SetXY(ox+(canvasW-wl)/2, oy+canvasH+1)
	pdf.CellFormat(wl, 4, wLabel, "", 0, "C", false, 0, "")

	hLabel := fmt.Sprintf("%.0f mm", sh)
	pdf.TransformBegin()
	pdf.TransformRotate(90, ox-3, oy+canvasH/2)
	hl := pdf.GetStringWidth(hLabel)
	pdf.SetXY(ox-3-hl/2, oy+canvasH/2-2)
	pdf.CellFormat(hl, 4, hLabel, "", 0, "C", false, 0, "")
	pdf.TransformEnd()

	pdf.SetTextColor(0, 0, 0)
}

func drawLegend(pdf *fpdf.Fpdf, sheet model.Sheet, y float64) {
	if len(sheet.Parts) == 0 {
		return
	}

	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(30, 4, "Parts placed:", "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	x := marginLeft + 32
	for i, p := range sheet.Parts {
		col := partColors[i%len(partColors)]
		label := fmt.Sprintf("#%d %s (%.0fx%.0f)", p.ID, p.Name, p.Width, p.Height)
		if p.Rotation != 0 {
			label += fmt.Sprintf(" R%.0f", p.Rotation)
		}
		lw := pdf.GetStringWidth(label) + 6
		if x+lw > pageWidth-marginRight {
			y += 5
			x = marginLeft
		}

		pdf.SetFillColor(col.R, col.G, col.B)
		pdf.Rect(x, y+0.5, 3, 3, "F")
		pdf.SetXY(x+4, y)
		pdf.CellFormat(lw-4, 4, label, "", 0, "L", false, 0, "")
		x += lw + 2
	}
}

func renderSummaryPage(pdf *fpdf.Fpdf, result model.NestResult, cfg model.NestingConfig) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetXY(marginLeft, marginTop)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 10, "Nesting Summary", "", 0, "L", false, 0, "")

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Line(marginLeft, marginTop+12, pageWidth-marginRight, marginTop+12)

	y := marginTop + 18
	y = keyValues(pdf, y, "Overall Statistics", [][2]string{
		{"Sheets", fmt.Sprintf("%d", len(result.Sheets))},
		{"Overall Efficiency", fmt.Sprintf("%.1f%%", result.TotalEfficiency())},
		{"Parts Placed", fmt.Sprintf("%d", result.PlacedCount())},
		{"Failed", fmt.Sprintf("%d", len(result.Failed))},
		{"Skipped", fmt.Sprintf("%d", len(result.Skipped))},
	})

	y += 5
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(100, 7, "Sheet Breakdown", "", 0, "L", false, 0, "")
	y += 9

	widths := []float64{20, 60, 50, 30, 35, 50}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	x := marginLeft
	for i, h := range []string{"Sheet", "Name", "Dimensions", "Parts", "Efficiency", "Used Area"} {
		pdf.SetXY(x, y)
		pdf.CellFormat(widths[i], 6, h, "1", 0, "C", true, 0, "")
		x += widths[i]
	}
	y += 6

	pdf.SetFont("Helvetica", "", 9)
	for i, s := range result.Sheets {
		sw, sh := sheetSize(s)
		row := []string{
			s.ID,
			s.Name,
			fmt.Sprintf("%.0f x %.0f mm", sw, sh),
			fmt.Sprintf("%d", len(s.Parts)),
			fmt.Sprintf("%.1f%%", s.Efficiency()),
			fmt.Sprintf("%.0f mm2", s.UsedArea()),
		}
		if i%2 == 0 {
			pdf.SetFillColor(245, 245, 245)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		x = marginLeft
		for j, c := range row {
			pdf.SetXY(x, y)
			pdf.CellFormat(widths[j], 6, c, "1", 0, "C", true, 0, "")
			x += widths[j]
		}
		y += 6
	}

	if problems := append(append([]model.Failure{}, result.Failed...), result.Skipped...); len(problems) > 0 {
		y += 8
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(200, 0, 0)
		pdf.SetXY(marginLeft, y)
		pdf.CellFormat(200, 7, "WARNING: Parts not placed", "", 0, "L", false, 0, "")
		y += 8

		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(0, 0, 0)
		for _, f := range problems {
			if y > pageHeight-marginBottom-10 {
				break
			}
			pdf.SetXY(marginLeft+5, y)
			text := fmt.Sprintf("- %s #%d (%s): %s", f.Name, f.InstanceIndex, f.Kind, f.Reason)
			pdf.CellFormat(250, 5, text, "", 0, "L", false, 0, "")
			y += 5
		}
	}

	y += 8
	keyValues(pdf, y, "Nesting Settings", [][2]string{
		{"Mode", string(cfg.Mode)},
		{"Spacing", fmt.Sprintf("%.1f mm", cfg.Spacing)},
		{"Rotations", fmt.Sprintf("%d", cfg.Rotations)},
		{"Multi-Sheet", fmt.Sprintf("%t", cfg.MultiSheet)},
	})

	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(marginLeft, pageHeight-marginBottom)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 4, "Generated by SlabNest", "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

// keyValues draws a titled two-column list and returns the next free y.
func keyValues(pdf *fpdf.Fpdf, y float64, title string, items [][2]string) float64 {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(100, 7, title, "", 0, "L", false, 0, "")
	y += 9

	for _, it := range items {
		pdf.SetXY(marginLeft+5, y)
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(60, 6, it[0]+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, it[1], "", 0, "L", false, 0, "")
		y += 7
	}
	return y
}

func labelFontSize(w, h float64) float64 {
	switch d := math.Min(w, h); {
	case d > 40:
		return 8
	case d > 20:
		return 7
	default:
		return 6
	}
}
