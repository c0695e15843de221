package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/piwi3910/SlabNest/internal/model"
)

// LabelInfo is the data encoded into the QR code of a part label.
type LabelInfo struct {
	InstanceID    int     `json:"id"`
	PartID        string  `json:"part"`
	Name          string  `json:"name"`
	InstanceIndex int     `json:"instance"`
	Width         float64 `json:"width_mm"`
	Height        float64 `json:"height_mm"`
	SheetID       string  `json:"sheet"`
	SheetName     string  `json:"sheet_name"`
	Rotation      float64 `json:"rotation"`
	X             float64 `json:"x_mm"`
	Y             float64 `json:"y_mm"`
}

// Avery 5160 layout: 3 x 10 labels of 66.7 x 25.4 mm on US Letter.
const (
	labelMarginTop  = 12.7
	labelMarginLeft = 4.8
	labelWidth      = 66.7
	labelHeight     = 25.4
	labelCols       = 3
	labelRows       = 10
	labelsPerPage   = labelCols * labelRows
	qrSize          = 20.0
	labelPadding    = 2.0
)

// CollectLabelInfos returns one label per placed instance, sheet by sheet.
func CollectLabelInfos(result model.NestResult) []LabelInfo {
	var labels []LabelInfo
	for _, s := range result.Sheets {
		for _, p := range s.Parts {
			labels = append(labels, LabelInfo{
				InstanceID:    p.ID,
				PartID:        p.PartID,
				Name:          p.Name,
				InstanceIndex: p.InstanceIndex,
				Width:         p.Width,
				Height:        p.Height,
				SheetID:       s.ID,
				SheetName:     s.Name,
				Rotation:      p.Rotation,
				X:             p.X,
				Y:             p.Y,
			})
		}
	}
	return labels
}

// ExportLabels writes a label sheet PDF to path.
func ExportLabels(path string, result model.NestResult) error {
	var buf bytes.Buffer
	if err := WriteLabels(&buf, result); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// WriteLabels renders a QR-coded label for every placed instance.
func WriteLabels(w io.Writer, result model.NestResult) error {
	labels := CollectLabelInfos(result)
	if len(labels) == 0 {
		return fmt.Errorf("no placed parts to generate labels for")
	}

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)

	for i, l := range labels {
		if i%labelsPerPage == 0 {
			pdf.AddPage()
		}
		pos := i % labelsPerPage
		x := labelMarginLeft + float64(pos%labelCols)*labelWidth
		y := labelMarginTop + float64(pos/labelCols)*labelHeight
		if err := renderLabel(pdf, x, y, i, l); err != nil {
			return fmt.Errorf("failed to render label for instance %d: %w", l.InstanceID, err)
		}
	}
	return pdf.Output(w)
}

func renderLabel(pdf *fpdf.Fpdf, x, y float64, idx int, info LabelInfo) error {
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.1)
	pdf.Rect(x, y, labelWidth, labelHeight, "D")

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal label info: %w", err)
	}
	png, err := qrcode.Encode(string(data), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}

	img := fmt.Sprintf("qr_%d", idx)
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(img, opts, bytes.NewReader(png))
	pdf.ImageOptions(img, x+labelWidth-qrSize-labelPadding, y+(labelHeight-qrSize)/2, qrSize, qrSize, false, opts, 0, "")

	tx := x + labelPadding
	tw := labelWidth - qrSize - 3*labelPadding

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(tx, y+labelPadding)
	pdf.CellFormat(tw, 4.5, truncate(pdf, fmt.Sprintf("%s #%d", info.Name, info.InstanceIndex), tw), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	pdf.SetXY(tx, y+labelPadding+5)
	pdf.CellFormat(tw, 3.5, fmt.Sprintf("%.0f x %.0f mm", info.Width, info.Height), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 6)
	pdf.SetTextColor(100, 100, 100)
	pdf.SetXY(tx, y+labelPadding+9)
	pdf.CellFormat(tw, 3, fmt.Sprintf("Sheet %s @ (%.0f, %.0f)", info.SheetID, info.X, info.Y), "", 1, "L", false, 0, "")

	if info.Rotation != 0 {
		pdf.SetXY(tx, y+labelPadding+12.5)
		pdf.SetFont("Helvetica", "I", 6)
		pdf.SetTextColor(150, 100, 0)
		pdf.CellFormat(tw, 3, fmt.Sprintf("Rotated %.0f\xb0", info.Rotation), "", 0, "L", false, 0, "")
	}

	pdf.SetTextColor(0, 0, 0)
	return nil
}

// truncate shortens s with an ellipsis until it fits width.
func truncate(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}
