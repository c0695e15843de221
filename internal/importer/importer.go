// Package importer reads part inventories from CSV, Excel, DXF and GNC files.
// Tabular sources are matched to columns by header aliases and produce
// rectangular parts; drawings and toolpaths keep their contours.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/piwi3910/SlabNest/internal/gcode"
	"github.com/piwi3910/SlabNest/internal/model"
)

// ImportResult holds the parts read from a file plus row-level diagnostics.
// A file can yield parts and errors at the same time.
type ImportResult struct {
	Parts    []model.RawPart
	Errors   []string
	Warnings []string
}

// HasErrors reports whether any error was recorded.
func (r ImportResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// ColumnMapping maps column roles to their indices. -1 marks a missing column.
type ColumnMapping struct {
	Name     int
	Width    int
	Height   int
	Quantity int
	Order    int
}

var headerAliases = map[string][]string{
	"name":     {"name", "label", "part", "part name", "description", "desc", "piece", "item"},
	"width":    {"width", "w", "length", "len", "x"},
	"height":   {"height", "h", "depth", "d", "y"},
	"quantity": {"quantity", "qty", "count", "num", "amount", "pcs", "pieces", "remaining"},
	"order":    {"order", "order id", "order_id", "job", "project"},
}

// positional is used when the first row is not a header.
var positional = ColumnMapping{Name: 0, Width: 1, Height: 2, Quantity: 3, Order: 4}

// ImportFile dispatches on the file extension.
func ImportFile(path string) ImportResult {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return ImportCSV(path)
	case ".xlsx", ".xlsm", ".xls":
		return ImportExcel(path)
	case ".dxf":
		return ImportDXF(path)
	case ".gnc", ".nc", ".cnc":
		return ImportGNC(path)
	}
	return ImportResult{Errors: []string{fmt.Sprintf("Unsupported file type %q", filepath.Ext(path))}}
}

// DetectCSVDelimiter picks the delimiter among comma, semicolon, tab and pipe
// that splits the rows into the most consistent multi-column layout.
func DetectCSVDelimiter(data []byte) rune {
	best, bestScore := ',', 0
	for _, delim := range []rune{',', ';', '\t', '|'} {
		records, err := readCSV(bytes.NewReader(data), delim)
		if err != nil || len(records) == 0 || len(records[0]) < 2 {
			continue
		}
		cols := len(records[0])
		consistent := 0
		for _, row := range records {
			if len(row) == cols {
				consistent++
			}
		}
		if score := consistent*10 + cols; score > bestScore {
			best, bestScore = delim, score
		}
	}
	return best
}

// DetectColumns matches a header row against the known aliases. It returns
// the positional mapping and false when no cell is a known header.
func DetectColumns(row []string) (ColumnMapping, bool) {
	m := ColumnMapping{Name: -1, Width: -1, Height: -1, Quantity: -1, Order: -1}
	slots := map[string]*int{
		"name":     &m.Name,
		"width":    &m.Width,
		"height":   &m.Height,
		"quantity": &m.Quantity,
		"order":    &m.Order,
	}

	found := false
	for i, cell := range row {
		cell = strings.ToLower(strings.TrimSpace(cell))
		for role, aliases := range headerAliases {
			for _, alias := range aliases {
				if cell != alias {
					continue
				}
				found = true
				if slot := slots[role]; *slot == -1 {
					*slot = i
				}
			}
		}
	}
	if !found {
		return positional, false
	}
	return m, true
}

// ImportCSV reads a delimited text file, detecting its delimiter.
func ImportCSV(path string) ImportResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("Cannot open file: %v", err)}}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ImportResult{Errors: []string{"File is empty"}}
	}

	delim := DetectCSVDelimiter(data)
	var warnings []string
	if delim != ',' {
		name := map[rune]string{';': "semicolon", '\t': "tab", '|': "pipe"}[delim]
		warnings = append(warnings, fmt.Sprintf("Detected %s delimiter", name))
	}

	records, err := readCSV(bytes.NewReader(data), delim)
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("Cannot read CSV: %v", err)}}
	}
	return importRows(records, "Line", warnings)
}

// ImportCSVFromReader reads CSV data with a known delimiter.
func ImportCSVFromReader(r io.Reader, delim rune) ImportResult {
	records, err := readCSV(r, delim)
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("Cannot read CSV: %v", err)}}
	}
	return importRows(records, "Line", nil)
}

// ImportExcel reads the first worksheet of a workbook.
func ImportExcel(path string) ImportResult {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("Cannot open Excel file: %v", err)}}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ImportResult{Errors: []string{"Excel file has no sheets"}}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("Cannot read Excel data: %v", err)}}
	}
	return importRows(rows, "Row", nil)
}

// ImportGNC reads a GNC toolpath program. Each part keeps its contours and
// starts with one remaining instance.
func ImportGNC(path string) ImportResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("Cannot open file: %v", err)}}
	}
	prog := gcode.Parse(string(data), filepath.Base(path))

	var result ImportResult
	for _, p := range prog.Parts {
		if len(p.Contours) == 0 || len(p.Contours[0].Commands) == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s has no motion commands, skipped", p.Name))
			continue
		}
		result.Parts = append(result.Parts, p)
	}
	if len(result.Parts) == 0 {
		result.Errors = append(result.Errors, "No toolpaths found in GNC file")
	}
	return result
}

func readCSV(r io.Reader, delim rune) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func importRows(rows [][]string, prefix string, warnings []string) ImportResult {
	result := ImportResult{Warnings: warnings}
	if len(rows) == 0 {
		result.Errors = append(result.Errors, "File is empty")
		return result
	}

	mapping, hasHeader := DetectColumns(rows[0])
	start := 0
	switch {
	case hasHeader:
		start = 1
		result.Warnings = append(result.Warnings, "Detected header row, skipping")
		var missing []string
		for _, col := range []struct {
			name string
			idx  int
		}{{"Width", mapping.Width}, {"Height", mapping.Height}, {"Quantity", mapping.Quantity}} {
			if col.idx == -1 {
				missing = append(missing, col.name)
			}
		}
		if len(missing) > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("Required columns not found in header: %s", strings.Join(missing, ", ")))
			return result
		}
	case len(rows[0]) >= 3:
		// An unrecognized header still has a non-numeric width cell.
		if _, err := strconv.ParseFloat(strings.TrimSpace(rows[0][1]), 64); err != nil {
			start = 1
			result.Warnings = append(result.Warnings, "Detected header row, skipping")
		}
	}

	for i := start; i < len(rows); i++ {
		if isEmptyRow(rows[i]) {
			continue
		}
		part, err := parseRow(rows[i], mapping, len(result.Parts))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s %d: %v", prefix, i+1, err))
			continue
		}
		result.Parts = append(result.Parts, part)
	}
	return result
}

func parseRow(row []string, m ColumnMapping, count int) (model.RawPart, error) {
	name := cell(row, m.Name)
	if name == "" {
		name = fmt.Sprintf("Part %d", count+1)
	}

	width, err := parseNumber(row, m.Width, "width")
	if err != nil {
		return model.RawPart{}, err
	}
	height, err := parseNumber(row, m.Height, "height")
	if err != nil {
		return model.RawPart{}, err
	}
	qtyStr := cell(row, m.Quantity)
	if qtyStr == "" {
		return model.RawPart{}, fmt.Errorf("missing quantity value")
	}
	qty, err := strconv.Atoi(qtyStr)
	if err != nil {
		return model.RawPart{}, fmt.Errorf("invalid quantity '%s'", qtyStr)
	}
	if width <= 0 || height <= 0 || qty <= 0 {
		return model.RawPart{}, fmt.Errorf("width, height and quantity must be positive")
	}

	part := model.NewRectPart(name, width, height, qty)
	if order := cell(row, m.Order); order != "" {
		part.Metadata = map[string]any{"order": order}
	}
	return part, nil
}

func parseNumber(row []string, idx int, what string) (float64, error) {
	s := cell(row, idx)
	if s == "" {
		return 0, fmt.Errorf("missing %s value", what)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s'", what, s)
	}
	return v, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
