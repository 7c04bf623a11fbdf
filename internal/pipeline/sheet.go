package pipeline

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"outbound/internal/util"
)

// SheetRow is one parsed spreadsheet line before matching.
type SheetRow struct {
	Name     string
	Quantity float64
	Row      int
	File     string
}

var (
	nameProbes = []string{"model", "제품", "품목", "product", "name"}
	qtyProbes  = []string{"quantity", "수량", "qty"}
)

// ParseWorkbook reads an attached order spreadsheet. The name and
// quantity columns are located by header probes within the first rows of
// each sheet; rows with a blank name or non-positive quantity are
// skipped. A workbook without recognizable headers yields zero rows, not
// an error.
func ParseWorkbook(path string) ([]SheetRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	baseName := workbookBaseName(path)
	out := []SheetRow{}

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) < 2 {
			continue
		}

		nameIdx, qtyIdx, headerRow := -1, -1, -1
		for i := 0; i < len(rows) && i < 3; i++ {
			n, q := inferColumns(rows[i])
			if n >= 0 && q >= 0 {
				nameIdx, qtyIdx, headerRow = n, q, i
				break
			}
		}
		if headerRow < 0 {
			continue
		}

		for i := headerRow + 1; i < len(rows); i++ {
			cells := rows[i]
			name := pickCell(cells, nameIdx)
			qtyCell := pickCell(cells, qtyIdx)
			if name == "" || strings.EqualFold(name, "nan") || qtyCell == "" {
				continue
			}
			qty, ok := util.ToFloat(qtyCell)
			if !ok || qty <= 0 {
				continue
			}
			out = append(out, SheetRow{
				Name:     name,
				Quantity: qty,
				Row:      i + 1,
				File:     baseName,
			})
		}
	}

	return out, nil
}

func inferColumns(header []string) (nameIdx, qtyIdx int) {
	nameIdx, qtyIdx = -1, -1
	for i, cell := range header {
		lower := strings.ToLower(strings.TrimSpace(cell))
		if lower == "" {
			continue
		}
		if nameIdx < 0 && containsAny(lower, nameProbes) {
			nameIdx = i
			continue
		}
		if qtyIdx < 0 && containsAny(lower, qtyProbes) {
			qtyIdx = i
		}
	}
	return nameIdx, qtyIdx
}

func containsAny(cell string, probes []string) bool {
	for _, probe := range probes {
		if strings.Contains(cell, probe) {
			return true
		}
	}
	return false
}

func pickCell(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return util.NormalizeSpaces(cells[idx])
}

func workbookBaseName(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
