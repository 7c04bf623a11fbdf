package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"outbound/internal"
)

const (
	orderSheetName   = "주문서입력"
	summarySheetName = "요약"
)

var orderHeaders = []string{
	"일자", "순번", "거래처코드", "거래처명", "출하창고", "담당자",
	"품목코드", "품목명", "규격", "수량", "사용유형", "적요",
}

// ExportBrandWorkbooks writes one order workbook per brand plus a summary
// sheet in each, and returns the created file paths.
func ExportBrandWorkbooks(result internal.AggregationResult, report internal.ValidationReport, warehouseCode, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}

	timestamp := time.Now().Format("20060102_150405")
	created := []string{}

	for _, brand := range result.Brands {
		products := result.ByBrand[brand]
		if len(products) == 0 {
			continue
		}

		path := filepath.Join(outputDir, fmt.Sprintf("%s_주문서_%s.xlsx", sanitizeBrand(brand), timestamp))
		if err := writeBrandWorkbook(path, brand, products, report, warehouseCode); err != nil {
			return created, fmt.Errorf("export brand %s: %w", brand, err)
		}
		created = append(created, path)
	}

	return created, nil
}

func writeBrandWorkbook(path, brand string, products []internal.AggregatedProduct, report internal.ValidationReport, warehouseCode string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, orderSheetName); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder(),
	})
	if err != nil {
		return err
	}
	dataStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder(),
	})
	if err != nil {
		return err
	}

	for i, header := range orderHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(orderSheetName, cell, header); err != nil {
			return err
		}
	}

	today := time.Now().Format("2006-01-02")
	for i, product := range products {
		row := i + 2
		memo := product.Memo
		if strings.TrimSpace(memo) == "" {
			memo = FallbackMemo
		}
		values := map[string]any{
			"A": today,
			"B": i + 1,
			"E": warehouseCode,
			"G": product.ProductCode,
			"H": product.CanonicalName,
			"J": product.TotalQuantity,
			"L": memo,
		}
		for col, value := range values {
			if err := f.SetCellValue(orderSheetName, fmt.Sprintf("%s%d", col, row), value); err != nil {
				return err
			}
		}
	}

	lastCell, _ := excelize.CoordinatesToCellName(len(orderHeaders), len(products)+1)
	_ = f.SetCellStyle(orderSheetName, "A1", fmt.Sprintf("%s1", columnName(len(orderHeaders))), headerStyle)
	if len(products) > 0 {
		_ = f.SetCellStyle(orderSheetName, "A2", lastCell, dataStyle)
	}
	_ = f.SetColWidth(orderSheetName, "A", columnName(len(orderHeaders)), 14)

	if err := writeSummarySheet(f, brand, products, report); err != nil {
		return err
	}

	return f.SaveAs(path)
}

func writeSummarySheet(f *excelize.File, brand string, products []internal.AggregatedProduct, report internal.ValidationReport) error {
	if _, err := f.NewSheet(summarySheetName); err != nil {
		return err
	}

	totalQty := 0
	for _, p := range products {
		totalQty += p.TotalQuantity
	}

	rows := [][]any{
		{"브랜드", brand},
		{"제품 종류", len(products)},
		{"총 수량", totalQty},
		{"평균 신뢰도", fmt.Sprintf("%.2f%%", report.AverageConfidence)},
		{"처리된 스레드", report.ThreadCount},
		{"생성 일시", time.Now().Format("2006-01-02 15:04:05")},
	}
	for i, row := range rows {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+1)
			if err := f.SetCellValue(summarySheetName, cell, value); err != nil {
				return err
			}
		}
	}
	_ = f.SetColWidth(summarySheetName, "A", "B", 18)
	return nil
}

func thinBorder() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Style: 1, Color: "000000"},
		{Type: "right", Style: 1, Color: "000000"},
		{Type: "top", Style: 1, Color: "000000"},
		{Type: "bottom", Style: 1, Color: "000000"},
	}
}

func columnName(n int) string {
	name, _ := excelize.ColumnNumberToName(n)
	return name
}

func sanitizeBrand(brand string) string {
	repl := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "<", "_", ">", "_", "|", "_", " ", "_")
	return repl.Replace(brand)
}
