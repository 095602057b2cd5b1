package service

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/piyawatt/invoice-ocr-service/dto"
)

// summaryColumns is the column order of summary_ocr.xlsx.
var summaryColumns = []string{
	"Link PDF",
	"Page",
	"Document Type",
	"VendorID_OCR",
	"Branch_OCR",
	"Vendor code",
	"Vendor Name",
	"Invoice No",
	"Date",
	"Amount",
	"Description",
	"Sales Promotion",
	"Total Amount",
	"Withholding Tax",
	"QR Payload",
}

// WriteSummaryWorkbook writes one row per extracted page. The first
// column is a HYPERLINK formula back to the source PDF so reviewers can
// jump from a row to the document.
func WriteSummaryWorkbook(path, sourceDir string, rows []dto.PageResult) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	for col, header := range summaryColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, row := range rows {
		rowNum := i + 2
		pdfPath := filepath.Join(sourceDir, row.SourceFile)
		link := fmt.Sprintf(`HYPERLINK(%q, %q)`, pdfPath,
			fmt.Sprintf("%s (Page %d)", row.SourceFile, row.Page))

		linkCell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", rowNum, err)
		}
		if err := f.SetCellFormula(sheet, linkCell, link); err != nil {
			return fmt.Errorf("failed to write link formula: %w", err)
		}

		values := []interface{}{
			row.Page,
			string(row.DocumentType),
			row.Fields.TaxID,
			row.Fields.Branch,
			row.Vendor.Code,
			row.Vendor.Name,
			row.Fields.DocumentNo,
			row.Fields.BillDate,
			row.Fields.Amount,
			describeRow(row),
			row.Fields.SalesPromotion,
			row.Fields.TotalAmount,
			row.Fields.WithholdingTax,
			row.QRPayload,
		}
		for j, value := range values {
			cell, err := excelize.CoordinatesToCellName(j+2, rowNum)
			if err != nil {
				return fmt.Errorf("failed to address row %d: %w", rowNum, err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write row %d: %w", rowNum, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// describeRow merges the common description with any template-specific
// extra fields so nothing extracted is dropped from the sheet.
func describeRow(row dto.PageResult) string {
	desc := row.Fields.Description
	if len(row.ExtraFields) == 0 {
		return desc
	}

	parts := make([]string, 0, len(row.ExtraFields)+1)
	if desc != "" {
		parts = append(parts, desc)
	}
	for _, key := range sortedKeys(row.ExtraFields) {
		parts = append(parts, fmt.Sprintf("%s=%s", key, row.ExtraFields[key]))
	}
	return strings.Join(parts, "; ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
