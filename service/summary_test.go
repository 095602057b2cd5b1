package service

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/piyawatt/invoice-ocr-service/dto"
)

func TestWriteSummaryWorkbook(t *testing.T) {
	rows := []dto.PageResult{
		{
			SourceFile:   "inv_001.pdf",
			Page:         2,
			DocumentType: dto.DocTypeInvoice,
			Engine:       "typhoon",
			Fields: dto.InvoiceFields{
				DocumentNo:     "INV-001",
				BillDate:       "15/03/2024",
				Amount:         "1,070.00",
				TaxID:          "0105536112233",
				Branch:         "00000",
				Description:    "ค่าบริการขนส่ง",
				TotalAmount:    "1,070.00",
				WithholdingTax: "30.00",
			},
			Vendor:    dto.VendorInfo{Code: "V10001", Name: "บริษัท หนึ่ง จำกัด"},
			QRPayload: "00020101021229370016A000000677010111",
		},
		{
			SourceFile:   "cy_001.pdf",
			Page:         1,
			DocumentType: dto.DocTypeCYInstruction,
			Engine:       "ollama",
			Fields:       dto.InvoiceFields{DocumentNo: "CY-55"},
			ExtraFields:  map[string]string{"cy_booking": "BKG123", "cy_exporter": "Siam Export"},
		},
	}

	path := filepath.Join(t.TempDir(), SummaryFileName)
	require.NoError(t, WriteSummaryWorkbook(path, "/data/source", rows))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	sheet := f.GetSheetName(0)

	got, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, summaryColumns, got[0][:len(summaryColumns)])

	formula, err := f.GetCellFormula(sheet, "A2")
	require.NoError(t, err)
	assert.Contains(t, formula, "HYPERLINK")
	assert.Contains(t, formula, "inv_001.pdf")

	page, err := f.GetCellValue(sheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "2", page)

	vendorCode, err := f.GetCellValue(sheet, "F2")
	require.NoError(t, err)
	assert.Equal(t, "V10001", vendorCode)

	invoiceNo, err := f.GetCellValue(sheet, "H2")
	require.NoError(t, err)
	assert.Equal(t, "INV-001", invoiceNo)

	// Extra template fields land in the description column, sorted.
	desc, err := f.GetCellValue(sheet, "K3")
	require.NoError(t, err)
	assert.Equal(t, "cy_booking=BKG123; cy_exporter=Siam Export", desc)
}

func TestWriteSummaryWorkbookEmptyRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), SummaryFileName)
	require.NoError(t, WriteSummaryWorkbook(path, "/src", nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, got, 1)
}
