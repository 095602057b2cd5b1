package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/piyawatt/invoice-ocr-service/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTemplatesEmbeddedDefaults(t *testing.T) {
	ts, err := LoadTemplates("")
	require.NoError(t, err)

	assert.Contains(t, ts.Templates, "invoice")
	assert.Contains(t, ts.Templates, "billing_note")
	assert.Contains(t, ts.Templates, "cy_instruction")
	assert.Contains(t, ts.Templates, "sahatthai_invoice")
}

func TestLoadTemplatesBadFile(t *testing.T) {
	_, err := LoadTemplates(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadTemplatesBadPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	bad := `{"templates":{"invoice":{"name":"x","detect_keywords":[],"fields":{"f":{"patterns":["("]}}}}}`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := LoadTemplates(path)
	assert.Error(t, err)
}

func TestDetectDocumentType(t *testing.T) {
	ts, err := LoadTemplates("")
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
		want dto.DocumentType
	}{
		{
			"cy instruction wins anywhere",
			"some header\nmore\nlines\nhere\nCY INSTRUCTION for booking",
			dto.DocTypeCYInstruction,
		},
		{
			"billing note in header",
			"บริษัท ขนส่ง จำกัด\nใบวางบิล\nรายการ",
			dto.DocTypeBillingNote,
		},
		{
			"billing note keyword too deep is ignored",
			"l1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\nl9\nl10\nl11\nl12\nl13\nl14\nl15\nl16\nใบวางบิล",
			dto.DocTypeInvoice,
		},
		{
			"sahathai terminal",
			"SAHATHAI TERMINAL PCL\ninvoice detail",
			dto.DocTypeSahatthaiInvoice,
		},
		{
			"plain invoice default",
			"ใบกำกับภาษี เลขที่ 123",
			dto.DocTypeInvoice,
		},
		{
			"empty text",
			"",
			dto.DocTypeInvoice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ts.DetectDocumentType(tt.text))
		})
	}
}

func TestExtractExtraFields(t *testing.T) {
	ts, err := LoadTemplates("")
	require.NoError(t, err)

	text := `CY INSTRUCTION
Exporter: Siam Export Co., Ltd.
Invoice No: SE-2024/001
Booking No: BKG123456
2 x 40' HC`

	extra := ts.ExtractExtraFields(dto.DocTypeCYInstruction, text)
	require.NotNil(t, extra)

	assert.Equal(t, "Siam Export Co., Ltd.", extra["cy_exporter"])
	assert.Equal(t, "SE-2024/001", extra["cy_invoice_no"])
	assert.Equal(t, "BKG123456", extra["cy_booking"])
}

func TestExtractExtraFieldsBookingPattern(t *testing.T) {
	ts, err := LoadTemplates("")
	require.NoError(t, err)

	// The carrier code and booking number are followed by free-form
	// remarks on the same line; only the code survives.
	text := "CY INSTRUCTION\nBooking : ONE 264702890 PLEASE CONFIRM"

	extra := ts.ExtractExtraFields(dto.DocTypeCYInstruction, text)
	require.NotNil(t, extra)
	assert.Equal(t, "ONE 264702890", extra["cy_booking"])
}

func TestExtractExtraFieldsSkipLines(t *testing.T) {
	ts, err := LoadTemplates("")
	require.NoError(t, err)

	// The header carries its own reference number; document_no skips
	// the first line so the billing note's number wins.
	text := "เลขที่ REF-0001 ใบวางบิล\nเลขที่ BN-2024/055\nยอดรวมทั้งสิ้น 4,280.00"

	extra := ts.ExtractExtraFields(dto.DocTypeBillingNote, text)
	require.NotNil(t, extra)
	assert.Equal(t, "BN-2024/055", extra["document_no"])
	assert.Equal(t, "4,280.00", extra["total_amount"])
}

func TestExtractExtraFieldsLastAmountFallback(t *testing.T) {
	ts, err := LoadTemplates("")
	require.NoError(t, err)

	text := "ใบวางบิล\nรายการ 1 100.00\nรายการ 2 50.00\n150.00"

	extra := ts.ExtractExtraFields(dto.DocTypeBillingNote, text)
	require.NotNil(t, extra)
	assert.Equal(t, "150.00", extra["total_amount"])
}

func TestExtractExtraFieldsRejectsTaxIDDocumentNo(t *testing.T) {
	ts, err := LoadTemplates("")
	require.NoError(t, err)

	text := "ใบวางบิล\nเลขที่ 0105536112233\n1,000.00"

	extra := ts.ExtractExtraFields(dto.DocTypeBillingNote, text)
	assert.NotContains(t, extra, "document_no")
}

func TestExtractExtraFieldsMinDigits(t *testing.T) {
	ts, err := LoadTemplates("")
	require.NoError(t, err)

	tooShort := ts.ExtractExtraFields(dto.DocTypeSahatthaiInvoice, "สหไทย เทอร์มินอล\nContainer No: ABCD 12345")
	assert.NotContains(t, tooShort, "container_no")

	extra := ts.ExtractExtraFields(dto.DocTypeSahatthaiInvoice, "สหไทย เทอร์มินอล\nContainer No: TCLU 1234567")
	require.NotNil(t, extra)
	assert.Equal(t, "TCLU1234567", extra["container_no"])
}

func TestExtractExtraFieldsCleanNonDigits(t *testing.T) {
	ts, err := LoadTemplates("")
	require.NoError(t, err)

	extra := ts.ExtractExtraFields(dto.DocTypeSahatthaiInvoice, "สหไทย เทอร์มินอล\nCustomer Code: CU-00123-TH")
	require.NotNil(t, extra)
	assert.Equal(t, "00123", extra["customer_code"])

	truncated := ts.ExtractExtraFields(dto.DocTypeSahatthaiInvoice, "สหไทย เทอร์มินอล\nCustomer Code: 1234567-89")
	require.NotNil(t, truncated)
	assert.Equal(t, "123456", truncated["customer_code"])
}

func TestExtractExtraFieldsNoTemplateFields(t *testing.T) {
	ts, err := LoadTemplates("")
	require.NoError(t, err)

	assert.Nil(t, ts.ExtractExtraFields(dto.DocTypeInvoice, "anything"))
}
