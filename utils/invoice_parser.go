package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/piyawatt/invoice-ocr-service/dto"
)

// Field patterns ported from the production extraction rules. Thai tax
// invoices label the document number "เลขที่", the bill date "วันที่",
// and carry a 13-digit taxpayer ID; English labels appear on bilingual
// forms.
var (
	documentNoRes = compileAll(
		`(?i)(?:เลขที่|No\.?)\s*[:.]?\s*([A-Za-z0-9/-]{3,})`,
	)

	billDateRes = compileAll(
		`(?:วันที่|Date)\s*[:.]?\s*(\d{1,2}\s+\S+\s+\d{4})`,
		`(?:วันที่|Date)\s*[:.]?\s*(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})`,
	)

	amountLabelRes = compileAll(
		`(?i)(?:จำนวนเงินรวมทั้งสิ้น|รวมเงินทั้งสิ้น|GRAND TOTAL)\s*[:.]?\s*([\d,]+\.\d{2})`,
	)
	anyAmountRe = regexp.MustCompile(`([\d,]+\.\d{2})`)

	taxID13Re     = regexp.MustCompile(`\b(\d{13})\b`)
	taxIDDashedRe = regexp.MustCompile(`\b\d-\d{4}-\d{5}-\d{2}-\d\b`)
	taxIDSpacedRe = regexp.MustCompile(`\b(\d\s+\d{12})\b`)
	taxIDLabelRe  = regexp.MustCompile(`(?i)(?:เลข(?:ที่)?(?:ประจำตัว)?ผู้เสียภาษี(?:อากร)?|Tax\s*ID|Tax\s*No\.?|เลขทะเบียนนิติบุคคล)\s*[:.]?\s*([0-9\s-]{10,25})`)

	checkedBranchRe = regexp.MustCompile(`[☑✓✔]\s*สาขา(?:ที่)?\s*(\d+)`)
	checkedHQRe     = regexp.MustCompile(`(?i)[☑✓✔]\s*(?:สำนักงานใหญ่|สนญ\.?|Head\s*Office)`)
	issuingBranchRe = regexp.MustCompile(`(?i)สาขาที่ออกใบกำกับภาษี\s*(?:คือ|:)?\s*(\d{1,5})`)
	hqNumberedRe    = regexp.MustCompile(`(?i)(?:สำนักงานใหญ่|HEAD\s*OFFICE)\s*[:\s]?\s*(\d{5})`)
	branchNoRe      = regexp.MustCompile(`(?i)(?:สาขา(?:ที่)?|Branch(?:\s*No\.?)?)\s*[:.]?\s*(\d{1,5})(?:\D|$)`)

	dateFallbackRes = compileAll(
		`(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{4})`,
		`(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2})`,
	)
	dateSepRe = regexp.MustCompile(`[-.]`)

	htmlRowRe   = regexp.MustCompile(`(?s)<td>(\d+)</td><td>(.+?)</td>`)
	descThaiRes = compileAll(
		`(?s)จำนวนเงิน\s+1\s+(.+?)\s+[\d,]+\.\d{2}`,
		`(?s)\b1\s+([\x{0E00}-\x{0E7F}].+?)\s+[\d,]+\.\d{2}`,
	)

	salesPromoRes = compileAll(
		`หมายเหตุ[^\n]*\n\s*(ค่าส่งเสริมการขาย[^\n]*)`,
		`(ค่าส่งเสริมการขาย\s+\d+%?\s*(?:จากยอด)?\s*[\d,]+\.?\d*)`,
		`(ค่าส่งเสริมการขาย[^\n]+)`,
	)

	totalAmountRes = compileAll(
		`รวมภาษีมูลค่าเพิ่ม\s*[:.]?\s*([\d,]+\.\d{2})`,
		`รวม\s*ภาษีมูลค่าเพิ่ม[^\d]*([\d,]+\.\d{2})`,
	)

	withholdingRes = compileAll(
		`หัก\s*ณ\s*ที่จ่าย\s*[:.]?\s*([\d,]+\.\d{2})`,
		`หัก\s*ณ\s*ที่จ่าย[^\d]*([\d,]+\.\d{2})`,
	)

	nonDigitRe = regexp.MustCompile(`\D`)
	brTagRe    = regexp.MustCompile(`<br\s*/?>`)
	lineRunRe  = regexp.MustCompile(`[\r\n]+`)
	wsRunRe    = regexp.MustCompile(`\s+`)
)

// companyTaxID is the buyer's own taxpayer ID; it prints on most of
// these invoices and must never be extracted as the vendor's.
const companyTaxID = "0105522018355"

// vendorTaxOverrides maps vendor names whose tax ID is routinely
// misread to the known-correct value. Spacing varies with the OCR.
var vendorTaxOverrides = []struct {
	keywords []string
	taxID    string
}{
	{[]string{"สยามคอนเทนเนอร์ เทอร์มินอล", "สยามคอนเทนเนอร์เทอร์มินอล"}, "0105531101901"},
	{[]string{"สหไทย เทอร์มินอล", "สหไทยเทอร์มินอล"}, "0107560000192"},
	{[]string{"มนต์โลจิสติกส์ เซอร์วิส", "มนต์โลจิสติกส์เซอร์วิส"}, "0105559135291"},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(p))
	}
	return res
}

// ParseInvoice extracts structured invoice fields from one page of OCR
// text. Missing fields come back empty rather than failing the page.
func ParseInvoice(text string) dto.InvoiceFields {
	if strings.TrimSpace(text) == "" {
		return dto.InvoiceFields{}
	}
	return dto.InvoiceFields{
		DocumentNo:     extractDocumentNo(text),
		BillDate:       extractBillDate(text),
		Amount:         extractAmount(text),
		TaxID:          ExtractTaxID(text),
		Branch:         extractBranch(text),
		Description:    extractDescription(text),
		SalesPromotion: normalizeMatch(extractFirst(salesPromoRes, text)),
		TotalAmount:    extractFirst(totalAmountRes, text),
		WithholdingTax: extractFirst(withholdingRes, text),
	}
}

// extractDocumentNo finds the labelled document number, rejecting bare
// 13-digit values (those are tax IDs the label regex picked up).
func extractDocumentNo(text string) string {
	v := extractFirst(documentNoRes, text)
	if len(nonDigitRe.ReplaceAllString(v, "")) == 13 {
		return ""
	}
	return v
}

// extractBillDate finds the labelled bill date, falling back to the
// first date-shaped value anywhere on the page. Dashes and dots are
// normalized to slashes.
func extractBillDate(text string) string {
	v := extractFirst(billDateRes, text)
	if v == "" {
		v = extractFirst(dateFallbackRes, text)
	}
	return dateSepRe.ReplaceAllString(v, "/")
}

// extractFirst returns the first submatch of the first pattern that hits.
func extractFirst(patterns []*regexp.Regexp, text string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// extractAmount prefers a labelled grand total and falls back to the last
// money-looking value on the page (totals print at the bottom).
func extractAmount(text string) string {
	if amount := extractFirst(amountLabelRes, text); amount != "" {
		return amount
	}
	amounts := anyAmountRe.FindAllString(text, -1)
	if len(amounts) == 0 {
		return ""
	}
	return amounts[len(amounts)-1]
}

// ExtractTaxID finds the vendor's 13-digit Thai taxpayer ID. Known
// vendors whose ID the OCR routinely garbles are resolved by name; the
// buyer's own ID is never returned. Dashed, spaced and keyword-labelled
// print formats are accepted as fallbacks.
func ExtractTaxID(text string) string {
	for _, override := range vendorTaxOverrides {
		for _, kw := range override.keywords {
			if strings.Contains(text, kw) {
				return override.taxID
			}
		}
	}

	for _, m := range taxID13Re.FindAllStringSubmatch(text, -1) {
		if m[1] != companyTaxID {
			return m[1]
		}
	}
	for _, m := range taxIDDashedRe.FindAllString(text, -1) {
		if id := nonDigitRe.ReplaceAllString(m, ""); id != companyTaxID {
			return id
		}
	}
	for _, m := range taxIDSpacedRe.FindAllStringSubmatch(text, -1) {
		if id := nonDigitRe.ReplaceAllString(m[1], ""); id != companyTaxID {
			return id
		}
	}

	if m := taxIDLabelRe.FindStringSubmatch(text); len(m) > 1 {
		digits := nonDigitRe.ReplaceAllString(m[1], "")
		if len(digits) >= 13 && digits[:13] != companyTaxID {
			return digits[:13]
		}
		if len(digits) >= 10 && len(digits) < 13 {
			return digits
		}
	}
	return ""
}

// extractBranch resolves the issuing branch. Checkbox forms print both
// the head-office address and the checked branch, so a checked branch
// number outranks every head-office mention; when nothing matches the
// branch defaults to head office.
func extractBranch(text string) string {
	if m := checkedBranchRe.FindStringSubmatch(text); len(m) > 1 {
		return ZeroPadBranch(m[1])
	}
	if checkedHQRe.MatchString(text) {
		return "00000"
	}
	if m := issuingBranchRe.FindStringSubmatch(text); len(m) > 1 {
		return ZeroPadBranch(m[1])
	}
	if m := hqNumberedRe.FindStringSubmatch(text); len(m) > 1 {
		return ZeroPadBranch(m[1])
	}
	if m := branchNoRe.FindStringSubmatch(text); len(m) > 1 {
		return ZeroPadBranch(m[1])
	}
	return "00000"
}

// ZeroPadBranch normalizes a branch code: head-office aliases become
// "00000", numeric codes are left-padded to five digits, anything else is
// returned trimmed.
func ZeroPadBranch(branch string) string {
	branch = strings.TrimSpace(branch)
	switch branch {
	case "สำนักงานใหญ่", "สนญ", "สนญ.", "Head Office", "H.O.", "HO":
		return "00000"
	}
	if branch == "" {
		return ""
	}
	for _, r := range branch {
		if r < '0' || r > '9' {
			return branch
		}
	}
	for len(branch) < 5 {
		branch = "0" + branch
	}
	return branch
}

// extractDescription pulls the first line-item description, trying the
// HTML table the cloud OCR emits before the plain-text layout of the
// local model.
func extractDescription(text string) string {
	desc := ""
	if _, after, found := strings.Cut(text, "<td>1</td><td>"); found {
		if cell, _, ok := strings.Cut(after, "</td>"); ok {
			desc = cell
		}
	}
	if desc == "" {
		if m := htmlRowRe.FindStringSubmatch(text); len(m) > 2 {
			desc = m[2]
		}
	}
	if desc != "" {
		desc = brTagRe.ReplaceAllString(desc, " ")
		desc = tagRe.ReplaceAllString(desc, "")
		desc = normalizeMatch(desc)
		if utf8.RuneCountInString(desc) > 5 {
			return desc
		}
		desc = ""
	}
	return normalizeMatch(extractFirst(descThaiRes, text))
}

// normalizeMatch flattens newlines and squeezes whitespace in a match.
func normalizeMatch(s string) string {
	s = lineRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(wsRunRe.ReplaceAllString(s, " "))
}

// NormalizeTaxID strips everything but digits.
func NormalizeTaxID(s string) string {
	return nonDigitRe.ReplaceAllString(s, "")
}
