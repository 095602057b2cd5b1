package utils

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/piyawatt/invoice-ocr-service/dto"
)

//go:embed document_templates.json
var defaultTemplatesJSON []byte

// FieldSpec is a list of alternative patterns for one template field,
// plus post-processing options. The first capture group of the first
// matching pattern wins; a match whose digit count falls short of
// MinDigits is discarded and the next pattern tried.
type FieldSpec struct {
	Patterns       []string `json:"patterns"`
	CleanHTML      bool     `json:"clean_html,omitempty"`
	SkipLines      int      `json:"skip_lines,omitempty"`
	MinDigits      int      `json:"min_digits,omitempty"`
	RemoveSpaces   bool     `json:"remove_spaces,omitempty"`
	CleanNonDigits bool     `json:"clean_non_digits,omitempty"`
	Length         int      `json:"length,omitempty"`
	BookingPattern bool     `json:"extract_booking_pattern,omitempty"`
	Fallback       string   `json:"fallback,omitempty"`

	compiled []*regexp.Regexp
}

// extract applies the spec's patterns in order against text, skipping
// the configured number of leading lines first.
func (spec *FieldSpec) extract(text string) string {
	if spec.SkipLines > 0 {
		lines := strings.Split(text, "\n")
		if spec.SkipLines >= len(lines) {
			return ""
		}
		text = strings.Join(lines[spec.SkipLines:], "\n")
	}

	for _, re := range spec.compiled {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := m[0]
		if len(m) > 1 {
			value = m[1]
		}
		if spec.CleanHTML {
			value = brTagRe.ReplaceAllString(value, " ")
			value = tagRe.ReplaceAllString(value, "")
		}
		value = normalizeMatch(value)
		if spec.BookingPattern {
			value = extractBookingCode(value)
		}
		if spec.RemoveSpaces {
			value = strings.ReplaceAll(value, " ", "")
		}
		if spec.MinDigits > 0 {
			if len(nonDigitRe.ReplaceAllString(value, "")) < spec.MinDigits {
				continue
			}
		}
		if spec.CleanNonDigits {
			value = nonDigitRe.ReplaceAllString(value, "")
			if spec.Length > 0 && len(value) > spec.Length {
				value = value[:spec.Length]
			}
		}
		if value != "" {
			return value
		}
	}
	return ""
}

var (
	alphaWordRe    = regexp.MustCompile(`^[A-Za-z]+$`)
	alphaNumWordRe = regexp.MustCompile(`^[A-Za-z]+\d+$`)
	digitWordRe    = regexp.MustCompile(`^\d+$`)
)

// extractBookingCode keeps the leading carrier letters up to and
// including the first word that carries the booking number, dropping
// whatever trails it on the same line.
func extractBookingCode(value string) string {
	var parts []string
	for _, word := range strings.Fields(value) {
		switch {
		case alphaWordRe.MatchString(word):
			parts = append(parts, word)
		case alphaNumWordRe.MatchString(word), digitWordRe.MatchString(word):
			parts = append(parts, word)
			return strings.Join(parts, " ")
		default:
			if len(parts) > 0 {
				return strings.Join(parts, " ")
			}
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return value
}

// Template describes one recognizable document layout.
type Template struct {
	Name           string               `json:"name"`
	DetectKeywords []string             `json:"detect_keywords"`
	Fields         map[string]*FieldSpec `json:"fields"`
}

// TemplateSet is the full document-type catalogue.
type TemplateSet struct {
	Templates map[string]*Template `json:"templates"`
}

// LoadTemplates reads a template catalogue from path, or the embedded
// defaults when path is empty.
func LoadTemplates(path string) (*TemplateSet, error) {
	data := defaultTemplatesJSON
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read templates file: %w", err)
		}
		data = b
	}

	var ts TemplateSet
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("invalid templates JSON: %w", err)
	}

	for docType, tpl := range ts.Templates {
		for field, spec := range tpl.Fields {
			for _, p := range spec.Patterns {
				re, err := regexp.Compile(p)
				if err != nil {
					return nil, fmt.Errorf("template %s field %s: %w", docType, field, err)
				}
				spec.compiled = append(spec.compiled, re)
			}
		}
	}
	return &ts, nil
}

// DetectDocumentType classifies OCR text against the catalogue.
// CY instructions match anywhere in the text and win outright; billing
// notes must announce themselves in the page header; everything else
// defaults to a plain tax invoice.
func (ts *TemplateSet) DetectDocumentType(text string) dto.DocumentType {
	if strings.TrimSpace(text) == "" {
		return dto.DocTypeInvoice
	}

	textLower := strings.ToLower(text)
	strictHeader := HeaderLines(text, 4)
	header := HeaderLines(text, 15)

	if ts.matchesAnywhere(dto.DocTypeCYInstruction, textLower) {
		return dto.DocTypeCYInstruction
	}
	if tpl, ok := ts.Templates[string(dto.DocTypeBillingNote)]; ok {
		for _, kw := range tpl.DetectKeywords {
			kw = strings.ToLower(kw)
			if strings.Contains(strictHeader, kw) || strings.Contains(header, kw) {
				return dto.DocTypeBillingNote
			}
		}
	}
	if ts.matchesAnywhere(dto.DocTypeSahatthaiInvoice, textLower) {
		return dto.DocTypeSahatthaiInvoice
	}
	return dto.DocTypeInvoice
}

func (ts *TemplateSet) matchesAnywhere(docType dto.DocumentType, textLower string) bool {
	tpl, ok := ts.Templates[string(docType)]
	if !ok {
		return false
	}
	for _, kw := range tpl.DetectKeywords {
		if strings.Contains(textLower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// DisplayName returns the human-readable template name for a type.
func (ts *TemplateSet) DisplayName(docType dto.DocumentType) string {
	if tpl, ok := ts.Templates[string(docType)]; ok && tpl.Name != "" {
		return tpl.Name
	}
	return string(docType)
}

// ExtractExtraFields applies the template's own field patterns on top of
// the common invoice fields.
func (ts *TemplateSet) ExtractExtraFields(docType dto.DocumentType, text string) map[string]string {
	tpl, ok := ts.Templates[string(docType)]
	if !ok || len(tpl.Fields) == 0 {
		return nil
	}

	extra := make(map[string]string)
	for field, spec := range tpl.Fields {
		value := spec.extract(text)
		if value == "" && spec.Fallback == "last_amount" {
			if amounts := anyAmountRe.FindAllString(text, -1); len(amounts) > 0 {
				value = amounts[len(amounts)-1]
			}
		}
		// A bare 13-digit document number is a taxpayer ID the
		// pattern picked up, not a document number.
		if field == "document_no" && value != "" {
			if digits := nonDigitRe.ReplaceAllString(value, ""); len(digits) == 13 {
				value = ""
			}
		}
		if value != "" {
			extra[field] = value
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}
