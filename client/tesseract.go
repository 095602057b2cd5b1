package client

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"github.com/piyawatt/invoice-ocr-service/logger"
)

// TesseractClient wraps the Tesseract engine as the last-resort OCR
// backend when neither model backend can read a page.
type TesseractClient struct {
	tessdataPath string
	languages    []string
	log          zerolog.Logger
}

// NewTesseractClient creates a Tesseract client. Thai invoices need both
// tha and eng traineddata.
func NewTesseractClient(tessdataPath string) *TesseractClient {
	return &TesseractClient{
		tessdataPath: tessdataPath,
		languages:    []string{"tha", "eng"},
		log:          logger.With("tesseract"),
	}
}

// Name identifies the backend in results and metrics.
func (tc *TesseractClient) Name() string { return "tesseract" }

// ExtractText OCRs an image file and reports the mean word confidence.
func (tc *TesseractClient) ExtractText(imagePath string) (string, float64, error) {
	c := gosseract.NewClient()
	defer c.Close()

	if tc.tessdataPath != "" {
		c.SetTessdataPrefix(tc.tessdataPath)
	}
	if err := c.SetLanguage(tc.languages...); err != nil {
		return "", 0, fmt.Errorf("failed to set languages: %w", err)
	}
	if err := c.SetImage(imagePath); err != nil {
		return "", 0, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", 0, fmt.Errorf("failed to extract text: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Confidence is best-effort; the text still stands.
		tc.log.Debug().Err(err).Msg("bounding boxes unavailable")
		return text, 0, nil
	}

	var total float64
	for _, box := range boxes {
		total += box.Confidence
	}
	confidence := 0.0
	if len(boxes) > 0 {
		confidence = total / float64(len(boxes))
	}

	return text, confidence, nil
}
