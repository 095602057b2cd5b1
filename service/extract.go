package service

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/piyawatt/invoice-ocr-service/config"
	"github.com/piyawatt/invoice-ocr-service/dto"
	"github.com/piyawatt/invoice-ocr-service/logger"
	"github.com/piyawatt/invoice-ocr-service/metrics"
	"github.com/piyawatt/invoice-ocr-service/utils"
)

// Text shorter than this is treated as unusable and triggers the next
// engine in the ladder.
const minUsableText = 20

// CloudOCR is the Typhoon API surface the pipeline depends on.
type CloudOCR interface {
	Name() string
	ExtractPages(ctx context.Context, filePath string, pages []int) (string, error)
}

// VisionOCR is the local model surface (Ollama).
type VisionOCR interface {
	Name() string
	Ping(ctx context.Context) error
	ExtractImage(ctx context.Context, pngData []byte) (string, error)
}

// FallbackOCR is the engine of last resort (Tesseract).
type FallbackOCR interface {
	Name() string
	ExtractText(imagePath string) (string, float64, error)
}

// ExtractService runs the per-document pipeline: render, OCR through the
// configured engine ladder, clean, classify, parse, vendor-join.
type ExtractService struct {
	cfg       *config.Config
	cloud     CloudOCR
	vision    VisionOCR
	fallback  FallbackOCR
	pdf       PageRenderer
	templates *utils.TemplateSet
	vendors   *VendorMaster
	log       zerolog.Logger
}

// NewExtractService wires the pipeline. vendors may be the empty master.
func NewExtractService(
	cfg *config.Config,
	cloud CloudOCR,
	vision VisionOCR,
	fallback FallbackOCR,
	pdf PageRenderer,
	templates *utils.TemplateSet,
	vendors *VendorMaster,
) *ExtractService {
	if vendors == nil {
		vendors = NewEmptyVendorMaster()
	}
	return &ExtractService{
		cfg:       cfg,
		cloud:     cloud,
		vision:    vision,
		fallback:  fallback,
		pdf:       pdf,
		templates: templates,
		vendors:   vendors,
		log:       logger.With("extract"),
	}
}

// Vendors exposes the loaded vendor master.
func (s *ExtractService) Vendors() *VendorMaster { return s.vendors }

// CheckBackend verifies the selected backend is usable before a run.
func (s *ExtractService) CheckBackend(ctx context.Context, mode dto.EngineMode) error {
	switch mode {
	case dto.ModeAPI:
		if s.cfg.APIKey == "" {
			return dto.ErrMissingAPIKey
		}
		return nil
	case dto.ModeLocal:
		return s.vision.Ping(ctx)
	default:
		return dto.ErrUnknownMode
	}
}

// ExtractFile processes the selected pages of one PDF and returns a
// result per page that produced text. Page failures are logged and
// skipped, matching batch semantics.
func (s *ExtractService) ExtractFile(ctx context.Context, path, pageSelection string, mode dto.EngineMode) (*dto.ExtractResponse, error) {
	totalPages, err := s.pdf.PageCount(path)
	if err != nil {
		return nil, err
	}

	pages := utils.ParsePageSelection(pageSelection, totalPages)
	if len(pages) == 0 {
		return nil, dto.ErrNoPages
	}

	filename := filepath.Base(path)
	resp := &dto.ExtractResponse{
		Filename:    filename,
		TotalPages:  totalPages,
		ProcessedAt: time.Now().Format(time.RFC3339),
	}

	for _, page := range pages {
		result, err := s.ExtractPage(ctx, path, page, mode)
		if err != nil {
			s.log.Warn().Err(err).Str("file", filename).Int("page", page).Msg("page skipped")
			metrics.PagesFailed.Inc()
			continue
		}
		metrics.PagesProcessed.Inc()
		resp.Pages = append(resp.Pages, *result)
	}

	if len(resp.Pages) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, dto.ErrEmptyOCRText)
	}
	return resp, nil
}

// ExtractPage runs the engine ladder for a single page.
func (s *ExtractService) ExtractPage(ctx context.Context, path string, page int, mode dto.EngineMode) (*dto.PageResult, error) {
	text, engine, pageImage := s.ocrPage(ctx, path, page, mode)

	if pageImage == nil {
		// Cloud path never rendered; do it now only for the QR scan, and
		// only when a renderer is usable.
		if img, err := s.pdf.RenderPage(ctx, path, page); err == nil {
			pageImage = img
		}
	}
	return s.buildPageResult(path, page, text, engine, pageImage)
}

// buildPageResult turns raw OCR text into the parsed per-page record:
// clean, classify, extract fields, QR scan, vendor join.
func (s *ExtractService) buildPageResult(path string, page int, text, engine string, pageImage image.Image) (*dto.PageResult, error) {
	cleaned := utils.CleanOCRText(text)
	if len(cleaned) < minUsableText {
		return nil, fmt.Errorf("page %d: %w", page, dto.ErrEmptyOCRText)
	}

	docType := s.templates.DetectDocumentType(cleaned)

	// Common fields come from the raw text: the cloud backend emits HTML
	// tables the description extractor wants intact.
	source := text
	if engine != s.cloudName() {
		source = cleaned
	}
	fields := utils.ParseInvoice(source)

	result := &dto.PageResult{
		SourceFile:   filepath.Base(path),
		Page:         page,
		DocumentType: docType,
		Fields:       fields,
		ExtraFields:  s.templates.ExtractExtraFields(docType, cleaned),
		RawText:      text,
		Engine:       engine,
		QRPayload:    DecodeQRPayload(pageImage),
	}

	if info, ok := s.vendors.Lookup(fields.TaxID, fields.Branch); ok {
		result.Vendor = info
	}
	return result, nil
}

// ExtractImage processes a single uploaded image (scanned invoice photo
// or page export) through the same ladder, minus the PDF stages.
func (s *ExtractService) ExtractImage(ctx context.Context, path string, mode dto.EngineMode) (*dto.ExtractResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var text, engine string
	switch mode {
	case dto.ModeLocal:
		text, engine = s.ocrImageLocal(ctx, img)
	default:
		// The cloud endpoint takes image uploads as-is.
		start := time.Now()
		text, err = s.cloud.ExtractPages(ctx, path, nil)
		metrics.ObserveOCR(s.cloud.Name(), time.Since(start).Seconds(), err)
		engine = s.cloud.Name()
		if err != nil || len(strings.TrimSpace(text)) < minUsableText {
			if err != nil {
				s.log.Warn().Err(err).Msg("cloud OCR failed, trying fallback")
			}
			if fbText, ok := s.runFallback(img, 1); ok {
				text, engine = fbText, s.fallback.Name()
			}
		}
	}

	result, err := s.buildPageResult(path, 1, text, engine, img)
	if err != nil {
		return nil, err
	}
	metrics.PagesProcessed.Inc()

	return &dto.ExtractResponse{
		Filename:    filepath.Base(path),
		TotalPages:  1,
		Pages:       []dto.PageResult{*result},
		ProcessedAt: time.Now().Format(time.RFC3339),
	}, nil
}

// ocrImageLocal runs the local ladder over an already-decoded image.
func (s *ExtractService) ocrImageLocal(ctx context.Context, img image.Image) (string, string) {
	pngData, err := encodePNG(preprocessImage(img))
	if err != nil {
		return "", s.vision.Name()
	}

	start := time.Now()
	text, err := s.vision.ExtractImage(ctx, pngData)
	metrics.ObserveOCR(s.vision.Name(), time.Since(start).Seconds(), err)
	if err == nil && len(strings.TrimSpace(text)) >= minUsableText {
		return text, s.vision.Name()
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("local OCR failed, trying fallback")
	}

	if fbText, ok := s.runFallback(img, 1); ok {
		return fbText, s.fallback.Name()
	}
	return text, s.vision.Name()
}

// ocrPage walks the engine ladder and reports which engine produced the
// text. The rendered page image is returned when one was produced so the
// QR scan can reuse it.
func (s *ExtractService) ocrPage(ctx context.Context, path string, page int, mode dto.EngineMode) (string, string, image.Image) {
	// Born-digital PDFs skip OCR entirely.
	if embedded, err := s.pdf.EmbeddedText(path, page); err == nil {
		if len(strings.TrimSpace(embedded)) >= minUsableText {
			return embedded, "embedded", nil
		}
	}

	switch mode {
	case dto.ModeLocal:
		return s.ocrPageLocal(ctx, path, page)
	default:
		return s.ocrPageCloud(ctx, path, page)
	}
}

func (s *ExtractService) ocrPageCloud(ctx context.Context, path string, page int) (string, string, image.Image) {
	start := time.Now()
	text, err := s.cloud.ExtractPages(ctx, path, []int{page})
	metrics.ObserveOCR(s.cloud.Name(), time.Since(start).Seconds(), err)
	if err == nil && len(strings.TrimSpace(text)) >= minUsableText {
		return text, s.cloud.Name(), nil
	}
	if err != nil {
		s.log.Warn().Err(err).Int("page", page).Msg("cloud OCR failed, trying fallback")
	}

	img, renderErr := s.pdf.RenderPage(ctx, path, page)
	if renderErr != nil {
		return text, s.cloud.Name(), nil
	}
	if fbText, ok := s.runFallback(img, page); ok {
		return fbText, s.fallback.Name(), img
	}
	return text, s.cloud.Name(), img
}

func (s *ExtractService) ocrPageLocal(ctx context.Context, path string, page int) (string, string, image.Image) {
	img, err := s.pdf.RenderPage(ctx, path, page)
	if err != nil {
		s.log.Warn().Err(err).Int("page", page).Msg("page render failed")
		return "", s.vision.Name(), nil
	}

	pngData, err := encodePNG(img)
	if err != nil {
		return "", s.vision.Name(), img
	}

	start := time.Now()
	text, err := s.vision.ExtractImage(ctx, pngData)
	metrics.ObserveOCR(s.vision.Name(), time.Since(start).Seconds(), err)
	if err == nil && len(strings.TrimSpace(text)) >= minUsableText {
		return text, s.vision.Name(), img
	}
	if err != nil {
		s.log.Warn().Err(err).Int("page", page).Msg("local OCR failed, trying fallback")
	}

	if fbText, ok := s.runFallback(img, page); ok {
		return fbText, s.fallback.Name(), img
	}
	return text, s.vision.Name(), img
}

// runFallback OCRs a rendered page with the last-resort engine.
func (s *ExtractService) runFallback(img image.Image, page int) (string, bool) {
	if s.fallback == nil {
		return "", false
	}

	tempPath, err := saveTempPNG(img)
	if err != nil {
		return "", false
	}
	defer os.Remove(tempPath)

	start := time.Now()
	text, confidence, err := s.fallback.ExtractText(tempPath)
	metrics.ObserveOCR(s.fallback.Name(), time.Since(start).Seconds(), err)
	if err != nil {
		s.log.Warn().Err(err).Int("page", page).Msg("fallback OCR failed")
		return "", false
	}
	if len(strings.TrimSpace(text)) < minUsableText {
		return "", false
	}

	s.log.Debug().Int("page", page).Float64("confidence", confidence).Msg("fallback OCR used")
	return text, true
}

func (s *ExtractService) cloudName() string {
	if s.cloud == nil {
		return ""
	}
	return s.cloud.Name()
}
