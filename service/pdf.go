package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // pdfcpu extracts scanned pages as JPEG
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"

	"github.com/piyawatt/invoice-ocr-service/config"
	"github.com/piyawatt/invoice-ocr-service/logger"
)

const (
	renderDPI    = 300
	maxImageSide = 1280
)

// PageRenderer gives the extraction pipeline access to a PDF's pages.
type PageRenderer interface {
	PageCount(path string) (int, error)
	EmbeddedText(path string, page int) (string, error)
	RenderPage(ctx context.Context, path string, page int) (image.Image, error)
}

// pdfProcessor renders pages through Poppler's pdftoppm when available
// and falls back to pdfcpu's embedded-image extraction otherwise.
type pdfProcessor struct {
	cfg *config.Config
	log zerolog.Logger
}

// NewPDFProcessor creates the default PageRenderer.
func NewPDFProcessor(cfg *config.Config) PageRenderer {
	return &pdfProcessor{cfg: cfg, log: logger.With("pdf")}
}

// PageCount returns the number of pages in a PDF.
func (p *pdfProcessor) PageCount(path string) (int, error) {
	count, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages of %s: %w", filepath.Base(path), err)
	}
	return count, nil
}

// EmbeddedText extracts the text layer of one page of a born-digital PDF.
// Scanned pages come back empty.
func (p *pdfProcessor) EmbeddedText(path string, page int) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	if page < 1 || page > reader.NumPage() {
		return "", fmt.Errorf("page %d out of range (1-%d)", page, reader.NumPage())
	}

	pg := reader.Page(page)
	if pg.V.IsNull() {
		return "", nil
	}

	var sb strings.Builder
	rows, err := pg.GetTextByRow()
	if err != nil {
		return "", nil
	}
	for _, row := range rows {
		for _, word := range row.Content {
			sb.WriteString(word.S)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// RenderPage rasterizes one page to an OCR-ready image: 300 dpi render,
// contrast boost, bounded downscale.
func (p *pdfProcessor) RenderPage(ctx context.Context, path string, page int) (image.Image, error) {
	var img image.Image
	var err error

	if p.cfg.HasPoppler() {
		img, err = p.renderWithPoppler(ctx, path, page)
	} else {
		p.log.Debug().Str("file", filepath.Base(path)).Msg("pdftoppm not found, extracting embedded page image")
		img, err = p.extractPageImage(path, page)
	}
	if err != nil {
		return nil, err
	}
	return preprocessImage(img), nil
}

func (p *pdfProcessor) renderWithPoppler(ctx context.Context, path string, page int) (image.Image, error) {
	tempDir, err := os.MkdirTemp("", "pdf-render")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	outPrefix := filepath.Join(tempDir, "page")
	pageArg := strconv.Itoa(page)

	cmd := exec.CommandContext(ctx, p.cfg.PdftoppmBinary(),
		"-f", pageArg, "-l", pageArg,
		"-r", strconv.Itoa(renderDPI),
		"-png", "-singlefile",
		path, outPrefix)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %v, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	rendered, err := os.Open(outPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm produced no output: %w", err)
	}
	defer rendered.Close()

	img, err := png.Decode(rendered)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered page: %w", err)
	}
	return img, nil
}

// extractPageImage pulls the embedded image of a scanned page with
// pdfcpu. Works for scan-to-PDF files where each page is one image.
func (p *pdfProcessor) extractPageImage(path string, page int) (image.Image, error) {
	tempDir, err := os.MkdirTemp("", "pdf-images")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractImagesFile(path, tempDir, []string{strconv.Itoa(page)}, conf); err != nil {
		return nil, fmt.Errorf("failed to extract page images: %w", err)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read temp dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		f, err := os.Open(filepath.Join(tempDir, entry.Name()))
		if err != nil {
			continue
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			continue
		}
		return img, nil
	}
	return nil, fmt.Errorf("page %d of %s holds no extractable image", page, filepath.Base(path))
}

// preprocessImage boosts contrast and caps the longest side, matching
// what works best for the vision models.
func preprocessImage(img image.Image) image.Image {
	img = imaging.AdjustContrast(img, 30)

	bounds := img.Bounds()
	if bounds.Dx() > maxImageSide || bounds.Dy() > maxImageSide {
		img = imaging.Fit(img, maxImageSide, maxImageSide, imaging.Lanczos)
	}
	return img
}

// encodePNG serializes an image for transport to an OCR backend.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// saveTempPNG writes an image to a temporary file for engines that only
// accept paths. The caller removes it.
func saveTempPNG(img image.Image) (string, error) {
	tempFile, err := os.CreateTemp("", "ocr-page-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp image file: %w", err)
	}
	defer tempFile.Close()

	if err := png.Encode(tempFile, img); err != nil {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return tempFile.Name(), nil
}
