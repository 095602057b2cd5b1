package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/piyawatt/invoice-ocr-service/dto"
	"github.com/piyawatt/invoice-ocr-service/logger"
	"github.com/piyawatt/invoice-ocr-service/service"
)

// InvoiceHandler handles synchronous invoice extraction requests.
type InvoiceHandler struct {
	extractService *service.ExtractService
	log            zerolog.Logger
}

// NewInvoiceHandler creates a new InvoiceHandler instance.
func NewInvoiceHandler(extractService *service.ExtractService) *InvoiceHandler {
	return &InvoiceHandler{
		extractService: extractService,
		log:            logger.With("handler"),
	}
}

// ExtractInvoice handles the POST /api/v1/invoices/extract endpoint.
// The uploaded PDF or image is written to a temporary file, run through
// the OCR pipeline and the parsed pages are returned as JSON.
func (h *InvoiceHandler) ExtractInvoice(c *gin.Context) {
	var req dto.ExtractRequest
	if err := c.ShouldBind(&req); err != nil {
		h.sendError(c, http.StatusBadRequest, "A PDF file is required under the \"file\" field", err)
		return
	}
	if err := req.Validate(); err != nil {
		h.sendError(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	ext := strings.ToLower(filepath.Ext(req.File.Filename))
	isImage := ext == ".png" || ext == ".jpg" || ext == ".jpeg"
	if ext != ".pdf" && !isImage {
		h.sendError(c, http.StatusBadRequest, "Only PDF, PNG and JPEG files are supported", nil)
		return
	}

	mode := dto.ModeAPI
	if req.Mode != "" {
		mode = dto.EngineMode(req.Mode)
	}
	pages := req.Pages
	if pages == "" {
		pages = "all"
	}

	if err := h.extractService.CheckBackend(c.Request.Context(), mode); err != nil {
		h.sendError(c, http.StatusServiceUnavailable, "OCR backend is not available", err)
		return
	}

	tmpDir, err := os.MkdirTemp("", "invoice-upload-*")
	if err != nil {
		h.sendError(c, http.StatusInternalServerError, "Failed to stage uploaded file", err)
		return
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, filepath.Base(req.File.Filename))
	if err := c.SaveUploadedFile(req.File, tmpPath); err != nil {
		h.sendError(c, http.StatusInternalServerError, "Failed to save uploaded file", err)
		return
	}

	h.log.Info().Str("file", req.File.Filename).Str("pages", pages).
		Str("mode", string(mode)).Msg("extraction request")

	var resp *dto.ExtractResponse
	if isImage {
		resp, err = h.extractService.ExtractImage(c.Request.Context(), tmpPath, mode)
	} else {
		resp, err = h.extractService.ExtractFile(c.Request.Context(), tmpPath, pages, mode)
	}
	if err != nil {
		h.sendError(c, extractStatus(err), "Extraction failed", err)
		return
	}
	resp.Filename = req.File.Filename

	c.JSON(http.StatusOK, resp)
}

// extractStatus maps pipeline errors to HTTP status codes.
func extractStatus(err error) int {
	switch {
	case errors.Is(err, dto.ErrNoPages):
		return http.StatusBadRequest
	case errors.Is(err, dto.ErrEmptyOCRText):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// sendError sends a structured error response.
func (h *InvoiceHandler) sendError(c *gin.Context, statusCode int, message string, err error) {
	errorMsg := message
	if err != nil {
		errorMsg = err.Error()
		h.log.Error().Err(err).Msg(message)
	}

	c.JSON(statusCode, dto.ErrorResponse{
		Error:   "EXTRACTION_FAILED",
		Message: errorMsg,
		Code:    statusCode,
	})
}
