package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piyawatt/invoice-ocr-service/config"
	"github.com/piyawatt/invoice-ocr-service/dto"
	"github.com/piyawatt/invoice-ocr-service/service"
	"github.com/piyawatt/invoice-ocr-service/utils"
)

type noopCloud struct{}

func (noopCloud) Name() string { return "typhoon" }

func (noopCloud) ExtractPages(context.Context, string, []int) (string, error) {
	return "", errors.New("not used")
}

type noopVision struct{}

func (noopVision) Name() string               { return "ollama" }
func (noopVision) Ping(context.Context) error { return nil }

func (noopVision) ExtractImage(context.Context, []byte) (string, error) {
	return "", errors.New("not used")
}

type noopFallback struct{}

func (noopFallback) Name() string { return "tesseract" }

func (noopFallback) ExtractText(string) (string, float64, error) {
	return "", 0, errors.New("not used")
}

type noopRenderer struct{}

func (noopRenderer) PageCount(string) (int, error)            { return 1, nil }
func (noopRenderer) EmbeddedText(string, int) (string, error) { return "", nil }

func (noopRenderer) RenderPage(context.Context, string, int) (image.Image, error) {
	return nil, errors.New("not used")
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	templates, err := utils.LoadTemplates("")
	require.NoError(t, err)

	cfg := &config.Config{APIKey: "sk-test", ServerPort: "8501", MaxUploadSize: 32 << 20}
	extract := service.NewExtractService(cfg, noopCloud{}, noopVision{}, noopFallback{},
		noopRenderer{}, templates, nil)
	jobs := service.NewJobManager(service.NewBatchService(extract))
	return New(cfg, extract, jobs, noopVision{})
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/_stcore/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/jobs", http.StatusOK},
		{http.MethodGet, "/api/v1/jobs/unknown", http.StatusNotFound},
		{http.MethodPost, "/api/v1/invoices/extract", http.StatusBadRequest},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		assert.Equal(t, tc.status, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestHealthReportsOllama(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Ollama)
}
