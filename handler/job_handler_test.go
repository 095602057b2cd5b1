package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piyawatt/invoice-ocr-service/config"
	"github.com/piyawatt/invoice-ocr-service/dto"
	"github.com/piyawatt/invoice-ocr-service/service"
	"github.com/piyawatt/invoice-ocr-service/utils"
)

func newJobRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	templates, err := utils.LoadTemplates("")
	require.NoError(t, err)
	svc := service.NewExtractService(cfg, &stubCloud{text: sampleInvoiceText}, &stubVision{},
		stubFallback{}, &stubRenderer{pages: 1}, templates, nil)
	jobs := service.NewJobManager(service.NewBatchService(svc))

	h := NewJobHandler(jobs, cfg)
	router := gin.New()
	router.POST("/api/v1/jobs", h.CreateJob)
	router.GET("/api/v1/jobs", h.ListJobs)
	router.GET("/api/v1/jobs/:id", h.GetJob)
	return router
}

func TestCreateAndPollJob(t *testing.T) {
	srcDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "inv.pdf"), []byte("%PDF-1.4"), 0o644))

	cfg := &config.Config{APIKey: "sk-test", SourceDir: srcDir, OutputDir: outDir, PageSelection: "all"}
	router := newJobRouter(t, cfg)

	// Empty body fields fall back to configured directories.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job dto.JobInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.NotEmpty(t, job.ID)
	assert.Equal(t, srcDir, job.SourceDir)

	deadline := time.Now().Add(5 * time.Second)
	for {
		req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID, nil)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))

		if job.Status == dto.JobCompleted || job.Status == dto.JobFailed {
			break
		}
		require.True(t, time.Now().Before(deadline), "job did not finish")
		time.Sleep(10 * time.Millisecond)
	}

	assert.Equal(t, dto.JobCompleted, job.Status)
	assert.Equal(t, 1, job.RowsWritten)

	_, err := os.Stat(filepath.Join(outDir, service.SummaryFileName))
	require.NoError(t, err)
}

func TestCreateJobUnknownMode(t *testing.T) {
	router := newJobRouter(t, &config.Config{APIKey: "sk-test"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs",
		bytes.NewBufferString(`{"mode":"cloud9"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobNotFound(t *testing.T) {
	router := newJobRouter(t, &config.Config{APIKey: "sk-test"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "JOB_FAILED", resp.Error)
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(&config.Config{APIKey: "sk-test"}, &stubVision{})
	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/_stcore/health", h.Health)

	for _, path := range []string{"/health", "/_stcore/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp dto.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, string(dto.ModeAPI), resp.Mode)
		assert.Equal(t, "ok", resp.Ollama)
	}
}
