package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/piyawatt/invoice-ocr-service/config"
	"github.com/piyawatt/invoice-ocr-service/dto"
	"github.com/piyawatt/invoice-ocr-service/logger"
	"github.com/piyawatt/invoice-ocr-service/service"
)

// JobHandler exposes background batch extraction jobs over HTTP.
type JobHandler struct {
	jobs *service.JobManager
	cfg  *config.Config
	log  zerolog.Logger
}

// NewJobHandler creates a new JobHandler instance.
func NewJobHandler(jobs *service.JobManager, cfg *config.Config) *JobHandler {
	return &JobHandler{
		jobs: jobs,
		cfg:  cfg,
		log:  logger.With("handler"),
	}
}

// CreateJob handles the POST /api/v1/jobs endpoint. Unset fields fall
// back to the configured source/output directories and page selection.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, http.StatusBadRequest, "Invalid job request body", err)
		return
	}

	mode := dto.ModeAPI
	if req.Mode != "" {
		if req.Mode != string(dto.ModeAPI) && req.Mode != string(dto.ModeLocal) {
			h.sendError(c, http.StatusBadRequest, dto.ErrUnknownMode.Error(), nil)
			return
		}
		mode = dto.EngineMode(req.Mode)
	}

	opts := service.BatchOptions{
		SourceDir: req.SourceDir,
		OutputDir: req.OutputDir,
		Pages:     req.Pages,
		Mode:      mode,
	}
	if opts.SourceDir == "" {
		opts.SourceDir = h.cfg.SourceDir
	}
	if opts.OutputDir == "" {
		opts.OutputDir = h.cfg.OutputDir
	}
	if opts.Pages == "" {
		opts.Pages = h.cfg.PageSelection
	}

	// The job must outlive this request, so it gets its own context.
	job := h.jobs.Start(context.Background(), opts)
	h.log.Info().Str("job", job.ID).Str("source", opts.SourceDir).Msg("job accepted")

	c.JSON(http.StatusAccepted, job)
}

// GetJob handles the GET /api/v1/jobs/:id endpoint.
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, dto.ErrJobNotFound) {
			h.sendError(c, http.StatusNotFound, "Job not found", nil)
			return
		}
		h.sendError(c, http.StatusInternalServerError, "Failed to load job", err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobs handles the GET /api/v1/jobs endpoint.
func (h *JobHandler) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.jobs.List()})
}

func (h *JobHandler) sendError(c *gin.Context, statusCode int, message string, err error) {
	errorMsg := message
	if err != nil {
		errorMsg = err.Error()
		h.log.Error().Err(err).Msg(message)
	}

	c.JSON(statusCode, dto.ErrorResponse{
		Error:   "JOB_FAILED",
		Message: errorMsg,
		Code:    statusCode,
	})
}
