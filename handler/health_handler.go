package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/piyawatt/invoice-ocr-service/config"
	"github.com/piyawatt/invoice-ocr-service/dto"
)

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers container and load-balancer health probes.
type HealthHandler struct {
	cfg    *config.Config
	vision Pinger
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(cfg *config.Config, vision Pinger) *HealthHandler {
	return &HealthHandler{cfg: cfg, vision: vision}
}

// Health handles GET /health and its /_stcore/health alias.
func (h *HealthHandler) Health(c *gin.Context) {
	mode := dto.ModeLocal
	if h.cfg.APIKey != "" {
		mode = dto.ModeAPI
	}

	resp := dto.HealthResponse{
		Status:  "ok",
		Service: "invoice-ocr-service",
		Mode:    string(mode),
	}

	if h.vision != nil {
		if err := h.vision.Ping(c.Request.Context()); err != nil {
			resp.Ollama = "unreachable"
		} else {
			resp.Ollama = "ok"
		}
	}

	c.JSON(http.StatusOK, resp)
}
