package dto

import "errors"

// Sentinel errors shared across layers.
var (
	ErrNoFile        = errors.New("no file provided")
	ErrUnknownMode   = errors.New("mode must be \"api\" or \"local\"")
	ErrMissingAPIKey = errors.New("TYPHOON_API_KEY not set and no API_KEY in config file")
	ErrNoPages       = errors.New("page selection matched no pages")
	ErrJobNotFound   = errors.New("job not found")
	ErrEmptyOCRText  = errors.New("no text could be extracted from the document")
)

// ErrorResponse is the JSON error envelope returned by all handlers.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ExtractResponse is the result of a synchronous single-document extraction.
type ExtractResponse struct {
	Filename    string       `json:"filename"`
	TotalPages  int          `json:"total_pages"`
	Pages       []PageResult `json:"pages"`
	ProcessedAt string       `json:"processed_at"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Mode    string `json:"mode"`
	Ollama  string `json:"ollama,omitempty"`
}
