package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/piyawatt/invoice-ocr-service/logger"
)

const ocrPrompt = "Extract text from image. Return clean Markdown only."

// OllamaClient talks to a local Ollama model server (the offline OCR
// backend). Pages are rasterized by the caller; this client sees PNGs.
type OllamaClient struct {
	generateURL string
	model       string
	httpClient  *http.Client
	log         zerolog.Logger
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images"`
	Stream  bool           `json:"stream"`
	Options map[string]int `json:"options"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// NewOllamaClient creates a client for the given generate endpoint and
// model name.
func NewOllamaClient(generateURL, model string) *OllamaClient {
	return &OllamaClient{
		generateURL: generateURL,
		model:       model,
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		log:         logger.With("ollama"),
	}
}

// Name identifies the backend in results and metrics.
func (c *OllamaClient) Name() string { return "ollama" }

// Ping checks that the Ollama server is reachable before a run starts.
func (c *OllamaClient) Ping(ctx context.Context) error {
	tagsURL := strings.Replace(c.generateURL, "/api/generate", "/api/tags", 1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tagsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build ping request: %w", err)
	}

	pingClient := &http.Client{Timeout: 5 * time.Second}
	resp, err := pingClient.Do(req)
	if err != nil {
		return fmt.Errorf("cannot connect to Ollama at %s: %w", tagsURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama responded with status %d", resp.StatusCode)
	}
	return nil
}

// ExtractImage OCRs one rendered page image (PNG bytes) through the
// vision model.
func (c *OllamaClient) ExtractImage(ctx context.Context, pngData []byte) (string, error) {
	payload := ollamaRequest{
		Model:  c.model,
		Prompt: ocrPrompt,
		Images: []string{base64.StdEncoding.EncodeToString(pngData)},
		Stream: false,
		Options: map[string]int{
			"temperature": 0,
			"num_ctx":     4096,
			"num_predict": 1024,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.generateURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var parsed ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}

	text := strings.TrimSpace(parsed.Response)
	if text == "" {
		return "", fmt.Errorf("ollama returned empty response")
	}

	c.log.Debug().Str("model", c.model).Int("chars", len(text)).Msg("ollama extraction complete")
	return text, nil
}
