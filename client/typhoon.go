package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/piyawatt/invoice-ocr-service/logger"
)

// TyphoonClient calls the Typhoon OCR cloud API. One request carries the
// whole PDF plus the page list to read; the API answers per page.
type TyphoonClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// typhoonResult is one per-page entry in the API response. The content is
// the model output, which may itself be a JSON envelope holding
// natural_text.
type typhoonResult struct {
	Success bool `json:"success"`
	Message struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"message"`
}

type typhoonResponse struct {
	Results []typhoonResult `json:"results"`
}

// NewTyphoonClient creates a Typhoon OCR API client.
func NewTyphoonClient(baseURL, apiKey string) *TyphoonClient {
	return &TyphoonClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		log:        logger.With("typhoon"),
	}
}

// Name identifies the backend in results and metrics.
func (c *TyphoonClient) Name() string { return "typhoon" }

// ExtractPages runs Typhoon OCR over the given pages of a PDF file and
// returns the concatenated page texts.
func (c *TyphoonClient) ExtractPages(ctx context.Context, filePath string, pages []int) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("typhoon: no API key configured")
	}

	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to copy file into request: %w", err)
	}

	fields := map[string]string{
		"model":              "typhoon-ocr",
		"task_type":          "default",
		"max_tokens":         "16000",
		"temperature":        "0.1",
		"top_p":              "0.6",
		"repetition_penalty": "1.1",
	}
	if len(pages) > 0 {
		pagesJSON, err := json.Marshal(pages)
		if err != nil {
			return "", fmt.Errorf("failed to encode page list: %w", err)
		}
		fields["pages"] = string(pagesJSON)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return "", fmt.Errorf("failed to write form field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("typhoon API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("typhoon API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var parsed typhoonResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode typhoon response: %w", err)
	}

	var texts []string
	for _, result := range parsed.Results {
		if !result.Success || len(result.Message.Choices) == 0 {
			continue
		}
		texts = append(texts, unwrapContent(result.Message.Choices[0].Message.Content))
	}
	if len(texts) == 0 {
		return "", fmt.Errorf("typhoon API returned no successful pages")
	}

	text := strings.Join(texts, "\n")
	c.log.Debug().Str("file", filepath.Base(filePath)).Ints("pages", pages).
		Int("chars", len(text)).Msg("typhoon extraction complete")
	return text, nil
}

// unwrapContent handles the JSON envelope the OCR model sometimes wraps
// its answer in. Plain text passes through untouched.
func unwrapContent(content string) string {
	var envelope struct {
		NaturalText string `json:"natural_text"`
	}
	if err := json.Unmarshal([]byte(content), &envelope); err == nil && envelope.NaturalText != "" {
		return envelope.NaturalText
	}
	return content
}
