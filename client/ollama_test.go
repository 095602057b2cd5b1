package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaExtractImage(t *testing.T) {
	var got ollamaRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.NoError(t, json.NewEncoder(w).Encode(ollamaResponse{Response: "  ใบกำกับภาษี เลขที่ 42  "}))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL+"/api/generate", "typhoon-ocr:3b")
	text, err := c.ExtractImage(context.Background(), []byte("png-bytes"))

	require.NoError(t, err)
	assert.Equal(t, "ใบกำกับภาษี เลขที่ 42", text)
	assert.Equal(t, "typhoon-ocr:3b", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, 0, got.Options["temperature"])
	assert.Equal(t, 4096, got.Options["num_ctx"])

	require.Len(t, got.Images, 1)
	decoded, err := base64.StdEncoding.DecodeString(got.Images[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), decoded)
}

func TestOllamaEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(ollamaResponse{Response: "   "}))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL+"/api/generate", "m")
	_, err := c.ExtractImage(context.Background(), []byte("x"))
	assert.Error(t, err)
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL+"/api/generate", "missing")
	_, err := c.ExtractImage(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestOllamaPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL+"/api/generate", "m")
	assert.NoError(t, c.Ping(context.Background()))
}

func TestOllamaPingUnreachable(t *testing.T) {
	c := NewOllamaClient("http://127.0.0.1:1/api/generate", "m")
	assert.Error(t, c.Ping(context.Background()))
}
