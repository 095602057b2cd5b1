package config

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

const (
	defaultTyphoonURL = "https://api.opentyphoon.ai/v1/ocr"
	defaultOllamaURL  = "http://localhost:11434/api/generate"
	defaultModelName  = "scb10x/typhoon-ocr1.5-3b:latest"
	defaultPort       = "8501"
	defaultTessdata   = "/usr/share/tesseract-ocr/5/tessdata/"
)

// Config holds all runtime configuration. Values come from environment
// variables first; API key and Poppler path fall back to an optional
// config.json next to the binary.
type Config struct {
	APIKey       string // Typhoon OCR API key
	TyphoonURL   string
	OllamaAPIURL string
	ModelName    string

	PopplerPath   string // directory holding pdftoppm, empty = system PATH
	TessdataPath  string
	ServerPort    string
	SourceDir     string
	OutputDir     string
	PageSelection string // default page selection for batch runs

	MaxUploadSize int64
}

// fileConfig mirrors the optional config.json shipped with the original
// installer: {"API_KEY": "...", "POPPLER_PATH": "..." | null}.
type fileConfig struct {
	APIKey      string  `json:"API_KEY"`
	PopplerPath *string `json:"POPPLER_PATH"`
}

// Load builds the configuration from the environment, falling back to
// configPath (pass "" for ./config.json) for the API key and Poppler path.
func Load(configPath string) *Config {
	cfg := &Config{
		APIKey:        os.Getenv("TYPHOON_API_KEY"),
		TyphoonURL:    envOr("TYPHOON_API_URL", defaultTyphoonURL),
		OllamaAPIURL:  envOr("OLLAMA_API_URL", defaultOllamaURL),
		ModelName:     envOr("OCR_MODEL_NAME", defaultModelName),
		PopplerPath:   os.Getenv("POPPLER_PATH"),
		TessdataPath:  tessdataPath(),
		ServerPort:    serverPort(),
		SourceDir:     envOr("OCR_SOURCE_DIR", DefaultSourceDir()),
		OutputDir:     envOr("OCR_OUTPUT_DIR", DefaultOutputDir()),
		PageSelection: envOr("OCR_PAGES", "all"),
		MaxUploadSize: 32 << 20,
	}

	if cfg.APIKey == "" || cfg.PopplerPath == "" {
		if configPath == "" {
			configPath = "config.json"
		}
		if fc, err := readFileConfig(configPath); err == nil {
			if cfg.APIKey == "" {
				cfg.APIKey = fc.APIKey
			}
			if cfg.PopplerPath == "" && fc.PopplerPath != nil {
				cfg.PopplerPath = *fc.PopplerPath
			}
		}
	}

	if cfg.PopplerPath == "" {
		cfg.PopplerPath = probePoppler()
	}

	return cfg
}

func readFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// serverPort honors the port variable the original Streamlit deployment
// used before falling back to SERVER_PORT.
func serverPort() string {
	if v := os.Getenv("STREAMLIT_SERVER_PORT"); v != "" {
		return v
	}
	return envOr("SERVER_PORT", defaultPort)
}

func tessdataPath() string {
	if v := os.Getenv("TESSERACT_PATH"); v != "" {
		return v
	}
	return envOr("TESSDATA_PREFIX", defaultTessdata)
}

// DefaultSourceDir returns the OS-conventional input directory.
func DefaultSourceDir() string {
	if runtime.GOOS == "windows" {
		return `d:\Project\ocr\source`
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./source"
	}
	return filepath.Join(home, "ocr", "source")
}

// DefaultOutputDir returns the OS-conventional output directory.
func DefaultOutputDir() string {
	if runtime.GOOS == "windows" {
		return `d:\Project\ocr\output`
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./output"
	}
	return filepath.Join(home, "ocr", "output")
}

// probePoppler looks for a Poppler install in the usual per-OS locations.
// Empty means pdftoppm is expected on PATH (or absent, in which case the
// PDF processor falls back to embedded image extraction).
func probePoppler() string {
	if runtime.GOOS == "windows" {
		candidates := []string{
			`C:\poppler\Library\bin`,
			`C:\poppler\bin`,
			`C:\Program Files\poppler\bin`,
		}
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, "poppler", "bin"))
		}
		for _, dir := range candidates {
			if _, err := os.Stat(filepath.Join(dir, "pdftoppm.exe")); err == nil {
				return dir
			}
		}
		return ""
	}
	// macOS and Linux installs put pdftoppm on PATH.
	if _, err := exec.LookPath("pdftoppm"); err == nil {
		return ""
	}
	return ""
}

// PdftoppmBinary resolves the pdftoppm executable for the configured
// Poppler path.
func (c *Config) PdftoppmBinary() string {
	name := "pdftoppm"
	if runtime.GOOS == "windows" {
		name = "pdftoppm.exe"
	}
	if c.PopplerPath != "" {
		return filepath.Join(c.PopplerPath, name)
	}
	return name
}

// HasPoppler reports whether a usable pdftoppm could be located.
func (c *Config) HasPoppler() bool {
	if c.PopplerPath != "" {
		_, err := os.Stat(c.PdftoppmBinary())
		return err == nil
	}
	_, err := exec.LookPath("pdftoppm")
	return err == nil
}
