// Package cmd holds the CLI entry points of the invoice OCR service.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/piyawatt/invoice-ocr-service/client"
	"github.com/piyawatt/invoice-ocr-service/config"
	"github.com/piyawatt/invoice-ocr-service/logger"
	"github.com/piyawatt/invoice-ocr-service/service"
	"github.com/piyawatt/invoice-ocr-service/utils"
)

var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "invoice-ocr",
	Short: "OCR extraction service for Thai vendor invoices",
	Long: `invoice-ocr extracts structured fields from Thai vendor invoices,
billing notes and CY instructions. Documents are read through the
Typhoon cloud OCR API or a local Ollama vision model, with Tesseract
as the engine of last resort.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Configure(logger.Config{Level: flagLogLevel})
	},
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"path to config.json (default ./config.json)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "",
		"log level: debug, info, warn, error")
}

// buildPipeline wires the OCR clients and the extraction service from
// the loaded configuration.
func buildPipeline(cfg *config.Config) (*service.ExtractService, *client.OllamaClient, error) {
	templates, err := utils.LoadTemplates("")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load document templates: %w", err)
	}

	vendors, err := service.LoadVendorMaster(service.DefaultVendorMasterFile)
	if err != nil {
		log := logger.L()
		log.Warn().Err(err).Msg("vendor master not loaded, vendor join disabled")
		vendors = service.NewEmptyVendorMaster()
	}

	typhoon := client.NewTyphoonClient(cfg.TyphoonURL, cfg.APIKey)
	ollama := client.NewOllamaClient(cfg.OllamaAPIURL, cfg.ModelName)
	tesseract := client.NewTesseractClient(cfg.TessdataPath)
	pdf := service.NewPDFProcessor(cfg)

	extract := service.NewExtractService(cfg, typhoon, ollama, tesseract, pdf, templates, vendors)
	return extract, ollama, nil
}
