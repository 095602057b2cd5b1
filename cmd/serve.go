package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/piyawatt/invoice-ocr-service/config"
	"github.com/piyawatt/invoice-ocr-service/logger"
	"github.com/piyawatt/invoice-ocr-service/server"
	"github.com/piyawatt/invoice-ocr-service/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP extraction service",
	Long: `Start the HTTP API on the configured port (default 8501). The
service exposes synchronous extraction, background batch jobs, health
probes and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(flagConfig)

		extract, ollama, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		log := logger.L()
		if cfg.APIKey == "" {
			log.Warn().Msg("TYPHOON_API_KEY not set, api-mode requests will be rejected")
		}
		jobs := service.NewJobManager(service.NewBatchService(extract))
		srv := server.New(cfg, extract, jobs, ollama)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info().Str("port", cfg.ServerPort).
			Bool("poppler", cfg.HasPoppler()).Msg("starting service")
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
