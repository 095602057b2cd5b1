package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/piyawatt/invoice-ocr-service/config"
	"github.com/piyawatt/invoice-ocr-service/dto"
	"github.com/piyawatt/invoice-ocr-service/service"
)

var (
	flagLocal bool
	flagWatch bool
	flagPages string
)

var extractCmd = &cobra.Command{
	Use:   "extract [source-dir] [output-dir] [pages]",
	Short: "Extract every PDF in a directory to text files and a summary workbook",
	Long: `Run the OCR pipeline over all PDFs in source-dir. Each page is
written as <name>_page<N>.txt in output-dir, and one summary_ocr.xlsx
row is produced per page with the parsed invoice fields.

Directories default to the configured OCR_SOURCE_DIR and OCR_OUTPUT_DIR.`,
	Args: cobra.MaximumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(flagConfig)

		opts := service.BatchOptions{
			SourceDir: cfg.SourceDir,
			OutputDir: cfg.OutputDir,
			Pages:     cfg.PageSelection,
			Mode:      dto.ModeAPI,
		}
		if len(args) > 0 {
			opts.SourceDir = args[0]
		}
		if len(args) > 1 {
			opts.OutputDir = args[1]
		}
		if len(args) > 2 {
			opts.Pages = args[2]
		}
		if flagPages != "" {
			opts.Pages = flagPages
		}
		if flagLocal {
			opts.Mode = dto.ModeLocal
		}

		extract, _, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		batch := service.NewBatchService(extract)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if flagWatch {
			return batch.Watch(ctx, opts)
		}

		summary, err := batch.Run(ctx, opts)
		if err != nil {
			return err
		}

		fmt.Printf("Processed %d file(s), %d failed, %d row(s) written\n",
			summary.FilesTotal, summary.FilesFailed, summary.RowsWritten)
		if summary.SummaryPath != "" {
			fmt.Println("Summary:", summary.SummaryPath)
		}
		if summary.FilesFailed > 0 {
			return fmt.Errorf("%d file(s) failed", summary.FilesFailed)
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVar(&flagLocal, "local", false,
		"use the local Ollama model instead of the cloud OCR API")
	extractCmd.Flags().BoolVar(&flagWatch, "watch", false,
		"keep running and process PDFs as they appear in source-dir")
	extractCmd.Flags().StringVar(&flagPages, "pages", "",
		`page selection, e.g. "all", "2", "1-3", "2-n", "1,4"`)
	rootCmd.AddCommand(extractCmd)
}
