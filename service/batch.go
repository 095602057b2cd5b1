package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/piyawatt/invoice-ocr-service/dto"
	"github.com/piyawatt/invoice-ocr-service/logger"
	"github.com/piyawatt/invoice-ocr-service/metrics"
)

// SummaryFileName is the workbook the batch run writes to the output dir.
const SummaryFileName = "summary_ocr.xlsx"

// watchSettle is how long a watched file must stay quiet after its last
// write before it is picked up.
const watchSettle = 500 * time.Millisecond

// BatchOptions configures one batch extraction run.
type BatchOptions struct {
	SourceDir string
	OutputDir string
	Pages     string
	Mode      dto.EngineMode

	// OnProgress, when set, is told after each file (done, total).
	OnProgress func(done, total int)
}

// BatchSummary reports what a run produced.
type BatchSummary struct {
	FilesTotal  int
	FilesFailed int
	RowsWritten int
	SummaryPath string
}

// BatchService drives the extraction pipeline over a source directory.
type BatchService struct {
	extract *ExtractService
	log     zerolog.Logger
}

// NewBatchService creates a batch runner on top of an ExtractService.
func NewBatchService(extract *ExtractService) *BatchService {
	return &BatchService{extract: extract, log: logger.With("batch")}
}

// Run scans opts.SourceDir for PDFs and extracts the configured pages of
// each. Per-file failures are logged and counted, not fatal; an
// unreachable backend or unreadable source directory is.
func (b *BatchService) Run(ctx context.Context, opts BatchOptions) (*BatchSummary, error) {
	if err := b.extract.CheckBackend(ctx, opts.Mode); err != nil {
		metrics.BatchRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	files, err := listPDFs(opts.SourceDir)
	if err != nil {
		metrics.BatchRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		metrics.BatchRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	summary := &BatchSummary{FilesTotal: len(files)}
	var rows []dto.PageResult

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		fileRows, err := b.processFile(ctx, file, opts)
		if err != nil {
			b.log.Error().Err(err).Str("file", filepath.Base(file)).Msg("file failed")
			summary.FilesFailed++
		} else {
			rows = append(rows, fileRows...)
		}
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(files))
		}
	}

	if len(rows) == 0 {
		b.log.Warn().Str("source", opts.SourceDir).Msg("no data extracted")
		metrics.BatchRuns.WithLabelValues("empty").Inc()
		return summary, nil
	}

	summaryPath := filepath.Join(opts.OutputDir, SummaryFileName)
	if err := WriteSummaryWorkbook(summaryPath, opts.SourceDir, rows); err != nil {
		metrics.BatchRuns.WithLabelValues("error").Inc()
		return summary, err
	}

	summary.RowsWritten = len(rows)
	summary.SummaryPath = summaryPath
	metrics.BatchRuns.WithLabelValues("success").Inc()
	b.log.Info().Int("files", summary.FilesTotal).Int("rows", summary.RowsWritten).
		Str("summary", summaryPath).Msg("batch run complete")
	return summary, nil
}

// processFile extracts one PDF and writes its per-page text files.
func (b *BatchService) processFile(ctx context.Context, path string, opts BatchOptions) ([]dto.PageResult, error) {
	b.log.Info().Str("file", filepath.Base(path)).Msg("processing")

	resp, err := b.extract.ExtractFile(ctx, path, opts.Pages, opts.Mode)
	if err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, page := range resp.Pages {
		txtPath := filepath.Join(opts.OutputDir, fmt.Sprintf("%s_page%d.txt", stem, page.Page))
		if err := os.WriteFile(txtPath, []byte(page.RawText), 0o644); err != nil {
			b.log.Warn().Err(err).Str("path", txtPath).Msg("failed to write page text")
		}
	}
	return resp.Pages, nil
}

// Watch keeps processing PDFs as they are dropped into the source
// directory, rewriting the summary workbook after each file. Blocks
// until ctx is cancelled.
func (b *BatchService) Watch(ctx context.Context, opts BatchOptions) error {
	if err := b.extract.CheckBackend(ctx, opts.Mode); err != nil {
		return err
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(opts.SourceDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", opts.SourceDir, err)
	}
	b.log.Info().Str("source", opts.SourceDir).Msg("watching for new PDFs")

	rowsByFile := make(map[string][]dto.PageResult)
	pending := make(map[string]*time.Timer)
	ready := make(chan string)
	summaryPath := filepath.Join(opts.OutputDir, SummaryFileName)

	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			b.log.Warn().Err(err).Msg("watcher error")
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
				continue
			}

			// A drop arrives as Create plus a burst of Writes; each
			// event resets the timer so the file is processed once,
			// after the writer goes quiet.
			name := event.Name
			if t, ok := pending[name]; ok {
				t.Reset(watchSettle)
				continue
			}
			pending[name] = time.AfterFunc(watchSettle, func() {
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})
		case name := <-ready:
			delete(pending, name)

			fileRows, err := b.processFile(ctx, name, opts)
			if err != nil {
				b.log.Error().Err(err).Str("file", filepath.Base(name)).Msg("file failed")
				continue
			}
			rowsByFile[name] = fileRows
			if err := WriteSummaryWorkbook(summaryPath, opts.SourceDir, collectRows(rowsByFile)); err != nil {
				b.log.Error().Err(err).Msg("failed to rewrite summary workbook")
			}
		}
	}
}

// collectRows flattens per-file results in file-name order, so a
// rewritten file replaces its rows instead of appending duplicates.
func collectRows(byFile map[string][]dto.PageResult) []dto.PageResult {
	names := make([]string, 0, len(byFile))
	for name := range byFile {
		names = append(names, name)
	}
	sort.Strings(names)

	var rows []dto.PageResult
	for _, name := range names {
		rows = append(rows, byFile[name]...)
	}
	return rows
}

// listPDFs returns the PDF files directly under dir, sorted by name.
func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("source directory not found: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
