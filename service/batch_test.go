package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piyawatt/invoice-ocr-service/config"
	"github.com/piyawatt/invoice-ocr-service/dto"
	"github.com/piyawatt/invoice-ocr-service/utils"
)

func writeDummyPDF(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0o644))
}

func TestBatchRun(t *testing.T) {
	srcDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	writeDummyPDF(t, srcDir, "inv_b.pdf")
	writeDummyPDF(t, srcDir, "inv_a.pdf")
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "notes.txt"), []byte("skip me"), 0o644))

	cloud := &fakeCloud{text: sampleInvoiceText}
	pdfR := &fakeRenderer{pages: 1, renderErr: errors.New("no poppler")}
	svc := newTestService(t, cloud, &fakeVision{}, &fakeFallback{}, pdfR)

	var progress []int
	batch := NewBatchService(svc)
	summary, err := batch.Run(context.Background(), BatchOptions{
		SourceDir:  srcDir,
		OutputDir:  outDir,
		Pages:      "1",
		Mode:       dto.ModeAPI,
		OnProgress: func(done, _ int) { progress = append(progress, done) },
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.FilesTotal)
	assert.Equal(t, 0, summary.FilesFailed)
	assert.Equal(t, 2, summary.RowsWritten)
	assert.Equal(t, filepath.Join(outDir, SummaryFileName), summary.SummaryPath)
	assert.Equal(t, []int{1, 2}, progress)

	// The .txt sidecar files carry the raw OCR text per page.
	for _, stem := range []string{"inv_a", "inv_b"} {
		data, err := os.ReadFile(filepath.Join(outDir, stem+"_page1.txt"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "INV-001")
	}

	_, err = os.Stat(summary.SummaryPath)
	require.NoError(t, err)
}

func TestBatchRunAllFilesFail(t *testing.T) {
	srcDir := t.TempDir()
	writeDummyPDF(t, srcDir, "broken.pdf")

	cloud := &fakeCloud{err: errors.New("upstream down")}
	pdfR := &fakeRenderer{pages: 1, renderErr: errors.New("no poppler")}
	fallback := &fakeFallback{err: errors.New("no tesseract")}
	svc := newTestService(t, cloud, &fakeVision{}, fallback, pdfR)

	summary, err := NewBatchService(svc).Run(context.Background(), BatchOptions{
		SourceDir: srcDir,
		OutputDir: filepath.Join(t.TempDir(), "out"),
		Pages:     "all",
		Mode:      dto.ModeAPI,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FilesTotal)
	assert.Equal(t, 1, summary.FilesFailed)
	assert.Equal(t, 0, summary.RowsWritten)
	assert.Empty(t, summary.SummaryPath)
}

func TestBatchRunBackendUnavailable(t *testing.T) {
	templates, err := utils.LoadTemplates("")
	require.NoError(t, err)
	svc := NewExtractService(&config.Config{}, &fakeCloud{}, &fakeVision{}, &fakeFallback{},
		&fakeRenderer{pages: 1}, templates, nil)

	_, err = NewBatchService(svc).Run(context.Background(), BatchOptions{
		SourceDir: t.TempDir(),
		Mode:      dto.ModeAPI,
	})
	require.ErrorIs(t, err, dto.ErrMissingAPIKey)
}

func TestBatchRunMissingSourceDir(t *testing.T) {
	cloud := &fakeCloud{text: sampleInvoiceText}
	svc := newTestService(t, cloud, &fakeVision{}, &fakeFallback{}, &fakeRenderer{pages: 1})

	_, err := NewBatchService(svc).Run(context.Background(), BatchOptions{
		SourceDir: filepath.Join(t.TempDir(), "does-not-exist"),
		OutputDir: t.TempDir(),
		Mode:      dto.ModeAPI,
	})
	require.Error(t, err)
}

func TestWatchDebouncesWriteBursts(t *testing.T) {
	srcDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")

	cloud := &fakeCloud{text: sampleInvoiceText}
	pdfR := &fakeRenderer{pages: 1, renderErr: errors.New("no poppler")}
	svc := newTestService(t, cloud, &fakeVision{}, &fakeFallback{}, pdfR)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- NewBatchService(svc).Watch(ctx, BatchOptions{
			SourceDir: srcDir,
			OutputDir: outDir,
			Pages:     "1",
			Mode:      dto.ModeAPI,
		})
	}()

	// A slow writer shows up as Create plus a burst of Writes; the
	// file must be extracted exactly once, after the burst ends.
	path := filepath.Join(srcDir, "drop.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	for i := 0; i < 3; i++ {
		time.Sleep(50 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		_, err = f.WriteString("x")
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	summaryPath := filepath.Join(outDir, SummaryFileName)
	require.Eventually(t, func() bool {
		_, err := os.Stat(summaryPath)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	assert.Len(t, cloud.calls, 1)
}

func TestCollectRowsReplacesReprocessedFiles(t *testing.T) {
	byFile := map[string][]dto.PageResult{
		"b.pdf": {{SourceFile: "b.pdf", Page: 1}},
		"a.pdf": {{SourceFile: "a.pdf", Page: 1}, {SourceFile: "a.pdf", Page: 2}},
	}

	rows := collectRows(byFile)
	require.Len(t, rows, 3)
	assert.Equal(t, "a.pdf", rows[0].SourceFile)
	assert.Equal(t, "b.pdf", rows[2].SourceFile)

	// A file dropped again replaces its rows instead of stacking up.
	byFile["a.pdf"] = []dto.PageResult{{SourceFile: "a.pdf", Page: 1}}
	rows = collectRows(byFile)
	assert.Len(t, rows, 2)
}

func TestListPDFsSorted(t *testing.T) {
	dir := t.TempDir()
	writeDummyPDF(t, dir, "b.PDF")
	writeDummyPDF(t, dir, "a.pdf")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o755))

	files, err := listPDFs(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "a.pdf"), files[0])
	assert.Equal(t, filepath.Join(dir, "b.PDF"), files[1])
}
