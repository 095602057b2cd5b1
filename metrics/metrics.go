// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OCRRequests counts OCR calls by backend and outcome.
	OCRRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoice_ocr",
		Name:      "requests_total",
		Help:      "OCR backend requests by engine and outcome.",
	}, []string{"engine", "outcome"})

	// OCRDuration observes OCR call latency per backend.
	OCRDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "invoice_ocr",
		Name:      "request_duration_seconds",
		Help:      "OCR backend request latency.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"engine"})

	// PagesProcessed counts pages that produced a summary row.
	PagesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "invoice_ocr",
		Name:      "pages_processed_total",
		Help:      "Pages successfully extracted into summary rows.",
	})

	// PagesFailed counts pages that were skipped after OCR failure.
	PagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "invoice_ocr",
		Name:      "pages_failed_total",
		Help:      "Pages skipped because no backend could read them.",
	})

	// BatchRuns counts batch pipeline runs by outcome.
	BatchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoice_ocr",
		Name:      "batch_runs_total",
		Help:      "Batch extraction runs by outcome.",
	}, []string{"outcome"})
)

// ObserveOCR records one backend call.
func ObserveOCR(engine string, seconds float64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	OCRRequests.WithLabelValues(engine, outcome).Inc()
	OCRDuration.WithLabelValues(engine).Observe(seconds)
}
