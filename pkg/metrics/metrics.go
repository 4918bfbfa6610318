// Package metrics provides Prometheus metrics for the ingestion and
// scanning pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once
	registry     = prometheus.NewRegistry()

	// RecordsFed counts entity records written through the store facade.
	RecordsFed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberkb_records_fed_total",
			Help: "Total number of entity records fed into the knowledge base",
		},
		[]string{"entity"},
	)

	// IngestorRuns counts ingestor invocations by outcome.
	IngestorRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberkb_ingestor_runs_total",
			Help: "Total number of ingestor invocations",
		},
		[]string{"ingestor", "status"},
	)

	// RowsSkipped counts malformed rows skipped during ingestion.
	RowsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberkb_ingestor_rows_skipped_total",
			Help: "Total number of malformed or unsupported rows skipped",
		},
		[]string{"ingestor"},
	)

	// ScannerRuns counts scanner invocations by outcome.
	ScannerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberkb_scanner_runs_total",
			Help: "Total number of scanner invocations",
		},
		[]string{"scanner", "status"},
	)

	// ScannerDuration observes scanner run durations.
	ScannerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cyberkb_scanner_duration_seconds",
			Help:    "Duration of scanner runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"scanner"},
	)

	// Alerts counts emitted controls and alerts by control name and status.
	Alerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberkb_controls_emitted_total",
			Help: "Total number of control results and alerts emitted",
		},
		[]string{"control", "status"},
	)
)

// Register registers all pipeline metrics on the package registry.
// Safe to call multiple times.
func Register() {
	registerOnce.Do(func() {
		registry.MustRegister(
			RecordsFed,
			IngestorRuns,
			RowsSkipped,
			ScannerRuns,
			ScannerDuration,
			Alerts,
		)
	})
}

// Handler returns an HTTP handler exposing the pipeline metrics.
func Handler() http.Handler {
	Register()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
