package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()
	once     sync.Once

	pagesScanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scansplit",
			Name:      "pages_scanned_total",
			Help:      "Pages rendered and classified, by class (marker, content)",
		},
		[]string{"class"},
	)

	documentsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scansplit",
			Name:      "documents_written_total",
			Help:      "Output documents committed to the output directory",
		},
	)

	emptyRanges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scansplit",
			Name:      "empty_ranges_total",
			Help:      "Content ranges with no pages between adjacent markers",
		},
	)

	runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scansplit",
			Name:      "runs_total",
			Help:      "Runs by outcome (split, unsplit, not_found, render, persistence, ...)",
		},
		[]string{"outcome"},
	)

	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scansplit",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one run",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	renderLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scansplit",
			Name:      "page_render_duration_seconds",
			Help:      "Duration of rasterizing one page",
			Buckets:   prometheus.DefBuckets,
		},
	)

	relocated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scansplit",
			Name:      "relocated_files_total",
			Help:      "Files moved to the outgoing destination, by target (local, s3)",
		},
		[]string{"target"},
	)
)

// Init registers collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		registry.MustRegister(pagesScanned, documentsWritten, emptyRanges, runs, runDuration, renderLatency, relocated)
	})
}

// Gatherer exposes the private registry.
func Gatherer() prometheus.Gatherer { return registry }

// WriteTextfile dumps all metrics in text exposition format for the
// node-exporter textfile collector. No-op when path is empty.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	Init()
	return prometheus.WriteToTextfile(path, registry)
}

func IncPage(marker bool) {
	if marker {
		pagesScanned.WithLabelValues("marker").Inc()
		return
	}
	pagesScanned.WithLabelValues("content").Inc()
}

func AddDocuments(n int)            { documentsWritten.Add(float64(n)) }
func IncEmptyRange()                { emptyRanges.Inc() }
func IncRun(outcome string)         { runs.WithLabelValues(outcome).Inc() }
func ObserveRun(d time.Duration)    { runDuration.Observe(d.Seconds()) }
func ObserveRender(d time.Duration) { renderLatency.Observe(d.Seconds()) }
func IncRelocated(target string)    { relocated.WithLabelValues(target).Inc() }
