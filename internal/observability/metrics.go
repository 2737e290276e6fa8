package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "splashdown"

// Metrics holds the Prometheus counters, histograms, and gauges for the pipeline.
type Metrics struct {
	PipelineRunning  prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
	StageDuration    *prometheus.HistogramVec // labels: stage={ingest,merge,select,aggregate,export,publish}

	// Ingestion metrics.
	RecordsParsed *prometheus.CounterVec // labels: kind={txt,spec,stations}
	MalformedRows *prometheus.CounterVec // labels: kind
	FileErrors    *prometheus.CounterVec // labels: kind

	DuplicatesRemoved *prometheus.CounterVec // labels: kind={txt,spec}
	StationsMatched   *prometheus.GaugeVec   // labels: site
	MessagesPublished prometheus.Counter

	// Download metrics.
	DownloadFailures *prometheus.CounterVec   // labels: kind
	DownloadDuration *prometheus.HistogramVec // labels: kind
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last successful run finished.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		RecordsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_parsed_total",
			Help:      "Report rows parsed, by report kind.",
		}, []string{"kind"}),
		MalformedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_rows_total",
			Help:      "Report rows skipped because their shape or timestamp was invalid.",
		}, []string{"kind"}),
		FileErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_errors_total",
			Help:      "Report files that could not be read or parsed.",
		}, []string{"kind"}),
		DuplicatesRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_removed_total",
			Help:      "Observations dropped as duplicate (station, timestamp) keys.",
		}, []string{"kind"}),
		StationsMatched: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations_matched",
			Help:      "Stations inside each site's buffer in the last run.",
		}, []string{"site"}),
		MessagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Site condition messages written to Kafka.",
		}),
		DownloadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_failures_total",
			Help:      "Failed NDBC downloads by file kind.",
		}, []string{"kind"}),
		DownloadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "NDBC request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PipelineRunning,
		m.LastRunTimestamp,
		m.StageDuration,
		m.RecordsParsed,
		m.MalformedRows,
		m.FileErrors,
		m.DuplicatesRemoved,
		m.StationsMatched,
		m.MessagesPublished,
		m.DownloadFailures,
		m.DownloadDuration,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
