package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// download and extraction pipeline.
type Metrics struct {
	// Fetch metrics.
	FetchResults    *prometheus.CounterVec // labels: outcome={downloaded,cached,failed}
	FetchDuration   prometheus.Histogram
	BytesDownloaded prometheus.Counter

	// Batch metrics.
	BatchSize     prometheus.Histogram
	BatchDuration prometheus.Histogram

	// Job and quota metrics.
	JobsTotal    *prometheus.CounterVec // labels: outcome={completed,auth_denied,quota_denied,failed}
	JobsInFlight prometheus.Gauge
	QuotaDenials *prometheus.CounterVec // labels: window={daily,monthly}

	// Extraction metrics.
	PointsExtracted       prometheus.Counter
	SentinelSubstitutions prometheus.Counter

	// Usage-event publishing.
	UsageEventsPublished prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchResults,
		m.FetchDuration,
		m.BytesDownloaded,
		m.BatchSize,
		m.BatchDuration,
		m.JobsTotal,
		m.JobsInFlight,
		m.QuotaDenials,
		m.PointsExtracted,
		m.SentinelSubstitutions,
		m.UsageEventsPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imerg_subset",
			Name:      "fetch_results_total",
			Help:      "Fetch task results by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "imerg_subset",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a single subset download.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		BytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imerg_subset",
			Name:      "bytes_downloaded_total",
			Help:      "Total bytes streamed from the archive.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "imerg_subset",
			Name:      "batch_size",
			Help:      "Number of dates per download batch.",
			Buckets:   []float64{1, 5, 10, 31, 62, 93, 186, 366},
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "imerg_subset",
			Name:      "batch_duration_seconds",
			Help:      "Duration of a complete download batch.",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imerg_subset",
			Name:      "jobs_total",
			Help:      "Extraction jobs by outcome.",
		}, []string{"outcome"}),
		JobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "imerg_subset",
			Name:      "jobs_in_flight",
			Help:      "Number of extraction jobs currently running.",
		}),
		QuotaDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imerg_subset",
			Name:      "quota_denials_total",
			Help:      "Quota denials by window.",
		}, []string{"window"}),
		PointsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imerg_subset",
			Name:      "points_extracted_total",
			Help:      "Point values extracted from downloaded grids.",
		}),
		SentinelSubstitutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imerg_subset",
			Name:      "sentinel_substitutions_total",
			Help:      "Point lookups that produced the missing-value sentinel.",
		}),
		UsageEventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imerg_subset",
			Name:      "usage_events_published_total",
			Help:      "Usage events published to the sink topic.",
		}),
	}
}
