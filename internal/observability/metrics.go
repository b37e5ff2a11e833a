package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "region_metrics_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Calculation metrics.
	RegionsComputed     *prometheus.CounterVec // labels: level
	SnapshotsEmitted    prometheus.Counter
	StaleMetrics        *prometheus.CounterVec // labels: field
	ProvenanceFallbacks prometheus.Counter

	// Infection rate provider metrics.
	RtRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	RtCache       *prometheus.CounterVec // labels: result={hit,miss}
	RtAPIDuration prometheus.Histogram
	RtEnabled     prometheus.Gauge
}

func newMetrics(withHelp func(string) string) *Metrics {
	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      withHelp("Total messages read from the source topic."),
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      withHelp("Total messages written to the sink topic."),
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      withHelp("Total transformation failures."),
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      withHelp("1 when the pipeline is active, 0 when shut down."),
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      withHelp("Number of messages per batch extracted from Kafka."),
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      withHelp("Duration of a complete batch extract-transform-load cycle."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		RegionsComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regions_computed_total",
			Help:      withHelp("Regions whose metrics frame was computed, by aggregation level."),
		}, []string{"level"}),
		SnapshotsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_emitted_total",
			Help:      withHelp("Latest-value snapshots produced for non-empty regions."),
		}),
		StaleMetrics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_metrics_total",
			Help:      withHelp("Latest values withheld because they were older than the lookback window."),
		}, []string{"field"}),
		ProvenanceFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_positivity_fallbacks_total",
			Help:      withHelp("Regions with provenance whose test positivity method fell back to other."),
		}),
		RtRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rt_requests_total",
			Help:      withHelp("Infection rate provider requests by outcome."),
		}, []string{"outcome"}),
		RtCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rt_cache_total",
			Help:      withHelp("Infection rate cache lookups by result."),
		}, []string{"result"}),
		RtAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rt_api_duration_seconds",
			Help:      withHelp("Infection rate provider request duration in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		RtEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rt_provider_enabled",
			Help:      withHelp("1 when infection rate enrichment is enabled, 0 otherwise."),
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.RegionsComputed,
		m.SnapshotsEmitted,
		m.StaleMetrics,
		m.ProvenanceFallbacks,
		m.RtRequests,
		m.RtCache,
		m.RtAPIDuration,
		m.RtEnabled,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(func(s string) string { return s })
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics(func(string) string { return "" })
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
