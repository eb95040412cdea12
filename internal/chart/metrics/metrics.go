package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the chart module.
// Tracks lifecycle throughput and the validation/build critical paths.
type Metrics struct {
	ChartsCreated      prometheus.Counter
	ChartsApproved     prometheus.Counter
	ValidationFailures prometheus.Counter
	RevisionConflicts  prometheus.Counter
	ValidateDuration   prometheus.Histogram
	BuildDuration      prometheus.Histogram
	ComplianceScore    prometheus.Histogram
	VizCacheHits       prometheus.Counter
	VizCacheMisses     prometheus.Counter
}

// New creates a Metrics instance with all chart module metrics registered.
func New() *Metrics {
	return &Metrics{
		ChartsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orgchart_charts_created_total",
			Help: "Total number of chart drafts created",
		}),
		ChartsApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orgchart_charts_approved_total",
			Help: "Total number of charts approved as current",
		}),
		ValidationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orgchart_validation_failures_total",
			Help: "Validations rejected for structural or blocking compliance errors",
		}),
		RevisionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orgchart_revision_conflicts_total",
			Help: "Optimistic concurrency rejections across all chart operations",
		}),
		ValidateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "orgchart_validate_duration_seconds",
			Help:    "Duration of full chart validation (structural + compliance)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		BuildDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "orgchart_tree_build_duration_seconds",
			Help:    "Duration of hierarchy tree construction and metric derivation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ComplianceScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "orgchart_compliance_score",
			Help:    "Compliance scores observed at validation time",
			Buckets: []float64{0, 25, 50, 70, 85, 95, 100},
		}),
		VizCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orgchart_viz_cache_hits_total",
			Help: "Visualization payloads served from cache",
		}),
		VizCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orgchart_viz_cache_misses_total",
			Help: "Visualization payloads rebuilt on cache miss",
		}),
	}
}

// ObserveValidate records the duration of a Validate operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveValidate(start time.Time) {
	m.ValidateDuration.Observe(time.Since(start).Seconds())
}

// ObserveBuild records the duration of one tree construction.
func (m *Metrics) ObserveBuild(start time.Time) {
	m.BuildDuration.Observe(time.Since(start).Seconds())
}
