// Package metrics provides Prometheus metrics for the ride bookings pipeline.
//
// The pipeline is a batch job, so metrics are collected in a private registry
// and written once per run as a node-exporter textfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	registry *prometheus.Registry

	// Run metrics
	RunsTotal        *prometheus.CounterVec
	LastRunTimestamp *prometheus.GaugeVec

	// Stage metrics
	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec

	// Table metrics
	TableRows         *prometheus.GaugeVec
	DuplicatesRemoved *prometheus.CounterVec
	OutliersRemoved   *prometheus.CounterVec

	// Output metrics
	ArtifactBytes *prometheus.GaugeVec
	CatalogErrors *prometheus.CounterVec
}

var defaultMetrics *Metrics

// New creates the pipeline metrics in a fresh registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "ride_pipeline"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by final status",
			},
			[]string{"dataset", "status"},
		),
		LastRunTimestamp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
			[]string{"dataset"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each pipeline stage",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~30s
			},
			[]string{"dataset", "stage"},
		),
		StageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_failures_total",
				Help:      "Total number of failed pipeline stages",
			},
			[]string{"dataset", "stage"},
		),
		TableRows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "table_rows",
				Help:      "Row count of the raw, full and clean tables",
			},
			[]string{"dataset", "table"},
		),
		DuplicatesRemoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "duplicates_removed_total",
				Help:      "Rows dropped as duplicate bookings",
			},
			[]string{"dataset"},
		),
		OutliersRemoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outliers_removed_total",
				Help:      "Rows dropped by the outlier screen, per column",
			},
			[]string{"dataset", "column"},
		),
		ArtifactBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "artifact_bytes",
				Help:      "Size of each published artifact",
			},
			[]string{"dataset", "kind"},
		),
		CatalogErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_errors_total",
				Help:      "Failed writes to the run catalog",
			},
			[]string{"dataset"},
		),
	}
}

// Init creates the metrics and installs them as the global instance.
// Call this once at startup.
func Init(namespace string) *Metrics {
	defaultMetrics = New(namespace)
	return defaultMetrics
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Labels is a convenience type for metric labels.
type Labels struct {
	Dataset string
}

// ObserveStage records how long a stage took and whether it failed.
func (m *Metrics) ObserveStage(l Labels, stage string, seconds float64, failed bool) {
	m.StageDuration.WithLabelValues(l.Dataset, stage).Observe(seconds)
	if failed {
		m.StageFailures.WithLabelValues(l.Dataset, stage).Inc()
	}
}

// IncRuns counts a finished run.
func (m *Metrics) IncRuns(l Labels, status string, finishedUnix float64) {
	m.RunsTotal.WithLabelValues(l.Dataset, status).Inc()
	m.LastRunTimestamp.WithLabelValues(l.Dataset).Set(finishedUnix)
}

// SetTableRows sets the row count of one table ("raw", "full", "clean").
func (m *Metrics) SetTableRows(l Labels, table string, rows float64) {
	m.TableRows.WithLabelValues(l.Dataset, table).Set(rows)
}

// AddDuplicatesRemoved adds to the duplicate rows counter.
func (m *Metrics) AddDuplicatesRemoved(l Labels, rows float64) {
	m.DuplicatesRemoved.WithLabelValues(l.Dataset).Add(rows)
}

// AddOutliersRemoved adds to the outlier rows counter of a column.
func (m *Metrics) AddOutliersRemoved(l Labels, column string, rows float64) {
	m.OutliersRemoved.WithLabelValues(l.Dataset, column).Add(rows)
}

// SetArtifactBytes sets the size of a published artifact.
func (m *Metrics) SetArtifactBytes(l Labels, kind string, bytes float64) {
	m.ArtifactBytes.WithLabelValues(l.Dataset, kind).Set(bytes)
}

// IncCatalogErrors increments the catalog error counter.
func (m *Metrics) IncCatalogErrors(l Labels) {
	m.CatalogErrors.WithLabelValues(l.Dataset).Inc()
}
