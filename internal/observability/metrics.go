package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of one jsbundle process. Each Metrics
// owns its registry so that builds and tests never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	// Build metrics
	buildsTotal   *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec
	lastBuild     prometheus.Gauge

	// Graph metrics
	modulesTotal  *prometheus.CounterVec
	warningsTotal *prometheus.CounterVec

	// Output metrics
	bundleBytes            *prometheus.GaugeVec
	storageOperationsTotal *prometheus.CounterVec
	storageBytesTotal      *prometheus.CounterVec
}

// NewMetrics creates and registers all bundler metrics on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		buildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsbundle_builds_total",
				Help: "Total number of bundle builds",
			},
			[]string{"status"},
		),
		buildDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsbundle_build_duration_seconds",
				Help:    "End-to-end bundle build latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsbundle_stage_duration_seconds",
				Help:    "Pipeline stage latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"stage"},
		),
		lastBuild: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "jsbundle_last_build_timestamp_seconds",
				Help: "Unix time of the last completed build",
			},
		),

		modulesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsbundle_modules_total",
				Help: "Total number of modules bundled, by module system",
			},
			[]string{"system"},
		),
		warningsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsbundle_warnings_total",
				Help: "Total number of recoverable build warnings",
			},
			[]string{"kind"},
		),

		bundleBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jsbundle_bundle_size_bytes",
				Help: "Size of the last emitted bundle in bytes",
			},
			[]string{"variant"},
		),
		storageOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsbundle_storage_operations_total",
				Help: "Total number of artifact storage operations",
			},
			[]string{"operation", "provider", "status"},
		),
		storageBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsbundle_storage_bytes_total",
				Help: "Total bytes written to artifact storage",
			},
			[]string{"operation", "provider"},
		),
	}
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordBuild records a finished build. All Record methods are no-ops on a
// nil *Metrics.
func (m *Metrics) RecordBuild(duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := statusOf(err)
	m.buildsTotal.WithLabelValues(status).Inc()
	m.buildDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.lastBuild.SetToCurrentTime()
}

// RecordStage records the duration of one pipeline stage
func (m *Metrics) RecordStage(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordModule counts a bundled module
func (m *Metrics) RecordModule(system string) {
	if m == nil {
		return
	}
	m.modulesTotal.WithLabelValues(system).Inc()
}

// RecordWarning counts a recoverable warning
func (m *Metrics) RecordWarning(kind string) {
	if m == nil {
		return
	}
	m.warningsTotal.WithLabelValues(kind).Inc()
}

// SetBundleSize records the size of an emitted bundle variant ("plain" or
// "minified")
func (m *Metrics) SetBundleSize(variant string, size int) {
	if m == nil {
		return
	}
	m.bundleBytes.WithLabelValues(variant).Set(float64(size))
}

// RecordStorageOperation records an artifact storage operation
func (m *Metrics) RecordStorageOperation(operation, provider string, bytes int64, err error) {
	if m == nil {
		return
	}
	m.storageOperationsTotal.WithLabelValues(operation, provider, statusOf(err)).Inc()
	if err == nil {
		m.storageBytesTotal.WithLabelValues(operation, provider).Add(float64(bytes))
	}
}

// WriteTextfile writes the current metric values in the text exposition
// format, for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
