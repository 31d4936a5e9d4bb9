// Package metrics exposes run counters on a dedicated Prometheus registry.
// A scan is a short-lived process, so the registry is written out as a
// node_exporter textfile after each run instead of being served over HTTP.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "prompthunter"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ItemsIngested       prometheus.Counter
	Duplicates          prometheus.Counter
	SourceRequests      prometheus.Counter
	ClassificationCalls prometheus.Counter
	SourceOutcomes      *prometheus.CounterVec
	QuotaUsed           *prometheus.GaugeVec
	QuotaRemaining      *prometheus.GaugeVec
	RunDuration         prometheus.Histogram
	LastRunTimestamp    prometheus.Gauge
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ItemsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_ingested_total",
			Help:      "Qualifying items inserted into the store",
		}),
		Duplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_duplicate_total",
			Help:      "Qualifying items skipped because they were already stored",
		}),
		SourceRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Requests charged to the source API quota",
		}),
		ClassificationCalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_calls_total",
			Help:      "Calls made to the classification service",
		}),
		SourceOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_passes_total",
			Help:      "Source passes by outcome",
		}, []string{"status"}),
		QuotaUsed: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_used",
			Help:      "Units used in the current monthly window",
		}, []string{"dimension"}),
		QuotaRemaining: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_remaining",
			Help:      "Units left in the current monthly window",
		}, []string{"dimension"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a scan run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSource records one source pass
func (m *Metrics) ObserveSource(status string, requests, calls, ingested, duplicates int) {
	if m == nil {
		return
	}
	m.SourceOutcomes.WithLabelValues(status).Inc()
	m.SourceRequests.Add(float64(requests))
	m.ClassificationCalls.Add(float64(calls))
	m.ItemsIngested.Add(float64(ingested))
	m.Duplicates.Add(float64(duplicates))
}

// SetQuota publishes a quota window
func (m *Metrics) SetQuota(dimension string, used, remaining int) {
	if m == nil {
		return
	}
	m.QuotaUsed.WithLabelValues(dimension).Set(float64(used))
	m.QuotaRemaining.WithLabelValues(dimension).Set(float64(remaining))
}

// ObserveRun records a finished run
func (m *Metrics) ObserveRun(duration time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(duration.Seconds())
	m.LastRunTimestamp.Set(float64(finishedAt.Unix()))
}

// WriteTextfile writes the registry in the text exposition format.
// The write is atomic so the textfile collector never reads a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
