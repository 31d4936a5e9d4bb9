package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value returns the first sample of a gathered family, matching label value when set
func value(t *testing.T, m *Metrics, name, label string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			if label != "" {
				matched := false
				for _, lp := range metric.GetLabel() {
					if lp.GetValue() == label {
						matched = true
					}
				}
				if !matched {
					continue
				}
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	t.Fatalf("metric %s{%s} not found", name, label)
	return 0
}

func TestObserveSource(t *testing.T) {
	m := New()
	m.ObserveSource("scanned", 2, 200, 2, 1)
	m.ObserveSource("skipped", 0, 0, 0, 0)

	assert.Equal(t, 2.0, value(t, m, "prompthunter_source_requests_total", ""))
	assert.Equal(t, 200.0, value(t, m, "prompthunter_classification_calls_total", ""))
	assert.Equal(t, 2.0, value(t, m, "prompthunter_items_ingested_total", ""))
	assert.Equal(t, 1.0, value(t, m, "prompthunter_items_duplicate_total", ""))
	assert.Equal(t, 1.0, value(t, m, "prompthunter_source_passes_total", "skipped"))
}

func TestSetQuota(t *testing.T) {
	m := New()
	m.SetQuota("source_api", 12, 83)

	assert.Equal(t, 12.0, value(t, m, "prompthunter_quota_used", "source_api"))
	assert.Equal(t, 83.0, value(t, m, "prompthunter_quota_remaining", "source_api"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSource("scanned", 1, 1, 1, 1)
	m.SetQuota("source_api", 1, 1)
	m.ObserveRun(time.Second, time.Now())
	assert.NoError(t, m.WriteTextfile("/nonexistent/metrics.prom"))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveSource("scanned", 3, 10, 4, 0)
	m.ObserveRun(42*time.Second, time.Unix(1760000000, 0))

	path := filepath.Join(t.TempDir(), "textfile", "prompthunter.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "prompthunter_source_requests_total 3")
	assert.Contains(t, string(data), `prompthunter_source_passes_total{status="scanned"} 1`)
	assert.Contains(t, string(data), "prompthunter_run_duration_seconds_count 1")
}
