package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the per-run counters. Each Orchestrator owns its own registry
// so the textfile only carries labprov series.
type Metrics struct {
	registry *prometheus.Registry

	devices      *prometheus.CounterVec
	runDuration  prometheus.Gauge
	lastRunEpoch prometheus.Gauge
}

// NewMetrics registers the labprov metrics on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		devices: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labprov_devices_total",
				Help: "Devices processed, by pipeline stage and outcome.",
			},
			[]string{"stage", "outcome"},
		),
		runDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "labprov_run_duration_seconds",
				Help: "Wall time of the last labprov run.",
			},
		),
		lastRunEpoch: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "labprov_last_run_timestamp_seconds",
				Help: "Unix time the last labprov run finished.",
			},
		),
	}
}

func (m *Metrics) count(stage, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.devices.With(prometheus.Labels{"stage": stage, "outcome": outcome}).Add(float64(n))
}

func (m *Metrics) finish(started time.Time) {
	if m == nil {
		return
	}
	m.runDuration.Set(time.Since(started).Seconds())
	m.lastRunEpoch.Set(float64(time.Now().Unix()))
}

// WriteTextfile dumps the registry in node-exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
