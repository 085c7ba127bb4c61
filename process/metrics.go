package process

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus-compatible metrics collection for process
// execution, namespaced "plumgo_":
//
//  1. inflight_processes (gauge): processes currently non-terminal.
//  2. step_latency_ms (histogram): per-step execute() duration, labeled
//     by state label and outcome.
//  3. interrupts_total (counter): pause/kill interrupt actions applied,
//     labeled by kind.
//  4. checkpoints_total (counter): checkpoints saved, labeled by
//     outcome (ok/error).
//
// Thread-safe: all methods use the underlying Prometheus client's own
// atomic operations.
type Metrics struct {
	inflightProcesses prometheus.Gauge
	stepLatency       *prometheus.HistogramVec
	interrupts        *prometheus.CounterVec
	checkpoints       *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewMetrics registers and returns process-execution metrics against the
// given registry. Pass prometheus.DefaultRegisterer for the global
// registry, or a fresh *prometheus.Registry for test isolation.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		enabled: true,
		inflightProcesses: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "plumgo",
			Name:      "inflight_processes",
			Help:      "Current number of non-terminal processes",
		}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plumgo",
			Name:      "step_latency_ms",
			Help:      "Per-step execute() duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"state_label", "outcome"}),
		interrupts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plumgo",
			Name:      "interrupts_total",
			Help:      "Pause/kill interrupt actions applied to processes",
		}, []string{"kind"}),
		checkpoints: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plumgo",
			Name:      "checkpoints_total",
			Help:      "Checkpoints saved by persisters, labeled by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) RecordStepLatency(stateLabel Label, d time.Duration, outcome string) {
	if !m.isEnabled() {
		return
	}
	m.stepLatency.WithLabelValues(string(stateLabel), outcome).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) IncrementInterrupts(kind InterruptionKind) {
	if !m.isEnabled() {
		return
	}
	m.interrupts.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) IncrementCheckpoints(outcome string) {
	if !m.isEnabled() {
		return
	}
	m.checkpoints.WithLabelValues(outcome).Inc()
}

// IncrementInflightProcesses marks one more process as non-terminal.
// Call once per process, when its step executor starts running.
func (m *Metrics) IncrementInflightProcesses() {
	if !m.isEnabled() {
		return
	}
	m.inflightProcesses.Inc()
}

// DecrementInflightProcesses marks a process as no longer non-terminal.
// Call exactly once per process that called IncrementInflightProcesses,
// when it reaches a terminal state.
func (m *Metrics) DecrementInflightProcesses() {
	if !m.isEnabled() {
		return
	}
	m.inflightProcesses.Dec()
}

func (m *Metrics) isEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Disable stops metric recording (useful for testing).
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// Enable resumes metric recording after Disable.
func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}
