// Package metrics records chain run metrics in Prometheus format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opencode-ai/mermaid-agent/internal/chain"
)

const namespace = "mermaid_agent"

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Recorder is a chain.Observer that counts steps and runs and times
// generation calls. It owns its registry.
type Recorder struct {
	registry *prometheus.Registry

	steps      *prometheus.CounterVec
	runs       *prometheus.CounterVec
	generation *prometheus.HistogramVec
}

var _ chain.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_steps_total",
			Help:      "Chain steps by outcome.",
		}, []string{"chain", "status"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_runs_total",
			Help:      "Chain runs by outcome.",
		}, []string{"chain", "status"}),
		generation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time spent in the generation backend per step.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"chain"}),
	}
	r.registry.MustRegister(r.steps, r.runs, r.generation)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// StepStarted is a no-op; timing comes from StepFinished.
func (r *Recorder) StepStarted(chain.StepInfo, string) {}

// StepFinished records a successful step, and the run when it was the last.
func (r *Recorder) StepFinished(step chain.StepInfo, _ string, elapsed time.Duration) {
	name := chainLabel(step)
	r.steps.WithLabelValues(name, StatusOK).Inc()
	r.generation.WithLabelValues(name).Observe(elapsed.Seconds())
	if step.Last() {
		r.runs.WithLabelValues(name, StatusOK).Inc()
	}
}

// StepFailed records a failed step and run.
func (r *Recorder) StepFailed(step chain.StepInfo, _ error) {
	name := chainLabel(step)
	r.steps.WithLabelValues(name, StatusError).Inc()
	r.runs.WithLabelValues(name, StatusError).Inc()
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func chainLabel(step chain.StepInfo) string {
	if step.Chain == "" {
		return "unnamed"
	}
	return step.Chain
}
