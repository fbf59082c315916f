// Package metrics counts runs and lifecycle operations. The CLI is short
// lived, so metrics are written to a node_exporter textfile rather than
// served.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zpdzap/katarunner/internal/identity"
)

// Outcomes of a lifecycle operation.
const (
	OutcomeOK          = "ok"
	OutcomeBadArgument = "bad_argument"
	OutcomeError       = "error"
)

// Recorder holds the runner's metrics in a private registry. A nil
// *Recorder records nothing.
type Recorder struct {
	registry  *prometheus.Registry
	runs      *prometheus.CounterVec
	duration  prometheus.Histogram
	lifecycle *prometheus.CounterVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "katarunner_runs_total",
				Help: "Runs of cyber-dojo.sh by verdict colour.",
			},
			[]string{"colour"},
		),
		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "katarunner_run_duration_seconds",
				Help:    "Wall-clock time of runs, including timed out ones.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
		),
		lifecycle: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "katarunner_lifecycle_total",
				Help: "Kata and avatar lifecycle operations by outcome.",
			},
			[]string{"op", "outcome"},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Run records one finished run.
func (r *Recorder) Run(colour string, d time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(colour).Inc()
	r.duration.Observe(d.Seconds())
}

// Lifecycle records op finishing with err.
func (r *Recorder) Lifecycle(op string, err error) {
	if r == nil {
		return
	}
	r.lifecycle.WithLabelValues(op, Outcome(err)).Inc()
}

// Outcome classifies err for the outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case identity.IsBadArgument(err):
		return OutcomeBadArgument
	default:
		return OutcomeError
	}
}

// WriteTextfile writes every metric to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
