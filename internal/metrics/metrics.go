// Package metrics exposes Prometheus collectors for nesting runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "slabnest"

// Outcome labels for finished runs.
const (
	OutcomeCompleted = "completed"
	OutcomeStopped   = "stopped"
	OutcomeFailed    = "failed"
)

// Recorder owns the collectors for one registry. It satisfies the engine
// observer and the controller recorder interfaces.
type Recorder struct {
	runsStarted  prometheus.Counter
	runsFinished *prometheus.CounterVec
	runDuration  prometheus.Histogram
	activeRuns   prometheus.Gauge
	weldDuration *prometheus.HistogramVec
	candidates   *prometheus.CounterVec
	instances    *prometheus.CounterVec
	efficiency   prometheus.Gauge
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Nesting runs started.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Nesting runs finished, by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of nesting runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Nesting runs currently executing.",
		}),
		weldDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weld_duration_seconds",
			Help:      "Time spent welding one part, by closed result.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"closed"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Placement candidates resolved, by result.",
		}, []string{"result"}),
		instances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instances_total",
			Help:      "Units reported in finished runs, by status.",
		}, []string{"status"}),
		efficiency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_efficiency_percent",
			Help:      "Material usage of the last completed run.",
		}),
	}

	for _, c := range []prometheus.Collector{
		r.runsStarted, r.runsFinished, r.runDuration, r.activeRuns,
		r.weldDuration, r.candidates, r.instances, r.efficiency,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// PartWelded records the time spent welding one part.
func (r *Recorder) PartWelded(closed bool, elapsed time.Duration) {
	label := "false"
	if closed {
		label = "true"
	}
	r.weldDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// CandidateResolved counts one resolved placement candidate.
func (r *Recorder) CandidateResolved(placed bool) {
	if placed {
		r.candidates.WithLabelValues("placed").Inc()
		return
	}
	r.candidates.WithLabelValues("unplaced").Inc()
}

// RunStarted marks the beginning of a run.
func (r *Recorder) RunStarted() {
	r.runsStarted.Inc()
	r.activeRuns.Inc()
}

// RunFinished marks the end of a run with its outcome.
func (r *Recorder) RunFinished(outcome string, elapsed time.Duration) {
	r.activeRuns.Dec()
	r.runsFinished.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(elapsed.Seconds())
}

// RunResult records the unit counts and efficiency of a completed run.
func (r *Recorder) RunResult(placed, failed, skipped int, efficiency float64) {
	r.instances.WithLabelValues("placed").Add(float64(placed))
	r.instances.WithLabelValues("failed").Add(float64(failed))
	r.instances.WithLabelValues("skipped").Add(float64(skipped))
	r.efficiency.Set(efficiency)
}
