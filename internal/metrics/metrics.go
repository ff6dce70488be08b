// Package metrics holds the prometheus instruments for synthesis runs.
// All methods are safe on a nil *Metrics so callers can leave it unset.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Registry *prometheus.Registry

	runs           *prometheus.CounterVec
	validations    *prometheus.CounterVec
	repairs        prometheus.Counter
	oracleCalls    *prometheus.CounterVec
	iterations     prometheus.Histogram
	compileSeconds prometheus.Histogram
}

// New registers every instrument on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tbsynth",
			Name:      "runs_total",
			Help:      "Synthesis runs by terminal state.",
		}, []string{"outcome"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tbsynth",
			Name:      "validations_total",
			Help:      "Artifact validations by result.",
		}, []string{"result"}),
		repairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tbsynth",
			Name:      "repairs_total",
			Help:      "Repair requests issued.",
		}),
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tbsynth",
			Name:      "oracle_calls_total",
			Help:      "Oracle requests by worker and status.",
		}, []string{"worker", "status"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tbsynth",
			Name:      "run_iterations",
			Help:      "Validations performed per run.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		compileSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tbsynth",
			Name:      "compile_seconds",
			Help:      "Wall time of external compiler invocations.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.Registry.MustRegister(m.runs, m.validations, m.repairs, m.oracleCalls, m.iterations, m.compileSeconds)
	return m
}

func (m *Metrics) ObserveRun(outcome string, iterations int) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.iterations.Observe(float64(iterations))
}

func (m *Metrics) ObserveValidation(result string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRepair() {
	if m == nil {
		return
	}
	m.repairs.Inc()
}

func (m *Metrics) ObserveOracle(worker string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.oracleCalls.WithLabelValues(worker, status).Inc()
}

func (m *Metrics) ObserveCompile(d time.Duration) {
	if m == nil {
		return
	}
	m.compileSeconds.Observe(d.Seconds())
}
