// Package metrics exposes Prometheus collectors for operation activity.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "agentops"

// Metrics records operation, phase, and child activity. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	operationsStarted  *prometheus.CounterVec
	operationsFinished *prometheus.CounterVec
	phaseDuration      *prometheus.HistogramVec
	childrenActive     prometheus.Gauge
	childrenFinished   *prometheus.CounterVec
	answersSubmitted   *prometheus.CounterVec
}

// MustNew builds the collectors and registers them with reg. Collectors that
// are already registered are reused. Any other registration error panics.
func MustNew(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	return &Metrics{
		operationsStarted: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operation",
			Name:      "started_total",
			Help:      "Operations started, by type.",
		}, []string{"type"})),
		operationsFinished: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operation",
			Name:      "finished_total",
			Help:      "Operations finished, by type and final status.",
		}, []string{"type", "status"})),
		phaseDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "phase",
			Name:      "duration_seconds",
			Help:      "Time spent in each phase, by kind and outcome.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}, []string{"kind", "status"})),
		childrenActive: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "child",
			Name:      "active",
			Help:      "Agent tasks currently running.",
		})),
		childrenFinished: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "child",
			Name:      "finished_total",
			Help:      "Agent tasks finished, by outcome.",
		}, []string{"status"})),
		answersSubmitted: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "question",
			Name:      "answers_total",
			Help:      "Answers submitted to pending questions, by outcome.",
		}, []string{"outcome"})),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// OperationStarted counts a new operation.
func (m *Metrics) OperationStarted(opType string) {
	if m == nil {
		return
	}
	m.operationsStarted.WithLabelValues(opType).Inc()
}

// OperationFinished counts a finished operation.
func (m *Metrics) OperationFinished(opType, status string) {
	if m == nil {
		return
	}
	m.operationsFinished.WithLabelValues(opType, status).Inc()
}

// ObservePhase records how long a phase ran.
func (m *Metrics) ObservePhase(kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(kind, status).Observe(d.Seconds())
}

// ChildStarted marks an agent task as running.
func (m *Metrics) ChildStarted() {
	if m == nil {
		return
	}
	m.childrenActive.Inc()
}

// ChildFinished marks an agent task as done.
func (m *Metrics) ChildFinished(status string) {
	if m == nil {
		return
	}
	m.childrenActive.Dec()
	m.childrenFinished.WithLabelValues(status).Inc()
}

// AnswerSubmitted counts an answer delivery attempt.
func (m *Metrics) AnswerSubmitted(delivered bool) {
	if m == nil {
		return
	}
	outcome := "delivered"
	if !delivered {
		outcome = "rejected"
	}
	m.answersSubmitted.WithLabelValues(outcome).Inc()
}
