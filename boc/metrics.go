package boc

import "github.com/prometheus/client_golang/prometheus"

// Metrics is an optional set of Prometheus collectors a Runtime reports
// scheduling activity to. Attaching one is opt-in (WithMetrics); a Runtime
// built without it never touches Prometheus at all, matching spec.md's
// framing of observability as an ambient concern layered on top of the
// scheduling core rather than part of it.
type Metrics struct {
	behaviorsScheduled prometheus.Counter
	behaviorErrors     prometheus.Counter
}

// NewMetrics builds a Metrics and registers its collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		behaviorsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boc_behaviors_scheduled_total",
			Help: "Total number of behaviors scheduled via When.",
		}),
		behaviorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boc_behavior_errors_total",
			Help: "Total number of behavior thunks that returned an error.",
		}),
	}
	reg.MustRegister(m.behaviorsScheduled, m.behaviorErrors)
	return m
}
