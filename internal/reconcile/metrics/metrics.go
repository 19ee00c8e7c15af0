// Package metrics exposes Prometheus instrumentation for the reconciler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paydesk_reconcile_events_total",
			Help: "Processed payment events by type and outcome.",
		},
		[]string{"event_type", "outcome"},
	)

	unmatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paydesk_reconcile_unmatched_total",
			Help: "Events recorded without an attributable resource.",
		},
		[]string{"event_type"},
	)

	processDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paydesk_reconcile_duration_ms",
			Help:    "Reconciliation duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"event_type"},
	)
)

// RecordEvent counts one processed event.
func RecordEvent(eventType, outcome string) {
	eventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordUnmatched counts an event that could not be attributed.
func RecordUnmatched(eventType string) {
	unmatchedTotal.WithLabelValues(eventType).Inc()
}

// ObserveDuration records how long one event took to reconcile.
func ObserveDuration(eventType string, ms float64) {
	processDuration.WithLabelValues(eventType).Observe(ms)
}
