package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paydesk_ratelimit_checks_total",
		Help: "Rate limit checks by preset and outcome.",
	}, []string{"preset", "outcome"})

	fallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paydesk_ratelimit_fallback_total",
		Help: "Checks served by the in-process fallback store.",
	})

	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paydesk_ratelimit_breaker_open",
		Help: "1 when the counter-store circuit breaker is open.",
	})

	checkDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paydesk_ratelimit_check_duration_ms",
		Help:    "Latency of rate limit checks in milliseconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
	})
)

func RecordCheck(preset string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	checksTotal.WithLabelValues(preset, outcome).Inc()
}

func RecordFallback() { fallbackTotal.Inc() }

func SetBreakerOpen(open bool) {
	if open {
		breakerState.Set(1)
		return
	}
	breakerState.Set(0)
}

func ObserveCheckDuration(ms float64) { checkDurationMs.Observe(ms) }
