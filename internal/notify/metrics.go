package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "paydesk_notifications_total",
		Help: "Notification dispatch attempts by outcome.",
	},
	[]string{"outcome"},
)

func recordNotification(outcome string) {
	notificationsTotal.WithLabelValues(outcome).Inc()
}
