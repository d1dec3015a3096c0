package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(notificationsTotal) }

var notificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Reissue notifications by outcome.",
	},
	[]string{"result"}, // 'sent', 'failed', 'dropped'
)

func IncNotification(result string) {
	notificationsTotal.WithLabelValues(norm(result)).Inc()
}
