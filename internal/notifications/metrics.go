package notifications

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tracelight"

var (
	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Total notification send attempts by outcome",
		},
		[]string{"channel_type", "status"},
	)

	notificationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "skipped_total",
			Help:      "Notifications suppressed before sending",
		},
		[]string{"channel_type", "reason"},
	)

	notificationSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "send_duration_seconds",
			Help:      "Time to deliver one webhook call",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel_type"},
	)
)

func recordSent(channelType, status string) {
	notificationsSent.WithLabelValues(channelType, status).Inc()
}

func recordSkipped(channelType, reason string) {
	notificationsSkipped.WithLabelValues(channelType, reason).Inc()
}

func recordSendDuration(channelType string, d time.Duration) {
	notificationSendDuration.WithLabelValues(channelType).Observe(d.Seconds())
}
