// Package metrics holds the Prometheus instruments exposed on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "daymark_events_created_total",
			Help: "Total number of events created",
		},
	)

	EventsDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "daymark_events_deleted_total",
			Help: "Total number of events soft deleted",
		},
	)

	EventsRestoredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "daymark_events_restored_total",
			Help: "Total number of soft deleted events restored",
		},
	)

	NotificationsSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "daymark_notifications_sent_total",
			Help: "Total number of event invitations sent",
		},
	)

	NotificationsResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daymark_notifications_resolved_total",
			Help: "Total number of invitations resolved, by outcome",
		},
		[]string{"status"},
	)

	EventsPastRetention = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "daymark_events_past_retention",
			Help: "Soft deleted events currently past the retention horizon",
		},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "daymark_http_request_duration_seconds",
			Help:    "Duration of HTTP requests, by route and status class",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)
)

// Register registers every instrument with the default registry.
// Call once at startup.
func Register() {
	prometheus.MustRegister(EventsCreatedTotal)
	prometheus.MustRegister(EventsDeletedTotal)
	prometheus.MustRegister(EventsRestoredTotal)
	prometheus.MustRegister(NotificationsSentTotal)
	prometheus.MustRegister(NotificationsResolvedTotal)
	prometheus.MustRegister(EventsPastRetention)
	prometheus.MustRegister(RequestDuration)
}
