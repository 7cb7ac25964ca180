package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HTTPRequestsTotal           *prometheus.CounterVec
	HTTPRequestDuration         *prometheus.HistogramVec
	NotificationsSubmittedTotal *prometheus.CounterVec
	NotificationsProcessedTotal *prometheus.CounterVec
	ProviderSendDuration        *prometheus.HistogramVec
	RetriesScheduledTotal       *prometheus.CounterVec
	DeadLettersTotal            *prometheus.CounterVec
	QueueDepth                  *prometheus.GaugeVec
}

// NewMetrics registers the service metrics on reg. Pass
// prometheus.DefaultRegisterer in main and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		NotificationsSubmittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_submitted_total",
				Help: "Total number of notifications accepted for dispatch",
			},
			[]string{"channel", "queue"},
		),
		NotificationsProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_processed_total",
				Help: "Total number of delivery attempts by outcome",
			},
			[]string{"channel", "status"},
		),
		ProviderSendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_send_duration_seconds",
				Help:    "Duration of provider send calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		),
		RetriesScheduledTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retries_scheduled_total",
				Help: "Total number of retries scheduled after failed attempts",
			},
			[]string{"channel"},
		),
		DeadLettersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dead_letters_total",
				Help: "Total number of transactions moved to the dead letter queue",
			},
			[]string{"channel"},
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "queue_depth",
				Help: "Jobs waiting per queue",
			},
			[]string{"queue"},
		),
	}
}
