package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. Counters are
// labelled only where operators actually slice (event type, consumer group).
type Metrics struct {
	ProposalsCreated prometheus.Counter
	EventsPublished  *prometheus.CounterVec
	PublishFailures  prometheus.Counter
	HandlerRetries   *prometheus.CounterVec
	DeadLettered     *prometheus.CounterVec
	HandleDuration   *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		ProposalsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ipm_proposals_created_total",
			Help: "Total number of proposals created",
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ipm_events_published_total",
			Help: "Domain events published to the event topic",
		}, []string{"type"}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ipm_publish_failures_total",
			Help: "Channel writes that failed and surfaced a publish error",
		}),
		HandlerRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ipm_consumer_retries_total",
			Help: "Message handler retries per consumer group",
		}, []string{"group"}),
		DeadLettered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ipm_consumer_dead_lettered_total",
			Help: "Messages republished to the dead-letter topic per consumer group",
		}, []string{"group"}),
		HandleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ipm_consumer_handle_seconds",
			Help:    "Time spent in message handlers, including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"group"}),
	}
}
