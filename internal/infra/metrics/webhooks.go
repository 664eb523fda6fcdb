package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		webhookSignatureFailuresTotal,
		webhookDuration,
	)
}

var (
	// outcome: processed|created|duplicate|ignored|failed|malformed
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Processor webhook deliveries by processor and outcome.",
		},
		[]string{"processor", "outcome"},
	)

	webhookSignatureFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_signature_failures_total",
			Help: "Webhook deliveries rejected for a missing or invalid signature.",
		},
		[]string{"processor"},
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_duration_seconds",
			Help:    "Duration of webhook handling in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"processor"},
	)
)

func IncWebhook(processor, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(processor), norm(outcome)).Inc()
}

func IncSignatureFailure(processor string) {
	webhookSignatureFailuresTotal.WithLabelValues(norm(processor)).Inc()
}

func ObserveWebhook(processor string, seconds float64) {
	webhookDuration.WithLabelValues(norm(processor)).Observe(seconds)
}
