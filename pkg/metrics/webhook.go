package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records inbound gateway webhook processing outcomes.
type WebhookMetrics struct {
	duration *prometheus.HistogramVec
	outcome  *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "duration_seconds",
		Help:      "Duration of webhook handling in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})
	outcome := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Webhook events by provider and outcome.",
	}, []string{"provider", "outcome"})
	reg.MustRegister(duration, outcome)
	return &WebhookMetrics{
		duration: duration,
		outcome:  outcome,
	}
}

// ObserveDuration records handling time for the provider.
func (w *WebhookMetrics) ObserveDuration(provider string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(provider)).Observe(duration.Seconds())
}

// IncOutcome increments the outcome counter (processed, duplicate, invalid,
// failed).
func (w *WebhookMetrics) IncOutcome(provider, outcome string) {
	if w == nil || w.outcome == nil {
		return
	}
	w.outcome.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}
