package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Webhook outcomes recorded on webhook_events_total.
const (
	OutcomeProcessed        = "processed"
	OutcomeDuplicate        = "duplicate"
	OutcomeIgnored          = "ignored"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeFailed           = "failed"
)

// Inventory results recorded on inventory_reconcile_total.
const (
	InventoryReconciled = "reconciled"
	InventorySkipped    = "skipped"
	InventoryMismatched = "mismatched"
	InventoryFailed     = "failed"
)

// WebhookMetrics records the fulfillment pipeline's counters.
type WebhookMetrics struct {
	events          *prometheus.CounterVec
	duration        prometheus.Histogram
	inventory       *prometheus.CounterVec
	persistFailures prometheus.Counter
	deadLetters     prometheus.Counter
	releaseFailures prometheus.Counter
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	m := &WebhookMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Payment webhook deliveries by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webhook_duration_seconds",
			Help:    "Time spent handling a payment webhook delivery.",
			Buckets: prometheus.DefBuckets,
		}),
		inventory: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_reconcile_total",
			Help: "Per-item inventory reconciliation results.",
		}, []string{"result"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "order_persist_failures_total",
			Help: "Orders that could not be written.",
		}),
		deadLetters: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "order_dead_letters_total",
			Help: "Dead-letter rows recorded for unwritten orders.",
		}),
		releaseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_release_failures_total",
			Help: "Reservation release calls that failed.",
		}),
	}
	reg.MustRegister(m.events, m.duration, m.inventory, m.persistFailures, m.deadLetters, m.releaseFailures)
	return m
}

func (m *WebhookMetrics) IncEvent(outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *WebhookMetrics) ObserveDuration(d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

func (m *WebhookMetrics) IncInventory(result string) {
	if m == nil || m.inventory == nil {
		return
	}
	m.inventory.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *WebhookMetrics) IncPersistFailure() {
	if m == nil || m.persistFailures == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *WebhookMetrics) IncDeadLetter() {
	if m == nil || m.deadLetters == nil {
		return
	}
	m.deadLetters.Inc()
}

func (m *WebhookMetrics) IncReleaseFailure() {
	if m == nil || m.releaseFailures == nil {
		return
	}
	m.releaseFailures.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
