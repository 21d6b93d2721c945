package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestWebhookMetricsRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)

	m.IncEvent(OutcomeProcessed)
	m.IncEvent(OutcomeDuplicate)
	m.IncEvent(OutcomeDuplicate)
	m.IncEvent("")
	m.IncInventory(InventoryMismatched)
	m.IncPersistFailure()
	m.IncDeadLetter()
	m.IncReleaseFailure()
	m.ObserveDuration(150 * time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	if got := counterValue(families, "webhook_events_total", "outcome", OutcomeDuplicate); got != 2 {
		t.Fatalf("expected 2 duplicates, got %v", got)
	}
	if got := counterValue(families, "webhook_events_total", "outcome", "unknown"); got != 1 {
		t.Fatalf("expected empty outcome normalized to unknown, got %v", got)
	}
	if got := counterValue(families, "inventory_reconcile_total", "result", InventoryMismatched); got != 1 {
		t.Fatalf("expected 1 mismatch, got %v", got)
	}
	if got := counterValue(families, "order_persist_failures_total", "", ""); got != 1 {
		t.Fatalf("expected 1 persist failure, got %v", got)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() == "webhook_duration_seconds" {
			found = true
			if mf.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
				t.Fatalf("expected single duration sample")
			}
		}
	}
	if !found {
		t.Fatalf("duration histogram missing")
	}
}

func TestWebhookMetricsNilSafe(t *testing.T) {
	var m *WebhookMetrics
	m.IncEvent(OutcomeFailed)
	m.IncPersistFailure()
	m.ObserveDuration(time.Second)

	noop := NewWebhookMetrics(nil)
	noop.IncInventory(InventoryReconciled)
	noop.IncDeadLetter()
}

func counterValue(families []*dto.MetricFamily, name, label, value string) float64 {
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if label == "" {
				return metric.GetCounter().GetValue()
			}
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return -1
}
