package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterTimerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterTimerMetrics(reg)
	TickCounter.Inc()
	TickAbortCounter.Inc()
	ExpiryCounter.Inc()
	ClaimCounter.Inc()
	StoreErrorCounter.Inc()
	RemainingGauge.Set(42)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) < 6 {
		t.Fatalf("expected 6 metric families, got %d", len(mfs))
	}
}

func TestRegisterTimerMetricsDuplicatePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterTimerMetrics(reg)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	RegisterTimerMetrics(reg)
}
