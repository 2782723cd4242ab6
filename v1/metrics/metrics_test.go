package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterCoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterCoreMetrics(reg)
	RemoteAcquireCounter.WithLabelValues("memory").Inc()
	RemoteContendedCounter.WithLabelValues("memory").Inc()
	RemoteReleaseCounter.WithLabelValues("memory").Inc()
	RemoteErrorCounter.WithLabelValues("memory").Inc()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) < 4 {
		t.Fatalf("expected metrics registered")
	}
}

func TestRegisterCoreMetricsDuplicatePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterCoreMetrics(reg)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	RegisterCoreMetrics(reg)
}

func TestNewLockLabelsByName(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewLock(reg, "a")
	b := NewLock(reg, "b")
	a.Acquired.WithLabelValues("spin").Inc()
	b.TryFailed.Inc()
	a.Held.Set(1)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() != "spin_lock_acquired_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "lock" && lp.GetValue() == "a" && m.GetCounter().GetValue() == 1 {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatal("expected acquisition counter for lock a")
	}
}

func TestNewLockDuplicateNamePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewLock(reg, "dup")
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate lock name")
		}
	}()
	NewLock(reg, "dup")
}
