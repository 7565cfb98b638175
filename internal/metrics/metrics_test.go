package metrics

import (
	"sync"
	"testing"
)

func TestCounters_Increment(t *testing.T) {
	t.Parallel()

	c := NewCounters()

	c.EmailProcessed()
	c.EmailProcessed()
	c.EmailFailed()
	c.DuplicateDelivery()
	c.DuplicateDelivery()
	c.DuplicateDelivery()
	c.IntegrityAnomaly()

	if got := c.Processed(); got != 2 {
		t.Fatalf("expected 2 processed, got %d", got)
	}
	if got := c.Failed(); got != 1 {
		t.Fatalf("expected 1 failed, got %d", got)
	}
	if got := c.Duplicates(); got != 3 {
		t.Fatalf("expected 3 duplicates, got %d", got)
	}
	if got := c.Anomalies(); got != 1 {
		t.Fatalf("expected 1 anomaly, got %d", got)
	}
}

func TestCounters_ConcurrentIncrements(t *testing.T) {
	t.Parallel()

	c := NewCounters()

	const goroutines = 8
	const perGoroutine = 100

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				c.EmailProcessed()
			}
		}()
	}
	wg.Wait()

	if got := c.Processed(); got != goroutines*perGoroutine {
		t.Fatalf("expected %d processed, got %d", goroutines*perGoroutine, got)
	}
}

func TestNoop_DoesNothing(t *testing.T) {
	t.Parallel()

	var n Noop
	n.EmailProcessed()
	n.EmailFailed()
	n.DuplicateDelivery()
	n.IntegrityAnomaly()
}
