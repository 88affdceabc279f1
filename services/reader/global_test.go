package reader

import (
	"sync/atomic"
	"testing"
	"time"
)

// overlapDetector records the highest number of concurrent RefreshInputs calls.
type overlapDetector struct {
	inflight atomic.Int32
	max      atomic.Int32
	calls    atomic.Int64
}

func (o *overlapDetector) RefreshInputs() error {
	n := o.inflight.Add(1)
	for {
		m := o.max.Load()
		if n <= m || o.max.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	o.calls.Add(1)
	o.inflight.Add(-1)
	return nil
}

func TestStopReadingWithoutBegin(t *testing.T) {
	StopReading()
	StopReading()
	if Active() {
		t.Fatal("no reader should be active")
	}
}

func TestBeginReadingTwiceRunsOneLoop(t *testing.T) {
	t.Cleanup(StopReading)

	const period = 10 * time.Millisecond
	det := &overlapDetector{}
	cfg := Config{Name: "singleton", Period: period, FixedRate: true}

	BeginReading([]Peripheral{det}, cfg)
	BeginReading([]Peripheral{det}, cfg)
	if !Active() {
		t.Fatal("expected an active reader")
	}

	time.Sleep(205 * time.Millisecond)
	StopReading()

	if m := det.max.Load(); m != 1 {
		t.Fatalf("saw %d concurrent refreshes, want 1", m)
	}
	// One loop at 10ms manages about 20 calls; two would manage about 40.
	if n := det.calls.Load(); n > 24 {
		t.Fatalf("%d refreshes in 205ms suggests more than one loop", n)
	}
	if Active() {
		t.Fatal("reader still active after StopReading")
	}
}

func TestStopReadingIsFinal(t *testing.T) {
	t.Cleanup(StopReading)

	det := &overlapDetector{}
	BeginReading([]Peripheral{det})
	waitFor(t, "refreshes", time.Second, func() bool { return det.calls.Load() >= 3 })
	StopReading()

	n := det.calls.Load()
	time.Sleep(5 * DefaultPeriod)
	if got := det.calls.Load(); got != n {
		t.Fatalf("refreshes after StopReading: %d -> %d", n, got)
	}
}

func TestBeginReadingAfterStop(t *testing.T) {
	t.Cleanup(StopReading)

	first := &overlapDetector{}
	BeginReading([]Peripheral{first}, Config{Name: "first", FixedRate: true})
	StopReading()

	second := &overlapDetector{}
	BeginReading([]Peripheral{second}, Config{Name: "second", FixedRate: true})
	waitFor(t, "second reader", time.Second, func() bool { return second.calls.Load() > 0 })
	n := first.calls.Load()
	StopReading()

	if first.calls.Load() != n {
		t.Fatal("first reader refreshed after being replaced")
	}
}
