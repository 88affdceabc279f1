package reader

import (
	"context"
	"sync"

	"k8s.io/klog/v2"
)

// The process-wide reader. activeMu is held across start and across stop+join,
// so concurrent BeginReading/StopReading calls are serialised.
var (
	activeMu sync.Mutex
	active   *Poller
)

// BeginReading starts the process-wide reader over prps. If a reader is already
// active the call does nothing. An optional Config overrides the defaults.
//
// The loop goroutine does not hold the process open; callers that need a clean
// shutdown call StopReading.
func BeginReading(prps []Peripheral, cfg ...Config) {
	activeMu.Lock()
	defer activeMu.Unlock()

	if active != nil {
		klog.V(1).Info("[reader] already reading, ignoring BeginReading")
		return
	}
	var c Config
	if len(cfg) > 0 {
		c = cfg[0]
	}
	p := New(prps, c)
	if err := p.Start(context.Background()); err != nil {
		klog.Errorf("[reader] start failed: %v", err)
		return
	}
	active = p
}

// StopReading stops the process-wide reader and waits for its loop to exit.
// No refreshes happen after it returns. Without an active reader it does nothing.
// It must not be called from a peripheral's RefreshInputs.
func StopReading() {
	activeMu.Lock()
	defer activeMu.Unlock()

	if active == nil {
		return
	}
	active.Stop()
	active = nil
}

// Active reports whether a process-wide reader is running.
func Active() bool {
	activeMu.Lock()
	defer activeMu.Unlock()
	return active != nil
}
