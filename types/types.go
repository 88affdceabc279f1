package types

import "time"

// ---- Reader state (retained) ----

const (
	LevelRunning = "running"
	LevelStopped = "stopped"
)

type ReaderState struct {
	Level  string `json:"level"`  // "running" or "stopped"
	Status string `json:"status"` // freeform short code
	TS     int64  `json:"ts_ms"`
}

// ---- Diagnostics ----

// Overrun reports a cycle whose refresh pass ended after its deadline.
type Overrun struct {
	Cycle  uint64        `json:"cycle"`
	Over   time.Duration `json:"over_ns"`
	Period time.Duration `json:"period_ns"`
	TS     int64         `json:"ts_ms"`
}

// RefreshError reports one failed RefreshInputs call.
type RefreshError struct {
	Cycle      uint64 `json:"cycle"`
	Index      int    `json:"index"`
	Peripheral string `json:"peripheral"`
	Code       string `json:"code"`
	Error      string `json:"error,omitempty"`
	TS         int64  `json:"ts_ms"`
}
