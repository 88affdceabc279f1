package timex

import (
	"context"
	"time"
)

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// ResetTimer stops t, drains a pending fire and re-arms it for d (negative d is 0).
func ResetTimer(t *time.Timer, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if !t.Stop() {
		DrainTimer(t)
	}
	t.Reset(d)
}

func DrainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}

// SleepUntil blocks until the wall clock reaches at or ctx is done.
// It reports false if ctx ended first.
func SleepUntil(ctx context.Context, t *time.Timer, at time.Time) bool {
	ResetTimer(t, time.Until(at))
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
