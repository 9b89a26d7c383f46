// internal/schedule/schedule.go
//
// Timer abstraction used to drive timed playback.
// Responsibilities:
//   - Scheduler: run a callback once after a delay, cancellable via Timer.Stop.
//   - Real: wall-clock implementation backed by time.AfterFunc.
//   - Manual: virtual clock advanced explicitly (tests, step-by-step hosts).
//
// Callbacks never block the caller of AfterFunc; suspension between playback
// steps is always a scheduled callback, never a sleeping goroutine.

package schedule

import "time"

// Timer is a handle to a pending callback.
type Timer interface {
	// Stop prevents the callback from running.
	// Returns false if the callback already ran or was already stopped.
	Stop() bool
}

// Scheduler runs fn once after d has elapsed.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Real schedules callbacks on the wall clock.
type Real struct{}

// AfterFunc implements Scheduler using time.AfterFunc.
func (Real) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
