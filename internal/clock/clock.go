// Package clock lets the flush timer run against real time in production
// and against a hand-advanced clock in tests.
package clock

import "time"

// Clock is the part of the time package the dispatcher needs.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for duration d, then calls f. The returned Timer
	// cancels the pending call with Stop.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer represents a scheduled call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the Timer from firing. Returns true if the call stops the
// timer, false if it has already fired or been stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }
