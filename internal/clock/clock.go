// Package clock isolates wall-clock access so schedulers and sequencers
// can be driven by synthetic time in tests.
package clock

import "time"

// Clock provides the current time and timed waits.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until done is closed, whichever comes first.
	// Returns false if the wait was cut short.
	Sleep(d time.Duration, done <-chan struct{}) bool
}

// System is the real wall clock.
type System struct{}

// NewSystem creates a system clock.
func NewSystem() *System { return &System{} }

// Now returns the current local time.
func (System) Now() time.Time { return time.Now() }

// Sleep waits for d, aborting early when done is closed.
func (System) Sleep(d time.Duration, done <-chan struct{}) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-done:
		return false
	}
}
