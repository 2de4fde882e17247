// Package clock abstracts wall-clock reads and delayed callbacks so timer
// behavior can be driven deterministically in tests. Production code uses
// Real; tests use Fake and advance time explicitly.
package clock

import "time"

// Clock provides the current time and one-shot delayed callbacks.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// AfterFunc waits for d to elapse and then calls f in its own goroutine.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer represents a pending AfterFunc callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// was stopped before it fired.
	Stop() bool
}

// Real is a Clock backed by the time package. The zero value is ready to use.
type Real struct{}

// Now implements Clock.Now.
func (Real) Now() time.Time { return time.Now() }

// AfterFunc implements Clock.AfterFunc using time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// UnixMilli returns the milliseconds since epoch reported by c.
func UnixMilli(c Clock) int64 {
	return c.Now().UnixMilli()
}
