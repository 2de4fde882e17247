package timer

import (
	"time"

	"github.com/mirkobrombin/go-stretch/v1/clock"
)

// Task is a pending wake-up returned by a Scheduler.
type Task interface {
	// Cancel prevents the wake-up from running if it has not started yet.
	Cancel()
}

// Scheduler arms one-shot wake-ups.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Task
}

// ClockScheduler schedules wake-ups on a clock.Clock.
type ClockScheduler struct {
	clock clock.Clock
}

// NewScheduler returns a Scheduler backed by c.
func NewScheduler(c clock.Clock) *ClockScheduler {
	return &ClockScheduler{clock: c}
}

type clockTask struct {
	t clock.Timer
}

func (t clockTask) Cancel() { t.t.Stop() }

// Schedule implements Scheduler.Schedule.
func (s *ClockScheduler) Schedule(delay time.Duration, fn func()) Task {
	return clockTask{t: s.clock.AfterFunc(delay, fn)}
}
