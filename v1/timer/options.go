package timer

import (
	"log/slog"
	"time"

	"github.com/mirkobrombin/go-stretch/v1/clock"
)

// DefaultInterval is the period used when no interval source is given.
const DefaultInterval = 60 * time.Minute

// Option configures a Timer or Engine.
type Option func(*options)

type options struct {
	clock    clock.Clock
	sched    Scheduler
	id       string
	interval func() time.Duration
	logger   *slog.Logger
}

// WithClock sets the clock. It also drives the default scheduler.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithScheduler overrides the scheduler used for wake-ups.
func WithScheduler(s Scheduler) Option {
	return func(o *options) {
		o.sched = s
	}
}

// WithIdentity fixes the instance id instead of generating one.
func WithIdentity(id string) Option {
	return func(o *options) {
		o.id = id
	}
}

// WithInterval sets the interval source read on every Start. It is a
// function so configuration changes apply to the next running period.
func WithInterval(fn func() time.Duration) Option {
	return func(o *options) {
		o.interval = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.Real{}
	}
	if o.sched == nil {
		o.sched = NewScheduler(o.clock)
	}
	if o.interval == nil {
		o.interval = func() time.Duration { return DefaultInterval }
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
