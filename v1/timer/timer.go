// Package timer implements the shared recurring countdown. Each process
// runs one Timer; all Timers pointed at the same state store observe one
// record, and only the active instance drives ticks and expiry.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/mirkobrombin/go-stretch/v1/record"
	"github.com/mirkobrombin/go-stretch/v1/state"
)

// Timer is the per-process entry point composing the Engine and the
// Coordinator.
type Timer struct {
	engine *Engine
	coord  *Coordinator
	store  state.Store
}

// Reconcile receives the outcome of Initialize.
type Reconcile struct {
	// OnState reports the state found, with the remaining time if running.
	OnState func(s record.State, remaining time.Duration)
	// ShowOverlay is called when an expiry is pending and this instance is
	// active.
	ShowOverlay func()
	// Notify receives short informational messages.
	Notify func(msg string)
	// AutoStart starts a stopped timer.
	AutoStart bool
}

// New builds a Timer over store. If no instance has claimed activity yet,
// the new Timer claims it.
func New(ctx context.Context, store state.Store, opts ...Option) (*Timer, error) {
	o := newOptions(opts)
	id := o.id
	if id == "" {
		id = NewIdentity()
	}
	engine := NewEngine(store, id, opts...)
	t := &Timer{engine: engine, coord: NewCoordinator(store, engine), store: store}

	rec, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if rec.ActiveInstanceID == "" {
		if _, err := t.coord.Claim(ctx); err != nil {
			return nil, err
		}
	}
	return t, nil
}

var (
	sharedOnce  sync.Once
	sharedTimer *Timer
	sharedErr   error
)

// Shared returns the process-wide Timer. The first call constructs it with
// the given arguments; every later call returns the same Timer (or the same
// construction error) and ignores its arguments.
func Shared(ctx context.Context, store state.Store, opts ...Option) (*Timer, error) {
	sharedOnce.Do(func() {
		sharedTimer, sharedErr = New(ctx, store, opts...)
	})
	return sharedTimer, sharedErr
}

// ID returns the instance identity.
func (t *Timer) ID() string { return t.coord.ID() }

// Start implements Engine.Start.
func (t *Timer) Start(ctx context.Context) error { return t.engine.Start(ctx) }

// Stop implements Engine.Stop.
func (t *Timer) Stop(ctx context.Context) error { return t.engine.Stop(ctx) }

// Reset implements Engine.Reset.
func (t *Timer) Reset(ctx context.Context) error { return t.engine.Reset(ctx) }

// State returns the shared state.
func (t *Timer) State(ctx context.Context) (record.State, error) { return t.engine.State(ctx) }

// Remaining returns the time left in the running period.
func (t *Timer) Remaining(ctx context.Context) (time.Duration, error) {
	return t.engine.Remaining(ctx)
}

// OnTick registers the tick observer.
func (t *Timer) OnTick(fn func(remaining time.Duration)) { t.engine.OnTick(fn) }

// OnExpired registers the expiry observer.
func (t *Timer) OnExpired(fn func()) { t.engine.OnExpired(fn) }

// Claim makes this instance the active one.
func (t *Timer) Claim(ctx context.Context) (bool, error) { return t.coord.Claim(ctx) }

// IsActive reports whether this instance holds activity.
func (t *Timer) IsActive(ctx context.Context) (bool, error) { return t.coord.IsActive(ctx) }

// Release cancels local scheduling and leaves the record untouched.
func (t *Timer) Release() { t.engine.Release() }

// Initialize reconciles local presentation with the persisted record. It
// only writes to move an elapsed running period to expired, and shows the
// overlay only on the active instance.
func (t *Timer) Initialize(ctx context.Context, r Reconcile) error {
	e := t.engine
	e.mu.Lock()
	rec, err := t.store.Load(ctx)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	active := rec.ActiveFor(e.id)
	now := e.clock.Now()

	switch rec.State {
	case record.StateRunning:
		remaining := rec.Remaining(now)
		if remaining > 0 {
			e.mu.Unlock()
			r.onState(record.StateRunning, remaining)
			if active {
				return e.resume(ctx)
			}
			return nil
		}
		if _, err := t.store.Update(ctx, record.SetState(record.StateExpired)); err != nil {
			e.mu.Unlock()
			return err
		}
		e.mu.Unlock()
		e.logger.Info("stretch: period elapsed while unobserved", "instance", e.id)
		r.onState(record.StateExpired, 0)
		if active {
			r.showOverlay()
		}
	case record.StateExpired:
		e.mu.Unlock()
		r.onState(record.StateExpired, 0)
		if active {
			r.showOverlay()
		}
	default:
		e.mu.Unlock()
		if !r.AutoStart {
			r.onState(record.StateStopped, 0)
			return nil
		}
		if err := e.Start(ctx); err != nil {
			return err
		}
		remaining, err := e.Remaining(ctx)
		if err != nil {
			return err
		}
		r.onState(record.StateRunning, remaining)
		r.notify("auto-started")
	}
	return nil
}

func (r Reconcile) onState(s record.State, remaining time.Duration) {
	if r.OnState != nil {
		r.OnState(s, remaining)
	}
}

func (r Reconcile) showOverlay() {
	if r.ShowOverlay != nil {
		r.ShowOverlay()
	}
}

func (r Reconcile) notify(msg string) {
	if r.Notify != nil {
		r.Notify(msg)
	}
}
