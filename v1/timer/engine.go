package timer

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/mirkobrombin/go-stretch/v1/clock"
	stretcherrors "github.com/mirkobrombin/go-stretch/v1/errors"
	"github.com/mirkobrombin/go-stretch/v1/metrics"
	"github.com/mirkobrombin/go-stretch/v1/record"
	"github.com/mirkobrombin/go-stretch/v1/state"
)

const (
	// minTickDelay keeps coarse clocks from busy-looping on a boundary.
	minTickDelay = 100 * time.Millisecond
	// retryDelay re-arms a tick whose record read failed.
	retryDelay = time.Second
)

// Engine runs the timer state machine for one instance. All record work
// and arming happen under mu, so ticks never overlap within a process;
// observers run after mu is released.
type Engine struct {
	store    state.Store
	clock    clock.Clock
	sched    Scheduler
	id       string
	interval func() time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending Task
	gen     uint64

	obsMu     sync.Mutex
	onTick    func(remaining time.Duration)
	onExpired func()
}

// outcome is what a tick step asks the observers to see.
type outcome struct {
	tick      bool
	expired   bool
	remaining time.Duration
}

// NewEngine returns an Engine acting as instance id.
func NewEngine(store state.Store, id string, opts ...Option) *Engine {
	o := newOptions(opts)
	return &Engine{
		store:    store,
		clock:    o.clock,
		sched:    o.sched,
		id:       id,
		interval: o.interval,
		logger:   o.logger,
	}
}

// OnTick registers the tick observer, replacing any previous one.
func (e *Engine) OnTick(fn func(remaining time.Duration)) {
	e.obsMu.Lock()
	e.onTick = fn
	e.obsMu.Unlock()
}

// OnExpired registers the expiry observer, replacing any previous one.
func (e *Engine) OnExpired(fn func()) {
	e.obsMu.Lock()
	e.onExpired = fn
	e.obsMu.Unlock()
}

// Start opens a new running period owned by this instance. It does nothing
// if the timer is already running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	rec, err := e.store.Load(ctx)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if rec.State == record.StateRunning {
		e.mu.Unlock()
		return nil
	}
	target := e.interval()
	if target <= 0 {
		e.mu.Unlock()
		return stretcherrors.ErrInvalidInterval
	}
	rec, err = e.store.Update(ctx, record.Begin(e.id, e.clock.Now(), target))
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.logger.Debug("stretch: timer started", "instance", e.id, "target", target)
	out := e.stepLocked(ctx, rec)
	e.mu.Unlock()
	e.emit(out)
	return nil
}

// Stop cancels the local wake-up and marks the timer stopped. Start time,
// duration and the active instance are left as they are.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked(ctx)
}

func (e *Engine) stopLocked(ctx context.Context) error {
	rec, err := e.store.Load(ctx)
	if err != nil {
		return err
	}
	if rec.State == record.StateStopped {
		return nil
	}
	e.cancelLocked()
	_, err = e.store.Update(ctx, record.SetState(record.StateStopped))
	return err
}

// Reset stops the timer and zeroes the running period.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.stopLocked(ctx); err != nil {
		return err
	}
	_, err := e.store.Update(ctx, record.Clear())
	return err
}

// Remaining returns the time left in the running period, or zero.
func (e *Engine) Remaining(ctx context.Context) (time.Duration, error) {
	rec, err := e.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	return rec.Remaining(e.clock.Now()), nil
}

// State returns the shared state.
func (e *Engine) State(ctx context.Context) (record.State, error) {
	rec, err := e.store.Load(ctx)
	if err != nil {
		return "", err
	}
	return rec.State, nil
}

// Release drops the local wake-up without touching the record.
func (e *Engine) Release() {
	e.mu.Lock()
	e.cancelLocked()
	e.mu.Unlock()
}

// resume re-reads the record and takes one tick step if it is still
// running and owned by this instance.
func (e *Engine) resume(ctx context.Context) error {
	e.mu.Lock()
	rec, err := e.store.Load(ctx)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	out := e.stepLocked(ctx, rec)
	e.mu.Unlock()
	e.emit(out)
	return nil
}

// stepLocked validates ownership of rec and then advances it.
func (e *Engine) stepLocked(ctx context.Context, rec record.Record) outcome {
	if rec.State != record.StateRunning || !rec.ActiveFor(e.id) {
		metrics.TickAbortCounter.Inc()
		return outcome{}
	}
	return e.advanceLocked(ctx, rec)
}

func (e *Engine) advanceLocked(ctx context.Context, rec record.Record) outcome {
	now := e.clock.Now()
	remaining := rec.Remaining(now)
	if remaining == 0 {
		e.cancelLocked()
		if _, err := e.store.Update(ctx, record.SetState(record.StateExpired)); err != nil {
			e.logger.Warn("stretch: expiry write failed", "instance", e.id, "error", err)
		}
		metrics.ExpiryCounter.Inc()
		metrics.RemainingGauge.Set(0)
		return outcome{expired: true}
	}
	metrics.TickCounter.Inc()
	metrics.RemainingGauge.Set(remaining.Seconds())
	e.armLocked(nextDelay(rec.Elapsed(now)))
	return outcome{tick: true, remaining: remaining}
}

// fire is the body of every scheduled wake-up.
func (e *Engine) fire(gen uint64) {
	ctx := context.Background()
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.pending = nil
	rec, err := e.store.Load(ctx)
	if err != nil {
		metrics.StoreErrorCounter.Inc()
		e.logger.Warn("stretch: tick read failed", "instance", e.id, "error", err)
		e.scheduleLocked(retryDelay)
		e.mu.Unlock()
		return
	}
	out := e.stepLocked(ctx, rec)
	e.mu.Unlock()
	e.emit(out)
}

func (e *Engine) armLocked(delay time.Duration) {
	e.cancelLocked()
	e.scheduleLocked(delay)
}

func (e *Engine) scheduleLocked(delay time.Duration) {
	e.gen++
	gen := e.gen
	e.pending = e.sched.Schedule(delay, func() { e.fire(gen) })
}

func (e *Engine) cancelLocked() {
	e.gen++
	if e.pending != nil {
		e.pending.Cancel()
		e.pending = nil
	}
}

func (e *Engine) emit(out outcome) {
	if !out.tick && !out.expired {
		return
	}
	e.obsMu.Lock()
	onTick, onExpired := e.onTick, e.onExpired
	e.obsMu.Unlock()
	switch {
	case out.expired && onExpired != nil:
		onExpired()
	case out.tick && onTick != nil:
		onTick(out.remaining)
	}
}

// nextDelay aligns the next wake-up with the next whole second of elapsed.
func nextDelay(elapsed time.Duration) time.Duration {
	ms := float64(elapsed.Milliseconds())
	next := time.Duration(math.Ceil(ms/1000)*1000-ms) * time.Millisecond
	if next < minTickDelay {
		return minTickDelay
	}
	return next
}
