package timer

import (
	"context"

	"github.com/mirkobrombin/go-stretch/v1/metrics"
	"github.com/mirkobrombin/go-stretch/v1/record"
	"github.com/mirkobrombin/go-stretch/v1/state"
)

// Coordinator decides which instance drives expiry. Activity is advisory:
// any instance may claim it at any time and the last writer wins.
type Coordinator struct {
	store  state.Store
	engine *Engine
	id     string
}

// NewCoordinator returns a Coordinator for the instance running engine.
func NewCoordinator(store state.Store, engine *Engine) *Coordinator {
	return &Coordinator{store: store, engine: engine, id: engine.id}
}

// ID returns this instance's identity.
func (c *Coordinator) ID() string { return c.id }

// IsActive reports whether this instance currently holds activity.
func (c *Coordinator) IsActive(ctx context.Context) (bool, error) {
	rec, err := c.store.Load(ctx)
	if err != nil {
		return false, err
	}
	return rec.ActiveFor(c.id), nil
}

// Claim makes this instance the active one. When ownership moves here and
// the timer is running, the engine takes one tick step right away so
// ticking continues without waiting for the previous owner's wake-up.
// Claiming while already active touches nothing. It reports whether the
// owner changed.
func (c *Coordinator) Claim(ctx context.Context) (bool, error) {
	e := c.engine
	e.mu.Lock()
	rec, err := c.store.Load(ctx)
	if err != nil {
		e.mu.Unlock()
		return false, err
	}
	if rec.ActiveFor(c.id) {
		e.mu.Unlock()
		return false, nil
	}
	rec, err = c.store.Update(ctx, record.Claim(c.id))
	if err != nil {
		e.mu.Unlock()
		return false, err
	}
	metrics.ClaimCounter.Inc()
	e.logger.Debug("stretch: activity claimed", "instance", c.id)
	var out outcome
	if rec.State == record.StateRunning {
		out = e.stepLocked(ctx, rec)
	}
	e.mu.Unlock()
	e.emit(out)
	return true, nil
}
