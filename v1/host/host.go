// Package host ties a Timer to its presentation: the status indicator, the
// overlay and the change bus. It owns the process lifecycle and the user
// commands.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mirkobrombin/go-stretch/v1/clock"
	"github.com/mirkobrombin/go-stretch/v1/config"
	"github.com/mirkobrombin/go-stretch/v1/overlay"
	"github.com/mirkobrombin/go-stretch/v1/record"
	"github.com/mirkobrombin/go-stretch/v1/status"
	"github.com/mirkobrombin/go-stretch/v1/timer"
)

// Watcher reports writes made by other instances.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Snapshot is the answer to the status command.
type Snapshot struct {
	ID              string
	State           record.State
	Remaining       time.Duration
	Active          bool
	IntervalMinutes int
}

// Host runs one instance.
type Host struct {
	timer     *timer.Timer
	live      *config.Live
	overlay   overlay.Overlay
	indicator status.Indicator
	watcher   Watcher
	notify    func(string)
	clock     clock.Clock
	debounce  time.Duration
	logger    *slog.Logger

	registerOnce sync.Once

	mu          sync.Mutex
	focusTimer  clock.Timer
	watchCancel context.CancelFunc
	overlayOpen bool
}

// Option configures a Host.
type Option func(*Host)

// WithOverlay sets the overlay shown on expiry.
func WithOverlay(o overlay.Overlay) Option {
	return func(h *Host) { h.overlay = o }
}

// WithIndicator sets the status indicator.
func WithIndicator(i status.Indicator) Option {
	return func(h *Host) { h.indicator = i }
}

// WithWatcher refreshes the indicator whenever another instance writes.
func WithWatcher(w Watcher) Option {
	return func(h *Host) { h.watcher = w }
}

// WithNotify sets the sink for informational messages.
func WithNotify(fn func(string)) Option {
	return func(h *Host) { h.notify = fn }
}

// WithClock sets the clock driving the focus debounce.
func WithClock(c clock.Clock) Option {
	return func(h *Host) { h.clock = c }
}

// WithClaimDebounce sets how long focus events settle before claiming.
func WithClaimDebounce(d time.Duration) Option {
	return func(h *Host) { h.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) { h.logger = l }
}

type nopOverlay struct{}

func (nopOverlay) Show(func()) {}
func (nopOverlay) Close()      {}

type nopIndicator struct{}

func (nopIndicator) UpdateState(record.State, time.Duration) {}

// New returns a Host for t.
func New(t *timer.Timer, live *config.Live, opts ...Option) *Host {
	h := &Host{
		timer:     t,
		live:      live,
		overlay:   nopOverlay{},
		indicator: nopIndicator{},
		notify:    func(string) {},
		clock:     clock.Real{},
		debounce:  config.DefaultClaimDebounce,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Initialize registers the timer observers (once per Host), claims
// activity and reconciles the presentation with the persisted record.
func (h *Host) Initialize(ctx context.Context) error {
	h.registerOnce.Do(func() {
		h.timer.OnTick(func(remaining time.Duration) {
			h.indicator.UpdateState(record.StateRunning, remaining)
		})
		h.timer.OnExpired(func() {
			h.indicator.UpdateState(record.StateExpired, 0)
			h.showOverlay()
		})
	})
	if _, err := h.timer.Claim(ctx); err != nil {
		return fmt.Errorf("host: claim: %w", err)
	}
	err := h.timer.Initialize(ctx, timer.Reconcile{
		OnState:     h.indicator.UpdateState,
		ShowOverlay: h.showOverlay,
		Notify:      h.notify,
		AutoStart:   h.live.AutoStart(),
	})
	if err != nil {
		return fmt.Errorf("host: initialize: %w", err)
	}
	return h.watch()
}

func (h *Host) watch() error {
	if h.watcher == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watchCancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := h.watcher.Watch(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("host: watch: %w", err)
	}
	h.watchCancel = cancel
	go func() {
		for range ch {
			if err := h.refresh(ctx); err != nil {
				h.logger.Warn("stretch: refresh failed", "instance", h.timer.ID(), "error", err)
			}
		}
	}()
	return nil
}

// Teardown stops local scheduling and watching. Unlike Stop it does not
// persist a stopped state; the record keeps running for the other instances.
func (h *Host) Teardown(ctx context.Context) {
	h.mu.Lock()
	if h.watchCancel != nil {
		h.watchCancel()
		h.watchCancel = nil
	}
	if h.focusTimer != nil {
		h.focusTimer.Stop()
		h.focusTimer = nil
	}
	h.mu.Unlock()
	h.timer.Release()
	h.logger.Debug("stretch: instance released", "instance", h.timer.ID())
}

// Start claims activity and starts the timer.
func (h *Host) Start(ctx context.Context) error {
	if _, err := h.timer.Claim(ctx); err != nil {
		return err
	}
	if err := h.timer.Start(ctx); err != nil {
		return err
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}
	h.notify("Stretch timer started")
	return nil
}

// Stop claims activity and stops the timer.
func (h *Host) Stop(ctx context.Context) error {
	if _, err := h.timer.Claim(ctx); err != nil {
		return err
	}
	if err := h.timer.Stop(ctx); err != nil {
		return err
	}
	h.indicator.UpdateState(record.StateStopped, 0)
	h.notify("Stretch timer stopped")
	return nil
}

// Reset claims activity, resets the timer and closes the overlay. Closing
// a shown overlay runs the usual close handling, which may start a new
// period when auto start is on.
func (h *Host) Reset(ctx context.Context) error {
	if _, err := h.timer.Claim(ctx); err != nil {
		return err
	}
	if err := h.timer.Reset(ctx); err != nil {
		return err
	}
	h.indicator.UpdateState(record.StateStopped, 0)
	h.overlay.Close()
	h.notify("Stretch timer reset")
	return nil
}

// Claim takes activity explicitly.
func (h *Host) Claim(ctx context.Context) error {
	if _, err := h.timer.Claim(ctx); err != nil {
		return err
	}
	st, err := h.timer.State(ctx)
	if err != nil {
		return err
	}
	if st == record.StateRunning {
		if err := h.refresh(ctx); err != nil {
			return err
		}
		h.notify("Timer control claimed")
	}
	return nil
}

// Focus claims activity once focus events settle for the debounce period.
// Rapid focus changes between instances therefore hand activity over once
// rather than on every event.
func (h *Host) Focus() {
	if h.debounce <= 0 {
		h.focusClaim()
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.focusTimer != nil {
		h.focusTimer.Stop()
	}
	h.focusTimer = h.clock.AfterFunc(h.debounce, h.focusClaim)
}

func (h *Host) focusClaim() {
	ctx := context.Background()
	if _, err := h.timer.Claim(ctx); err != nil {
		h.logger.Warn("stretch: focus claim failed", "instance", h.timer.ID(), "error", err)
		return
	}
	if err := h.refresh(ctx); err != nil {
		h.logger.Warn("stretch: refresh failed", "instance", h.timer.ID(), "error", err)
	}
}

// SetInterval changes the configured interval. A running timer restarts
// with the new interval.
func (h *Host) SetInterval(ctx context.Context, minutes int) error {
	if err := h.live.SetIntervalMinutes(minutes); err != nil {
		return err
	}
	st, err := h.timer.State(ctx)
	if err != nil {
		return err
	}
	if st == record.StateRunning {
		if err := h.timer.Stop(ctx); err != nil {
			return err
		}
		if err := h.timer.Start(ctx); err != nil {
			return err
		}
		if err := h.refresh(ctx); err != nil {
			return err
		}
	}
	h.notify(fmt.Sprintf("Timer interval set to %d minutes", minutes))
	return nil
}

// Status reports the shared record as seen by this instance.
func (h *Host) Status(ctx context.Context) (Snapshot, error) {
	st, err := h.timer.State(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	remaining, err := h.timer.Remaining(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	active, err := h.timer.IsActive(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		ID:              h.timer.ID(),
		State:           st,
		Remaining:       remaining,
		Active:          active,
		IntervalMinutes: h.live.IntervalMinutes(),
	}, nil
}

// refresh pushes the current record to the indicator.
func (h *Host) refresh(ctx context.Context) error {
	st, err := h.timer.State(ctx)
	if err != nil {
		return err
	}
	remaining, err := h.timer.Remaining(ctx)
	if err != nil {
		return err
	}
	h.indicator.UpdateState(st, remaining)
	return nil
}

// showOverlay opens the overlay unless this host already has it open.
func (h *Host) showOverlay() {
	h.mu.Lock()
	if h.overlayOpen {
		h.mu.Unlock()
		return
	}
	h.overlayOpen = true
	h.mu.Unlock()
	h.overlay.Show(h.overlayClosed)
}

// overlayClosed resets the timer and starts a new period if configured.
func (h *Host) overlayClosed() {
	h.mu.Lock()
	h.overlayOpen = false
	h.mu.Unlock()

	ctx := context.Background()
	if err := h.timer.Reset(ctx); err != nil {
		h.logger.Warn("stretch: reset after overlay failed", "instance", h.timer.ID(), "error", err)
		return
	}
	if !h.live.AutoStart() {
		h.indicator.UpdateState(record.StateStopped, 0)
		return
	}
	if err := h.timer.Start(ctx); err != nil {
		h.logger.Warn("stretch: restart after overlay failed", "instance", h.timer.ID(), "error", err)
		return
	}
	if err := h.refresh(ctx); err != nil {
		h.logger.Warn("stretch: refresh failed", "instance", h.timer.ID(), "error", err)
	}
}
