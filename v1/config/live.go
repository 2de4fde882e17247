package config

import (
	"sync"
	"sync/atomic"
	"time"

	stretcherrors "github.com/mirkobrombin/go-stretch/v1/errors"
)

// Live holds the settings that can change while an instance runs. Reads
// are lock-free so the timer can consult them on every start.
type Live struct {
	interval  atomic.Int64
	autoStart atomic.Bool

	mu   sync.Mutex
	cfg  Config
	path string
}

// NewLive wraps cfg. When path is not empty, changes are written back to it.
func NewLive(cfg Config, path string) *Live {
	l := &Live{cfg: cfg, path: path}
	l.interval.Store(int64(ClampInterval(cfg.IntervalMinutes)))
	l.autoStart.Store(cfg.AutoStart)
	return l
}

// IntervalMinutes returns the configured interval in minutes.
func (l *Live) IntervalMinutes() int { return int(l.interval.Load()) }

// Interval returns the configured interval.
func (l *Live) Interval() time.Duration {
	return time.Duration(l.interval.Load()) * time.Minute
}

// AutoStart reports whether a stopped timer starts on its own.
func (l *Live) AutoStart() bool { return l.autoStart.Load() }

// SetIntervalMinutes validates and stores a new interval, persisting it
// when the Live has a path.
func (l *Live) SetIntervalMinutes(minutes int) error {
	if !ValidInterval(minutes) {
		return stretcherrors.ErrInvalidInterval
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interval.Store(int64(minutes))
	l.cfg.IntervalMinutes = minutes
	if l.path == "" {
		return nil
	}
	return Save(l.path, l.cfg)
}

// SetAutoStart stores a new auto-start flag, persisting it when the Live
// has a path.
func (l *Live) SetAutoStart(v bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.autoStart.Store(v)
	l.cfg.AutoStart = v
	if l.path == "" {
		return nil
	}
	return Save(l.path, l.cfg)
}
