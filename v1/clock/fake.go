package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually driven Clock. Callbacks registered with AfterFunc run
// synchronously inside Advance, in due-time order, with Now reporting the
// callback's due time while it runs.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	waiters []*fakeTimer
}

type fakeTimer struct {
	c     *Fake
	at    time.Time
	seq   uint64
	f     func()
	fired bool
}

// NewFake returns a Fake clock set to now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

// Now implements Clock.Now.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc implements Clock.AfterFunc.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{c: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.waiters = append(c.waiters, t)
	return t
}

// Advance moves the clock forward by d, firing every callback that becomes
// due on the way, including callbacks scheduled by callbacks.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.popDueLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
	}
}

// Set moves the clock to t without firing callbacks. It is meant for
// simulating time that passed while nothing was observing it.
func (c *Fake) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Pending returns the number of callbacks that have not fired or been stopped.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

func (c *Fake) popDueLocked(target time.Time) *fakeTimer {
	if len(c.waiters) == 0 {
		return nil
	}
	sort.Slice(c.waiters, func(i, j int) bool {
		if c.waiters[i].at.Equal(c.waiters[j].at) {
			return c.waiters[i].seq < c.waiters[j].seq
		}
		return c.waiters[i].at.Before(c.waiters[j].at)
	})
	first := c.waiters[0]
	if first.at.After(target) {
		return nil
	}
	c.waiters = c.waiters[1:]
	first.fired = true
	return first
}

// Stop implements Timer.Stop.
func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.fired {
		return false
	}
	for i, w := range t.c.waiters {
		if w == t {
			t.c.waiters = append(t.c.waiters[:i], t.c.waiters[i+1:]...)
			t.fired = true
			return true
		}
	}
	return false
}
