// Package status renders the timer state for humans.
package status

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/mirkobrombin/go-stretch/v1/record"
)

// Indicator receives every tick and every state transition.
type Indicator interface {
	UpdateState(s record.State, remaining time.Duration)
}

// FormatRemaining renders d as m:ss, rounding down.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%d:%02d", ms/60000, (ms%60000)/1000)
}

// Label returns the plain text shown for s.
func Label(s record.State, remaining time.Duration) string {
	switch s {
	case record.StateRunning:
		return "⏱ " + FormatRemaining(remaining)
	case record.StateExpired:
		return "Time to stretch!"
	default:
		return "Stretch timer stopped"
	}
}

// Terminal writes one colored line per visible change. While running it
// writes when the minute changes and for the last ten seconds, so a console
// is not flooded by per-second ticks.
type Terminal struct {
	mu         sync.Mutex
	out        io.Writer
	lastState  record.State
	lastMinute int64
	lastLine   string
}

// NewTerminal returns a Terminal writing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out, lastMinute: -1}
}

var (
	runningColor = color.New(color.FgGreen)
	stoppedColor = color.New(color.FgHiBlack)
	expiredColor = color.New(color.FgRed, color.Bold)
)

// UpdateState implements Indicator.
func (t *Terminal) UpdateState(s record.State, remaining time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	line := Label(s, remaining)
	minute := remaining.Milliseconds() / 60000
	if s == t.lastState && line == t.lastLine {
		return
	}
	if s == record.StateRunning && s == t.lastState && minute == t.lastMinute && remaining > 10*time.Second {
		return
	}
	t.lastState, t.lastMinute, t.lastLine = s, minute, line

	var c *color.Color
	switch s {
	case record.StateRunning:
		c = runningColor
	case record.StateExpired:
		c = expiredColor
	default:
		c = stoppedColor
	}
	fmt.Fprintln(t.out, c.Sprint(line))
}

// Multi fans every update out to several indicators.
type Multi []Indicator

// UpdateState implements Indicator.
func (m Multi) UpdateState(s record.State, remaining time.Duration) {
	for _, ind := range m {
		if ind != nil {
			ind.UpdateState(s, remaining)
		}
	}
}
