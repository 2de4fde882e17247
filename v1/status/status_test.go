package status

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/mirkobrombin/go-stretch/v1/record"
)

func TestFormatRemaining(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{999 * time.Millisecond, "0:00"},
		{61500 * time.Millisecond, "1:01"},
		{time.Hour - time.Millisecond, "59:59"},
		{480 * time.Minute, "480:00"},
		{-time.Second, "0:00"},
	}
	for _, c := range cases {
		if got := FormatRemaining(c.d); got != c.want {
			t.Fatalf("FormatRemaining(%v) = %q want %q", c.d, got, c.want)
		}
	}
}

func TestTerminalThrottlesRunningLines(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.UpdateState(record.StateRunning, 2*time.Minute)
	for s := 119; s >= 61; s-- {
		term.UpdateState(record.StateRunning, time.Duration(s)*time.Second)
	}
	term.UpdateState(record.StateRunning, 59*time.Second)
	term.UpdateState(record.StateRunning, 9*time.Second)
	term.UpdateState(record.StateExpired, 0)
	term.UpdateState(record.StateExpired, 0)
	term.UpdateState(record.StateStopped, 0)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{"⏱ 2:00", "⏱ 1:59", "⏱ 0:59", "⏱ 0:09", "Time to stretch!", "Stretch timer stopped"}
	if len(lines) != len(want) {
		t.Fatalf("expected %q got %q", want, lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %q got %q", i, want[i], lines[i])
		}
	}
}

type countingIndicator struct{ n int }

func (c *countingIndicator) UpdateState(record.State, time.Duration) { c.n++ }

func TestMultiFansOut(t *testing.T) {
	a, b := &countingIndicator{}, &countingIndicator{}
	Multi{a, nil, b}.UpdateState(record.StateStopped, 0)
	if a.n != 1 || b.n != 1 {
		t.Fatalf("expected both indicators updated, got %d %d", a.n, b.n)
	}
}
