package record

import (
	"testing"
	"time"
)

func TestRemaining(t *testing.T) {
	now := time.UnixMilli(1_700_000_060_000)
	tests := []struct {
		name string
		rec  Record
		want time.Duration
	}{
		{"stopped ignores stale fields", Record{State: StateStopped, StartTime: now.UnixMilli(), TargetDurationMs: 60_000}, 0},
		{"expired is zero", Record{State: StateExpired, StartTime: now.UnixMilli(), TargetDurationMs: 60_000}, 0},
		{"running", Record{State: StateRunning, StartTime: now.UnixMilli() - 10_000, TargetDurationMs: 60_000}, 50 * time.Second},
		{"running past target", Record{State: StateRunning, StartTime: now.UnixMilli() - 70_000, TargetDurationMs: 60_000}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Remaining(now); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPatchApplyKeepsUntouchedFields(t *testing.T) {
	now := time.UnixMilli(5_000)
	base := Record{State: StateRunning, StartTime: 1_000, TargetDurationMs: 60_000, ActiveInstanceID: "a"}

	got := SetState(StateStopped).Apply(base, now)
	if got.State != StateStopped {
		t.Fatalf("expected stopped, got %s", got.State)
	}
	if got.StartTime != 1_000 || got.TargetDurationMs != 60_000 || got.ActiveInstanceID != "a" {
		t.Fatalf("untouched fields changed: %+v", got)
	}
	if got.LastUpdate != 5_000 {
		t.Fatalf("expected lastUpdate stamped, got %d", got.LastUpdate)
	}
}

func TestClearKeepsActiveInstance(t *testing.T) {
	base := Record{State: StateExpired, StartTime: 1_000, TargetDurationMs: 60_000, ActiveInstanceID: "a"}
	got := Clear().Apply(base, time.UnixMilli(2_000))
	if got.State != StateStopped || got.StartTime != 0 || got.TargetDurationMs != 0 {
		t.Fatalf("unexpected reset record %+v", got)
	}
	if got.ActiveInstanceID != "a" {
		t.Fatalf("reset must not clear the active instance, got %q", got.ActiveInstanceID)
	}
}

func TestBegin(t *testing.T) {
	start := time.UnixMilli(10_000)
	got := Begin("b", start, time.Minute).Apply(Default(start), start)
	if got.State != StateRunning || got.StartTime != 10_000 || got.TargetDurationMs != 60_000 || got.ActiveInstanceID != "b" {
		t.Fatalf("unexpected begin record %+v", got)
	}
}

func TestNormalizeUnknownState(t *testing.T) {
	got := Record{State: "paused"}.Normalize()
	if got.State != StateStopped {
		t.Fatalf("expected stopped, got %s", got.State)
	}
	if !(Patch{}).Empty() {
		t.Fatal("zero patch should be empty")
	}
}
