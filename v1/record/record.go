// Package record defines the timer record shared by every instance of the
// host and the field-level merge applied on each write.
package record

import "time"

// State is the lifecycle state of the shared timer.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StateExpired State = "expired"
)

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StateStopped, StateRunning, StateExpired:
		return true
	}
	return false
}

// Record is the single persisted timer slot. Times are milliseconds since
// the Unix epoch so the record reads the same from every backend and codec.
type Record struct {
	State            State  `json:"state" cbor:"state"`
	StartTime        int64  `json:"startTime" cbor:"startTime"`
	TargetDurationMs int64  `json:"targetDurationMs" cbor:"targetDurationMs"`
	LastUpdate       int64  `json:"lastUpdate" cbor:"lastUpdate"`
	ActiveInstanceID string `json:"activeInstanceId,omitempty" cbor:"activeInstanceId,omitempty"`
}

// Default returns the record used when nothing has been written yet.
func Default(now time.Time) Record {
	return Record{State: StateStopped, LastUpdate: now.UnixMilli()}
}

// Normalize maps unknown states to stopped so a corrupted or foreign value
// never reads as a running timer.
func (r Record) Normalize() Record {
	if !r.State.Valid() {
		r.State = StateStopped
	}
	return r
}

// Elapsed returns the time spent in the current running period at now.
func (r Record) Elapsed(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-r.StartTime) * time.Millisecond
}

// Remaining returns the time left at now. It is zero unless the record is
// running, regardless of stale start or duration fields.
func (r Record) Remaining(now time.Time) time.Duration {
	if r.State != StateRunning {
		return 0
	}
	left := r.TargetDurationMs - (now.UnixMilli() - r.StartTime)
	if left < 0 {
		return 0
	}
	return time.Duration(left) * time.Millisecond
}

// ActiveFor reports whether id currently holds activity.
func (r Record) ActiveFor(id string) bool {
	return r.ActiveInstanceID != "" && r.ActiveInstanceID == id
}
