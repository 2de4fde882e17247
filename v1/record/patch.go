package record

import "time"

// Patch is a partial write. Nil fields keep the value already stored, so
// concurrent writers that touch different fields do not clobber each other
// beyond the read-modify-write window.
type Patch struct {
	State            *State
	StartTime        *int64
	TargetDurationMs *int64
	ActiveInstanceID *string
}

// Apply merges p onto r and stamps LastUpdate with now.
func (p Patch) Apply(r Record, now time.Time) Record {
	if p.State != nil {
		r.State = *p.State
	}
	if p.StartTime != nil {
		r.StartTime = *p.StartTime
	}
	if p.TargetDurationMs != nil {
		r.TargetDurationMs = *p.TargetDurationMs
	}
	if p.ActiveInstanceID != nil {
		r.ActiveInstanceID = *p.ActiveInstanceID
	}
	r.LastUpdate = now.UnixMilli()
	return r
}

// Empty reports whether p changes no field.
func (p Patch) Empty() bool {
	return p.State == nil && p.StartTime == nil && p.TargetDurationMs == nil && p.ActiveInstanceID == nil
}

// SetState returns a patch that only changes the state.
func SetState(s State) Patch {
	return Patch{State: &s}
}

// Claim returns a patch that only changes the active instance.
func Claim(id string) Patch {
	return Patch{ActiveInstanceID: &id}
}

// Begin returns the patch that opens a running period for id.
func Begin(id string, start time.Time, target time.Duration) Patch {
	s := StateRunning
	startMs := start.UnixMilli()
	targetMs := target.Milliseconds()
	return Patch{State: &s, StartTime: &startMs, TargetDurationMs: &targetMs, ActiveInstanceID: &id}
}

// Clear returns the patch written by a reset.
func Clear() Patch {
	s := StateStopped
	var zero int64
	return Patch{State: &s, StartTime: &zero, TargetDurationMs: &zero}
}
