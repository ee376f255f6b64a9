package schedule

import "time"

// Phase represents the scheduler's position in the break cycle.
type Phase string

const (
	// PhaseIdle is normal work time, counting toward the next break.
	PhaseIdle Phase = "idle"
	// PhaseWarning means the warning has fired; the break is imminent.
	PhaseWarning Phase = "warning"
	// PhaseBreakActive means the break is logically in progress. The screen
	// may or may not actually be blocked (see Snapshot.Degraded).
	PhaseBreakActive Phase = "break_active"
	// PhaseBreakEnding is the grace period for releasing the lock surface
	// and playing the end-of-break cue.
	PhaseBreakEnding Phase = "break_ending"
)

// ActionKind enumerates the side effects a tick can request.
type ActionKind string

const (
	ActionEmitWarning ActionKind = "emit_warning"
	ActionStartBreak  ActionKind = "start_break"
	ActionEndBreak    ActionKind = "end_break"
)

// Action is a side-effect request returned by Tick. The daemon loop executes
// it (notify, acquire lock, release lock) and reports back via Acknowledge.
type Action struct {
	Kind    ActionKind
	BreakID string
	// Duration is the frozen break duration for ActionStartBreak.
	Duration time.Duration
	// Lead is the remaining lead time for ActionEmitWarning.
	Lead time.Duration
	// Blocking reports whether the daemon should try to acquire a lock
	// surface for this break.
	Blocking bool
}

// ActionResult reports the outcome of executing an Action back to the
// scheduler. For ActionStartBreak, Degraded marks a break that is active
// without visual enforcement (lock could not be established within the
// retry budget).
type ActionResult struct {
	Kind     ActionKind
	BreakID  string
	Err      error
	Degraded bool
	At       time.Time
}
