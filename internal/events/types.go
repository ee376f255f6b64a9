package events

import "time"

// PhaseChanged is emitted by the daemon loop after every scheduler phase
// transition. Status readers and the NATS exporter subscribe to it.
type PhaseChanged struct {
	BreakID   string
	From      string
	To        string
	At        time.Time
	NextBreak time.Time
}

// WarningDue asks the notifier to announce the upcoming break.
type WarningDue struct {
	BreakID  string
	LeadTime time.Duration
	At       time.Time
}

// BreakStarted is emitted once a break becomes logically active, whether or
// not the lock surface was obtained.
type BreakStarted struct {
	BreakID  string
	Duration time.Duration
	Blocking bool
	At       time.Time
}

// BreakEnded is emitted when a break completes or is skipped.
type BreakEnded struct {
	BreakID string
	Skipped bool
	At      time.Time
}

// LockDegraded reports that blocking could not be established within the
// retry budget: the break continues unenforced. Emitted at most once per
// break; the screen may not actually be blocked, so this must never be
// swallowed.
type LockDegraded struct {
	BreakID  string
	Attempts int
	Reason   string
	At       time.Time
}

// LockLost reports out-of-band loss of a held lock surface (compositor
// restart, locker process death) during an active break.
type LockLost struct {
	BreakID string
	Reason  string
	At      time.Time
}

// ConfigReloaded is emitted after a new config snapshot is installed.
type ConfigReloaded struct {
	ConfigHash string
	At         time.Time
}

// ConfigRejected is emitted when a reload candidate fails validation and the
// previous snapshot stays in effect.
type ConfigRejected struct {
	Reason string
	At     time.Time
}

// SuspendResumed is emitted when the machine wakes from suspend; the
// schedule re-anchors because elapsed wall time did not correspond to work.
type SuspendResumed struct {
	SleptAt   time.Time
	ResumedAt time.Time
}
