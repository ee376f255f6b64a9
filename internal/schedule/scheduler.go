package schedule

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/breaktimed/internal/config"
	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
)

// ErrInvalidState is returned when a control operation is not legal in the
// current phase (e.g. snoozing once the warning has fired).
var ErrInvalidState = ferrors.DaemonError("operation not valid in current phase").
	WithSeverity(ferrors.SeverityWarning).Build()

// Scheduler is the break-scheduling state machine. All state mutation happens
// through its methods, which the daemon loop calls from a single goroutine;
// concurrent readers use Status, which returns an atomically published
// snapshot and never touches live state.
//
// Time is always passed in explicitly. Tick(now) is idempotent: calling it
// again with the same now and no intervening Acknowledge emits nothing.
type Scheduler struct {
	mu sync.Mutex

	interval    time.Duration
	duration    time.Duration
	warningLead time.Duration
	blocking    bool
	configHash  string

	phase  Phase
	anchor time.Time

	// one-shot adjustments to the current Idle cycle
	snoozeExtra      time.Duration
	intervalOverride time.Duration

	// per-cycle emission latches; reset when a new cycle starts
	warned       bool
	startEmitted bool
	endEmitted   bool

	breakID string
	// frozen at break start; reload must never shorten an active break
	breakEndsAt time.Time
	degraded    bool

	status atomic.Value // Snapshot
}

// Snapshot is a consistent point-in-time view of the schedule for status
// queries. It is immutable once published.
type Snapshot struct {
	Phase       Phase     `json:"phase"`
	Anchor      time.Time `json:"anchor"`
	ConfigHash  string    `json:"config_hash"`
	BreakID     string    `json:"break_id,omitempty"`
	NextWarning time.Time `json:"next_warning"`
	NextBreak   time.Time `json:"next_break"`
	BreakEndsAt time.Time `json:"break_ends_at,omitempty"`
	Degraded    bool      `json:"degraded,omitempty"`
}

// New creates a Scheduler anchored at now.
func New(cfg *config.Config, now time.Time) *Scheduler {
	s := &Scheduler{phase: PhaseIdle, anchor: now}
	s.adoptConfig(cfg)
	s.publishLocked()
	return s
}

// Resume creates a Scheduler that continues a persisted schedule. The anchor
// is clamped so a long downtime does not trigger an instant break storm: if
// more than a full interval has passed, the schedule re-anchors at now.
func Resume(cfg *config.Config, anchor, now time.Time) *Scheduler {
	s := &Scheduler{phase: PhaseIdle, anchor: anchor}
	s.adoptConfig(cfg)
	if anchor.IsZero() || now.Sub(anchor) >= s.interval {
		s.anchor = now
	}
	s.publishLocked()
	return s
}

func (s *Scheduler) adoptConfig(cfg *config.Config) {
	s.interval = cfg.Break.Interval
	s.duration = cfg.Break.Duration
	s.warningLead = cfg.Break.WarningLead
	s.blocking = cfg.Break.BlockingEnabled
	s.configHash = cfg.Snapshot()
}

// effectiveInterval is the interval for the current cycle, including any
// snooze extension or one-shot override.
func (s *Scheduler) effectiveInterval() time.Duration {
	iv := s.interval
	if s.intervalOverride > 0 {
		iv = s.intervalOverride
	}
	return iv + s.snoozeExtra
}

func (s *Scheduler) warningAt() time.Time {
	iv := s.effectiveInterval()
	lead := s.warningLead
	if lead >= iv {
		lead = iv / 2
	}
	return s.anchor.Add(iv - lead)
}

func (s *Scheduler) breakAt() time.Time {
	return s.anchor.Add(s.effectiveInterval())
}

// Tick advances the state machine to now and returns the side effects the
// daemon must execute, in causal order. Phase transitions that carry side
// effects (break start/end) only complete once Acknowledge is called; Tick
// will not re-emit an action it is still waiting on.
func (s *Scheduler) Tick(now time.Time) []Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	var actions []Action

	switch s.phase {
	case PhaseIdle, PhaseWarning:
		if s.phase == PhaseIdle && !s.warned && !now.Before(s.warningAt()) {
			s.phase = PhaseWarning
			s.warned = true
			s.breakID = uuid.NewString()
			actions = append(actions, Action{
				Kind:    ActionEmitWarning,
				BreakID: s.breakID,
				Lead:    s.breakAt().Sub(now),
			})
		}
		if !s.startEmitted && !now.Before(s.breakAt()) {
			// a warning skipped over in the same tick still fires first,
			// in threshold order
			if !s.warned {
				s.phase = PhaseWarning
				s.warned = true
				s.breakID = uuid.NewString()
				actions = append(actions, Action{Kind: ActionEmitWarning, BreakID: s.breakID, Lead: 0})
			}
			if s.breakID == "" {
				s.breakID = uuid.NewString()
			}
			s.startEmitted = true
			s.breakEndsAt = s.breakAt().Add(s.duration)
			actions = append(actions, Action{
				Kind:     ActionStartBreak,
				BreakID:  s.breakID,
				Duration: s.duration,
				Blocking: s.blocking,
			})
		}
	case PhaseBreakActive:
		if !s.endEmitted && !now.Before(s.breakEndsAt) {
			s.endEmitted = true
			s.phase = PhaseBreakEnding
			actions = append(actions, Action{Kind: ActionEndBreak, BreakID: s.breakID})
		}
	case PhaseBreakEnding:
		// waiting on release acknowledgement; nothing to do
	}

	if len(actions) > 0 {
		s.publishLocked()
	}
	return actions
}

// Acknowledge reports that an action's side effect completed (or conclusively
// failed). It is the only way the scheduler enters or leaves PhaseBreakActive.
// The return value reports whether the result was accepted; a stale or
// duplicate acknowledgement changes nothing and returns false, and the caller
// must unwind any side effect it is still holding (such as a lock surface).
func (s *Scheduler) Acknowledge(res ActionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch res.Kind {
	case ActionStartBreak:
		if s.phase != PhaseWarning || !s.startEmitted {
			return false
		}
		s.phase = PhaseBreakActive
		s.degraded = res.Degraded
	case ActionEndBreak:
		if s.phase != PhaseBreakEnding {
			return false
		}
		// Release completed. The next cycle anchors at the scheduled break
		// start so breaks recur every interval of wall time without drift,
		// unless the acknowledgement arrived so late that the anchor would
		// already be due again.
		next := s.breakAt()
		if res.At.Sub(next) >= s.effectiveInterval() {
			next = res.At
		}
		s.phase = PhaseIdle
		s.anchor = next
		s.resetCycleLocked()
	case ActionEmitWarning:
		// warnings are fire-and-forget
	}
	s.publishLocked()
	return true
}

func (s *Scheduler) resetCycleLocked() {
	s.warned = false
	s.startEmitted = false
	s.endEmitted = false
	s.breakID = ""
	s.breakEndsAt = time.Time{}
	s.degraded = false
	s.snoozeExtra = 0
	s.intervalOverride = 0
}

// Reload installs a new config snapshot. It never shortens a break already in
// progress: the end time frozen at break start stays authoritative. During
// Idle or Warning the next break is recomputed from anchor + new interval; if
// that moves the warning back into the future, the phase returns to Idle and
// the warning will fire again.
func (s *Scheduler) Reload(cfg *config.Config, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adoptConfig(cfg)

	if (s.phase == PhaseIdle || s.phase == PhaseWarning) && s.warned && !s.startEmitted {
		if now.Before(s.warningAt()) {
			s.phase = PhaseIdle
			s.warned = false
		}
	}
	s.publishLocked()
}

// Snooze extends the current Idle phase by extra. It fails with
// ErrInvalidState once the warning has fired or a break is in progress.
func (s *Scheduler) Snooze(extra time.Duration) error {
	if extra <= 0 {
		return ferrors.ValidationError("snooze duration must be positive").Build()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseIdle {
		return ErrInvalidState
	}
	s.snoozeExtra += extra
	s.publishLocked()
	return nil
}

// SetInterval re-anchors the schedule at now with a one-shot interval
// override; the configured interval applies again after the next break. It
// fails with ErrInvalidState while a break start is awaiting acknowledgement:
// re-anchoring then would orphan the acknowledgement and leave the cycle
// latched with no deadline.
func (s *Scheduler) SetInterval(d time.Duration, now time.Time) error {
	if d <= 0 {
		return ferrors.ValidationError("interval must be positive").Build()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if (s.phase != PhaseIdle && s.phase != PhaseWarning) || s.startEmitted {
		return ErrInvalidState
	}
	s.anchor = now
	s.intervalOverride = d
	s.snoozeExtra = 0
	s.phase = PhaseIdle
	s.warned = false
	s.publishLocked()
	return nil
}

// Reset re-anchors the schedule at now, discarding any snooze or override.
// Used for the ctl reset command and after suspend resume. Like SetInterval
// it refuses while a break start is in flight; the break is already
// happening, re-anchor once it ends.
func (s *Scheduler) Reset(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseBreakActive || s.phase == PhaseBreakEnding || s.startEmitted {
		return ErrInvalidState
	}
	s.anchor = now
	s.phase = PhaseIdle
	s.resetCycleLocked()
	s.publishLocked()
	return nil
}

// SkipToBreak makes the next Tick start a break immediately. The tick loop
// remains the only path into PhaseBreakActive.
func (s *Scheduler) SkipToBreak(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if (s.phase != PhaseIdle && s.phase != PhaseWarning) || s.startEmitted {
		return ErrInvalidState
	}
	s.anchor = now.Add(-s.effectiveInterval())
	s.publishLocked()
	return nil
}

// SkipBreak ends the active break early: the next Tick emits ActionEndBreak.
func (s *Scheduler) SkipBreak(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseBreakActive {
		return ErrInvalidState
	}
	s.breakEndsAt = now
	s.publishLocked()
	return nil
}

// MarkLockLost records that the lock surface for the active break was lost
// out of band. The break stays logically active in degraded mode.
func (s *Scheduler) MarkLockLost() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseBreakActive {
		s.degraded = true
		s.publishLocked()
	}
}

// Remaining returns the time until the next break starts (Idle/Warning) or
// until the active break ends.
func (s *Scheduler) Remaining(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	var until time.Time
	switch s.phase {
	case PhaseBreakActive, PhaseBreakEnding:
		until = s.breakEndsAt
	default:
		until = s.breakAt()
	}
	if d := until.Sub(now); d > 0 {
		return d
	}
	return 0
}

// NextDeadline returns the next instant at which Tick has work to do, so the
// daemon loop can sleep precisely instead of polling.
func (s *Scheduler) NextDeadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseBreakActive:
		return s.breakEndsAt
	case PhaseBreakEnding:
		return time.Time{} // waiting on acknowledgement, no timer needed
	default:
		if s.startEmitted {
			return time.Time{} // break start in flight
		}
		if !s.warned {
			return s.warningAt()
		}
		return s.breakAt()
	}
}

// Status returns the last published snapshot. Safe for concurrent use.
func (s *Scheduler) Status() Snapshot {
	if v := s.status.Load(); v != nil {
		return v.(Snapshot)
	}
	return Snapshot{}
}

// publishLocked swaps in a fresh status snapshot. Callers must hold s.mu.
func (s *Scheduler) publishLocked() {
	s.status.Store(Snapshot{
		Phase:       s.phase,
		Anchor:      s.anchor,
		ConfigHash:  s.configHash,
		BreakID:     s.breakID,
		NextWarning: s.warningAt(),
		NextBreak:   s.breakAt(),
		BreakEndsAt: s.breakEndsAt,
		Degraded:    s.degraded,
	})
}
