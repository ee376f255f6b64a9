package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/breaktimed/internal/config"
	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
)

func testConfig(interval, lead, duration time.Duration) *config.Config {
	cfg := &config.Config{}
	cfg.Break.Interval = interval
	cfg.Break.WarningLead = lead
	cfg.Break.Duration = duration
	cfg.Break.BlockingEnabled = true
	return cfg
}

var base = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

// startBreak drives a fresh scheduler into PhaseBreakActive and returns the
// break ID. The break starts at base+interval.
func startBreak(t *testing.T, s *Scheduler, startAt time.Time) string {
	t.Helper()
	actions := s.Tick(startAt)
	require.NotEmpty(t, actions)
	start := actions[len(actions)-1]
	require.Equal(t, ActionStartBreak, start.Kind)
	s.Acknowledge(ActionResult{Kind: ActionStartBreak, BreakID: start.BreakID, At: startAt})
	require.Equal(t, PhaseBreakActive, s.Status().Phase)
	return start.BreakID
}

func TestSchedulerFullCycle(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)

	require.Empty(t, s.Tick(base))
	require.Empty(t, s.Tick(base.Add(27*time.Minute+59*time.Second)))

	actions := s.Tick(base.Add(28 * time.Minute))
	require.Len(t, actions, 1)
	assert.Equal(t, ActionEmitWarning, actions[0].Kind)
	assert.Equal(t, 2*time.Minute, actions[0].Lead)
	assert.Equal(t, PhaseWarning, s.Status().Phase)

	// same instant again emits nothing
	require.Empty(t, s.Tick(base.Add(28*time.Minute)))

	actions = s.Tick(base.Add(30 * time.Minute))
	require.Len(t, actions, 1)
	require.Equal(t, ActionStartBreak, actions[0].Kind)
	assert.Equal(t, 5*time.Minute, actions[0].Duration)
	assert.True(t, actions[0].Blocking)
	assert.NotEmpty(t, actions[0].BreakID)

	// start stays pending until acknowledged, and is not re-emitted
	require.Empty(t, s.Tick(base.Add(30*time.Minute+5*time.Second)))
	assert.Equal(t, PhaseWarning, s.Status().Phase)

	s.Acknowledge(ActionResult{Kind: ActionStartBreak, BreakID: actions[0].BreakID, At: base.Add(30 * time.Minute)})
	assert.Equal(t, PhaseBreakActive, s.Status().Phase)

	require.Empty(t, s.Tick(base.Add(34*time.Minute)))

	actions = s.Tick(base.Add(35 * time.Minute))
	require.Len(t, actions, 1)
	require.Equal(t, ActionEndBreak, actions[0].Kind)
	assert.Equal(t, PhaseBreakEnding, s.Status().Phase)

	s.Acknowledge(ActionResult{Kind: ActionEndBreak, BreakID: actions[0].BreakID, At: base.Add(35 * time.Minute)})
	st := s.Status()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Empty(t, st.BreakID)

	// the next cycle counts from the previous break start
	assert.Equal(t, base.Add(58*time.Minute), st.NextWarning)
	assert.Equal(t, base.Add(60*time.Minute), st.NextBreak)
}

func TestTickWarningFiresBeforeStartWhenBothDue(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)

	// first tick after a long gap crosses both thresholds at once
	actions := s.Tick(base.Add(31 * time.Minute))
	require.Len(t, actions, 2)
	assert.Equal(t, ActionEmitWarning, actions[0].Kind)
	assert.Equal(t, time.Duration(0), actions[0].Lead)
	assert.Equal(t, ActionStartBreak, actions[1].Kind)
}

func TestReloadNeverShortensActiveBreak(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)
	s.Tick(base.Add(28 * time.Minute))
	startBreak(t, s, base.Add(30*time.Minute))

	endsAt := s.Status().BreakEndsAt
	require.Equal(t, base.Add(35*time.Minute), endsAt)

	s.Reload(testConfig(10*time.Minute, time.Minute, time.Second), base.Add(31*time.Minute))

	require.Empty(t, s.Tick(base.Add(32*time.Minute)))
	assert.Equal(t, endsAt, s.Status().BreakEndsAt)

	actions := s.Tick(base.Add(35 * time.Minute))
	require.Len(t, actions, 1)
	assert.Equal(t, ActionEndBreak, actions[0].Kind)
}

func TestReloadMovesWarningBackToIdle(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)
	s.Tick(base.Add(28 * time.Minute))
	require.Equal(t, PhaseWarning, s.Status().Phase)

	// a longer interval puts the warning back in the future; it fires again
	s.Reload(testConfig(45*time.Minute, 2*time.Minute, 5*time.Minute), base.Add(28*time.Minute+30*time.Second))
	assert.Equal(t, PhaseIdle, s.Status().Phase)

	require.Empty(t, s.Tick(base.Add(40*time.Minute)))
	actions := s.Tick(base.Add(43 * time.Minute))
	require.Len(t, actions, 1)
	assert.Equal(t, ActionEmitWarning, actions[0].Kind)
}

func TestSnoozeOnlyWhileIdle(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)

	require.NoError(t, s.Snooze(10*time.Minute))
	require.Empty(t, s.Tick(base.Add(28*time.Minute)))

	actions := s.Tick(base.Add(38 * time.Minute))
	require.Len(t, actions, 1)
	require.Equal(t, ActionEmitWarning, actions[0].Kind)

	// warning already fired
	require.ErrorIs(t, s.Snooze(5*time.Minute), ErrInvalidState)

	startBreak(t, s, base.Add(40*time.Minute))
	require.ErrorIs(t, s.Snooze(5*time.Minute), ErrInvalidState)
}

func TestSnoozeRejectsNonPositive(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)
	err := s.Snooze(0)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	assert.NotErrorIs(t, err, ErrInvalidState)
}

func TestSnoozeClearedAfterBreak(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)
	require.NoError(t, s.Snooze(10*time.Minute))

	actions := s.Tick(base.Add(40 * time.Minute))
	id := actions[len(actions)-1].BreakID
	s.Acknowledge(ActionResult{Kind: ActionStartBreak, BreakID: id, At: base.Add(40 * time.Minute)})
	s.Tick(base.Add(45 * time.Minute))
	s.Acknowledge(ActionResult{Kind: ActionEndBreak, BreakID: id, At: base.Add(45 * time.Minute)})

	st := s.Status()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, base.Add(70*time.Minute), st.NextBreak)
}

func TestSkipToBreak(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)

	require.NoError(t, s.SkipToBreak(base.Add(5*time.Minute)))

	actions := s.Tick(base.Add(5 * time.Minute))
	require.Len(t, actions, 2)
	assert.Equal(t, ActionEmitWarning, actions[0].Kind)
	assert.Equal(t, ActionStartBreak, actions[1].Kind)

	s.Acknowledge(ActionResult{Kind: ActionStartBreak, BreakID: actions[1].BreakID, At: base.Add(5 * time.Minute)})
	require.ErrorIs(t, s.SkipToBreak(base.Add(6*time.Minute)), ErrInvalidState)
}

func TestSkipBreakEndsEarly(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)
	require.ErrorIs(t, s.SkipBreak(base), ErrInvalidState)

	id := startBreak(t, s, base.Add(30*time.Minute))

	require.NoError(t, s.SkipBreak(base.Add(31*time.Minute)))
	actions := s.Tick(base.Add(31 * time.Minute))
	require.Len(t, actions, 1)
	assert.Equal(t, ActionEndBreak, actions[0].Kind)
	assert.Equal(t, id, actions[0].BreakID)
}

func TestSetIntervalOneShot(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)

	require.NoError(t, s.SetInterval(10*time.Minute, base))
	assert.Equal(t, base.Add(10*time.Minute), s.Status().NextBreak)

	actions := s.Tick(base.Add(10 * time.Minute))
	id := actions[len(actions)-1].BreakID
	s.Acknowledge(ActionResult{Kind: ActionStartBreak, BreakID: id, At: base.Add(10 * time.Minute)})
	s.Tick(base.Add(15 * time.Minute))
	s.Acknowledge(ActionResult{Kind: ActionEndBreak, BreakID: id, At: base.Add(15 * time.Minute)})

	// the override does not survive the break
	assert.Equal(t, base.Add(40*time.Minute), s.Status().NextBreak)
}

func TestResetNotAllowedDuringBreak(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)
	startBreak(t, s, base.Add(30*time.Minute))
	require.ErrorIs(t, s.Reset(base.Add(31*time.Minute)), ErrInvalidState)
}

func TestResetReanchors(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)
	require.NoError(t, s.Snooze(10*time.Minute))
	s.Tick(base.Add(38 * time.Minute))

	require.NoError(t, s.Reset(base.Add(39*time.Minute)))
	st := s.Status()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, base.Add(39*time.Minute+30*time.Minute), st.NextBreak)
}

func TestResumeClampsStaleAnchor(t *testing.T) {
	cfg := testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute)

	// recent anchor is kept
	s := Resume(cfg, base, base.Add(10*time.Minute))
	assert.Equal(t, base.Add(30*time.Minute), s.Status().NextBreak)

	// an anchor a full interval in the past re-anchors at now
	now := base.Add(3 * time.Hour)
	s = Resume(cfg, base, now)
	assert.Equal(t, now.Add(30*time.Minute), s.Status().NextBreak)

	s = Resume(cfg, time.Time{}, now)
	assert.Equal(t, now.Add(30*time.Minute), s.Status().NextBreak)
}

func TestDegradedBreak(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)
	actions := s.Tick(base.Add(30 * time.Minute))
	start := actions[len(actions)-1]

	s.Acknowledge(ActionResult{Kind: ActionStartBreak, BreakID: start.BreakID, Degraded: true, At: base.Add(30 * time.Minute)})
	st := s.Status()
	assert.Equal(t, PhaseBreakActive, st.Phase)
	assert.True(t, st.Degraded)

	// the break still ends on schedule
	actions = s.Tick(base.Add(35 * time.Minute))
	require.Len(t, actions, 1)
	assert.Equal(t, ActionEndBreak, actions[0].Kind)
}

func TestMarkLockLost(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)

	// no-op outside a break
	s.MarkLockLost()
	assert.False(t, s.Status().Degraded)

	startBreak(t, s, base.Add(30*time.Minute))
	s.MarkLockLost()
	assert.True(t, s.Status().Degraded)
}

func TestStaleAcknowledgementsIgnored(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)

	// ack before any start was emitted
	assert.False(t, s.Acknowledge(ActionResult{Kind: ActionStartBreak, BreakID: "bogus", At: base}))
	assert.Equal(t, PhaseIdle, s.Status().Phase)

	id := startBreak(t, s, base.Add(30*time.Minute))

	// duplicate start ack
	assert.False(t, s.Acknowledge(ActionResult{Kind: ActionStartBreak, BreakID: id, At: base.Add(30 * time.Minute)}))
	assert.Equal(t, PhaseBreakActive, s.Status().Phase)

	// end ack before the end was emitted
	assert.False(t, s.Acknowledge(ActionResult{Kind: ActionEndBreak, BreakID: id, At: base.Add(32 * time.Minute)}))
	assert.Equal(t, PhaseBreakActive, s.Status().Phase)

	s.Tick(base.Add(35 * time.Minute))
	assert.True(t, s.Acknowledge(ActionResult{Kind: ActionEndBreak, BreakID: id, At: base.Add(35 * time.Minute)}))
	assert.Equal(t, PhaseIdle, s.Status().Phase)

	// a start ack arriving after the break ended must not revive it
	assert.False(t, s.Acknowledge(ActionResult{Kind: ActionStartBreak, BreakID: id, At: base.Add(35 * time.Minute)}))
	assert.Equal(t, PhaseIdle, s.Status().Phase)
}

// A control command landing between Tick emitting a StartBreak and the loop
// acknowledging it must not re-anchor the cycle: that would strand the latched
// start with no deadline and no further breaks.
func TestControlCommandsRejectedWhileStartInFlight(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)

	now := base.Add(30 * time.Minute)
	actions := s.Tick(now)
	require.NotEmpty(t, actions)
	start := actions[len(actions)-1]
	require.Equal(t, ActionStartBreak, start.Kind)

	assert.ErrorIs(t, s.SetInterval(10*time.Minute, now), ErrInvalidState)
	assert.ErrorIs(t, s.Reset(now), ErrInvalidState)
	assert.ErrorIs(t, s.SkipToBreak(now), ErrInvalidState)
	assert.ErrorIs(t, s.Snooze(time.Minute), ErrInvalidState)

	// the pending start is still wanted and completes normally
	assert.True(t, s.Acknowledge(ActionResult{Kind: ActionStartBreak, BreakID: start.BreakID, At: now}))
	assert.Equal(t, PhaseBreakActive, s.Status().Phase)
	assert.Equal(t, now.Add(5*time.Minute), s.NextDeadline())

	s.Tick(now.Add(5 * time.Minute))
	assert.True(t, s.Acknowledge(ActionResult{Kind: ActionEndBreak, BreakID: start.BreakID, At: now.Add(5 * time.Minute)}))

	// and the cycle keeps scheduling afterwards
	assert.Equal(t, base.Add(58*time.Minute), s.NextDeadline())
	next := s.Tick(base.Add(60 * time.Minute))
	require.NotEmpty(t, next)
	assert.Equal(t, ActionStartBreak, next[len(next)-1].Kind)
}

func TestWarningCarriesBreakID(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)

	warn := s.Tick(base.Add(28 * time.Minute))
	require.Len(t, warn, 1)
	require.NotEmpty(t, warn[0].BreakID)

	start := s.Tick(base.Add(30 * time.Minute))
	require.Len(t, start, 1)
	assert.Equal(t, warn[0].BreakID, start[0].BreakID, "warning announces the break it precedes")
}

func TestWarningLeadClampedToHalfInterval(t *testing.T) {
	s := New(testConfig(10*time.Minute, 15*time.Minute, time.Minute), base)
	assert.Equal(t, base.Add(5*time.Minute), s.Status().NextWarning)
	assert.Equal(t, base.Add(10*time.Minute), s.Status().NextBreak)
}

func TestNextDeadline(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)
	assert.Equal(t, base.Add(28*time.Minute), s.NextDeadline())

	s.Tick(base.Add(28 * time.Minute))
	assert.Equal(t, base.Add(30*time.Minute), s.NextDeadline())

	actions := s.Tick(base.Add(30 * time.Minute))
	assert.True(t, s.NextDeadline().IsZero(), "start in flight needs no timer")

	s.Acknowledge(ActionResult{Kind: ActionStartBreak, BreakID: actions[0].BreakID, At: base.Add(30 * time.Minute)})
	assert.Equal(t, base.Add(35*time.Minute), s.NextDeadline())

	s.Tick(base.Add(35 * time.Minute))
	assert.True(t, s.NextDeadline().IsZero(), "release in flight needs no timer")
}

func TestRemaining(t *testing.T) {
	s := New(testConfig(30*time.Minute, 2*time.Minute, 5*time.Minute), base)
	assert.Equal(t, 30*time.Minute, s.Remaining(base))
	assert.Equal(t, 2*time.Minute, s.Remaining(base.Add(28*time.Minute)))

	startBreak(t, s, base.Add(30*time.Minute))
	assert.Equal(t, 3*time.Minute, s.Remaining(base.Add(32*time.Minute)))
	assert.Equal(t, time.Duration(0), s.Remaining(base.Add(40*time.Minute)))
}
