package daemon

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/breaktimed/internal/activation"
	"git.home.luguber.info/inful/breaktimed/internal/compositor"
	"git.home.luguber.info/inful/breaktimed/internal/events"
	"git.home.luguber.info/inful/breaktimed/internal/locker"
	"git.home.luguber.info/inful/breaktimed/internal/logfields"
	"git.home.luguber.info/inful/breaktimed/internal/metrics"
	"git.home.luguber.info/inful/breaktimed/internal/observability"
	"git.home.luguber.info/inful/breaktimed/internal/schedule"
	"git.home.luguber.info/inful/breaktimed/internal/statestore"
)

// idleCheckInterval is how often the loop re-evaluates idle exit.
const idleCheckInterval = 30 * time.Second

// runLoop is the single writer of the scheduler. It ticks on deadlines and on
// pokes from control commands, reloads, and resume events.
func (d *Daemon) runLoop(ctx context.Context) {
	prevPhase := d.sched.Status().Phase

	for {
		now := d.clock()
		for _, act := range d.sched.Tick(now) {
			d.execute(ctx, act)
			if ctx.Err() != nil {
				return
			}
		}

		snap := d.sched.Status()
		d.recorder.SetPhase(string(snap.Phase))
		if snap.Phase != prevPhase {
			_ = d.bus.Publish(ctx, events.PhaseChanged{
				BreakID:   snap.BreakID,
				From:      string(prevPhase),
				To:        string(snap.Phase),
				At:        now,
				NextBreak: snap.NextBreak,
			})
			prevPhase = snap.Phase
		}
		activation.NotifyStatus(d.statusLine(snap, now))

		var timerC, idleC <-chan time.Time
		var timer, idleTimer *time.Timer
		if dl := d.sched.NextDeadline(); !dl.IsZero() {
			wait := dl.Sub(d.clock())
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
			timerC = timer.C
		}
		if d.config().Daemon.IdleExit > 0 && snap.Phase == schedule.PhaseIdle {
			idleTimer = time.NewTimer(idleCheckInterval)
			idleC = idleTimer.C
		}

		stop := func() {
			if timer != nil {
				timer.Stop()
			}
			if idleTimer != nil {
				idleTimer.Stop()
			}
		}

		select {
		case <-ctx.Done():
			stop()
			return
		case <-d.wake:
		case <-timerC:
		case <-idleC:
			if d.shouldIdleExit() {
				stop()
				d.logger.Info("idle exit, handing lifecycle back to socket activation")
				return
			}
		}
		stop()
	}
}

// shouldIdleExit allows a socket-activated instance to get out of the way
// when nobody talks to it and no break is near. State was persisted, so the
// next activation resumes the cycle.
func (d *Daemon) shouldIdleExit() bool {
	cfg := d.config()
	if cfg.Daemon.IdleExit <= 0 {
		return false
	}
	snap := d.sched.Status()
	if snap.Phase != schedule.PhaseIdle {
		return false
	}
	if d.idleFor() < cfg.Daemon.IdleExit {
		return false
	}
	// stay alive when the warning is closer than the idle window
	return d.clock().Add(cfg.Daemon.IdleExit).Before(snap.NextWarning)
}

func (d *Daemon) execute(ctx context.Context, act schedule.Action) {
	switch act.Kind {
	case schedule.ActionEmitWarning:
		d.emitWarning(ctx, act)
	case schedule.ActionStartBreak:
		d.startBreak(ctx, act)
	case schedule.ActionEndBreak:
		d.endBreak(ctx, act)
	}
}

func (d *Daemon) emitWarning(ctx context.Context, act schedule.Action) {
	now := d.clock()
	observability.InfoContext(ctx, "break warning", logfields.Remaining(act.Lead))
	_ = d.bus.Publish(ctx, events.WarningDue{BreakID: act.BreakID, LeadTime: act.Lead, At: now})
	_ = d.currentNotifier().Warn(ctx, act.Lead)
}

func (d *Daemon) startBreak(ctx context.Context, act schedule.Action) {
	now := d.clock()
	bctx := observability.WithBreakID(ctx, act.BreakID)

	d.breakStart = now
	d.pendingSkip.Store(false)
	_ = d.bus.Publish(bctx, events.BreakStarted{
		BreakID:  act.BreakID,
		Duration: act.Duration,
		Blocking: act.Blocking,
		At:       now,
	})

	degraded := false
	if act.Blocking {
		degraded = !d.acquireLock(bctx, act)
		if ctx.Err() != nil {
			return
		}
	}

	cfg := d.config()
	if cfg.Session.TurnOffMonitors {
		if err := d.monitors.Off(bctx); err != nil {
			observability.WarnContext(bctx, "monitor power off failed", logfields.Error(err))
		}
	}
	_ = d.currentNotifier().BreakStarted(bctx, act.Duration)

	accepted := d.sched.Acknowledge(schedule.ActionResult{
		Kind:     schedule.ActionStartBreak,
		BreakID:  act.BreakID,
		Degraded: degraded,
		At:       d.clock(),
	})
	if !accepted {
		// the cycle no longer wants this break; a surface acquired in the
		// meantime must not outlive it
		observability.WarnContext(bctx, "break start acknowledgement rejected, releasing lock surface")
		d.releaseSession(bctx)
		return
	}
	observability.InfoContext(bctx, "break started",
		logfields.Remaining(act.Duration), logfields.Event("break_started"))
}

// acquireLock returns true when the surface is held. A false return is the
// degraded path, announced exactly once here.
func (d *Daemon) acquireLock(ctx context.Context, act schedule.Action) bool {
	orch := d.currentOrch()
	if orch == nil {
		d.announceDegraded(ctx, act.BreakID, 0, "no lock helper available")
		return false
	}

	out := orch.Acquire(ctx)
	if out.Session != nil {
		d.session = out.Session
		d.workers.Go(func() { d.watchLockLoss(ctx, act.BreakID, out.Session) })
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	reason := "lock acquisition failed"
	if out.Err != nil {
		reason = out.Err.Error()
	}
	d.announceDegraded(ctx, act.BreakID, out.Attempts, reason)
	return false
}

func (d *Daemon) announceDegraded(ctx context.Context, breakID string, attempts int, reason string) {
	observability.ErrorContext(ctx, "break is not enforced, screen stays unlocked",
		logfields.Attempt(attempts), logfields.Event("lock_degraded"))
	if locked, err := compositor.SessionLockedHint(ctx); err == nil && locked {
		// something else holds the lock; the break is effectively enforced
		observability.InfoContext(ctx, "logind reports the session locked anyway")
	}
	_ = d.bus.Publish(ctx, events.LockDegraded{
		BreakID:  breakID,
		Attempts: attempts,
		Reason:   reason,
		At:       d.clock(),
	})
}

// watchLockLoss turns an out-of-band surface loss into degraded mode. A
// closed channel without an error is the normal release path.
func (d *Daemon) watchLockLoss(ctx context.Context, breakID string, sess locker.Session) {
	select {
	case <-ctx.Done():
	case err, ok := <-sess.Lost():
		if !ok || err == nil {
			return
		}
		d.sched.MarkLockLost()
		d.recorder.IncLockFailure(metrics.LockLost)
		observability.WarnContext(ctx, "lock surface lost during break", logfields.Error(err))
		_ = d.bus.Publish(ctx, events.LockLost{BreakID: breakID, Reason: err.Error(), At: d.clock()})
		d.poke()
	}
}

// releaseSession dismisses a held lock surface and forgets it. Loop-goroutine
// state only; safe to call with nothing held.
func (d *Daemon) releaseSession(ctx context.Context) {
	if d.session == nil {
		return
	}
	if orch := d.currentOrch(); orch != nil {
		_ = orch.Release(ctx, d.session)
	} else {
		rctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		_ = d.session.Release(rctx)
		cancel()
	}
	d.session = nil
}

func (d *Daemon) endBreak(ctx context.Context, act schedule.Action) {
	now := d.clock()
	bctx := observability.WithBreakID(ctx, act.BreakID)
	skipped := d.pendingSkip.Swap(false)

	d.releaseSession(bctx)

	cfg := d.config()
	if cfg.Session.TurnOffMonitors {
		if err := d.monitors.On(bctx); err != nil {
			observability.WarnContext(bctx, "monitor power on failed", logfields.Error(err))
		}
	}
	_ = d.currentNotifier().BreakEnded(bctx)

	// read degraded before the acknowledgement clears the cycle
	degraded := d.sched.Status().Degraded
	outcome := metrics.OutcomeCompleted
	switch {
	case skipped:
		outcome = metrics.OutcomeSkipped
	case degraded:
		outcome = metrics.OutcomeDegraded
	}
	d.recorder.IncBreakOutcome(outcome)
	if err := d.store.RecordBreak(bctx, statestore.BreakRecord{
		BreakID:   act.BreakID,
		StartedAt: d.breakStart,
		EndedAt:   now,
		Outcome:   string(outcome),
		Degraded:  degraded,
	}); err != nil {
		observability.WarnContext(bctx, "recording break", logfields.Error(err))
	}

	_ = d.bus.Publish(bctx, events.BreakEnded{BreakID: act.BreakID, Skipped: skipped, At: now})
	d.sched.Acknowledge(schedule.ActionResult{
		Kind:    schedule.ActionEndBreak,
		BreakID: act.BreakID,
		At:      now,
	})
	d.saveState(bctx)
	observability.InfoContext(bctx, "break ended", logfields.Event("break_ended"))
}

func (d *Daemon) statusLine(snap schedule.Snapshot, now time.Time) string {
	switch snap.Phase {
	case schedule.PhaseBreakActive, schedule.PhaseBreakEnding:
		return fmt.Sprintf("on break, %s remaining", snap.BreakEndsAt.Sub(now).Round(time.Second))
	default:
		return fmt.Sprintf("next break in %s", snap.NextBreak.Sub(now).Round(time.Second))
	}
}
