package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"git.home.luguber.info/inful/breaktimed/internal/activation"
	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
	"git.home.luguber.info/inful/breaktimed/internal/logfields"
	"git.home.luguber.info/inful/breaktimed/internal/observability"
	"git.home.luguber.info/inful/breaktimed/internal/schedule"
	"git.home.luguber.info/inful/breaktimed/internal/version"
)

// StatusReport is the JSON payload behind the status command and the admin
// /status endpoint.
type StatusReport struct {
	Version     string    `json:"version"`
	Phase       string    `json:"phase"`
	Degraded    bool      `json:"degraded,omitempty"`
	BreakID     string    `json:"break_id,omitempty"`
	NextWarning time.Time `json:"next_warning"`
	NextBreak   time.Time `json:"next_break"`
	BreakEndsAt time.Time `json:"break_ends_at,omitempty"`
	Remaining   string    `json:"remaining"`
	Locker      string    `json:"locker"`
	ConfigHash  string    `json:"config_hash"`
	Uptime      string    `json:"uptime"`
}

// HandleCommand implements activation.Handler. Runs on the control server
// goroutine; every scheduler call here is safe against the tick loop, and the
// loop gets poked afterwards so deadline changes take effect immediately.
func (d *Daemon) HandleCommand(ctx context.Context, cmd activation.Command) (string, error) {
	d.touchActivity()
	defer d.poke()

	now := d.clock()
	cctx := observability.WithCommand(ctx, string(cmd.Verb))

	switch cmd.Verb {
	case activation.VerbBreak:
		if err := d.sched.SkipToBreak(now); err != nil {
			return "", err
		}
		observability.InfoContext(cctx, "break requested")
		return "break starting", nil

	case activation.VerbSkip:
		d.pendingSkip.Store(true)
		if err := d.sched.SkipBreak(now); err != nil {
			d.pendingSkip.Store(false)
			return "", err
		}
		observability.InfoContext(cctx, "break skipped")
		return "break skipped", nil

	case activation.VerbReset:
		if err := d.sched.Reset(now); err != nil {
			return "", err
		}
		observability.InfoContext(cctx, "schedule reset")
		return "schedule reset", nil

	case activation.VerbGet:
		remaining := d.sched.Remaining(now)
		if cmd.Raw {
			return fmt.Sprintf("%d", int(math.Ceil(remaining.Minutes()))), nil
		}
		snap := d.sched.Status()
		if snap.Phase == schedule.PhaseBreakActive || snap.Phase == schedule.PhaseBreakEnding {
			return fmt.Sprintf("on break, %s remaining", remaining.Round(time.Second)), nil
		}
		return fmt.Sprintf("next break in %s", remaining.Round(time.Second)), nil

	case activation.VerbSet:
		if err := d.sched.SetInterval(time.Duration(cmd.Minutes)*time.Minute, now); err != nil {
			return "", err
		}
		observability.InfoContext(cctx, "interval override set",
			logfields.Remaining(time.Duration(cmd.Minutes)*time.Minute))
		return fmt.Sprintf("next break in %d minutes", cmd.Minutes), nil

	case activation.VerbSnooze:
		if err := d.sched.Snooze(time.Duration(cmd.Minutes) * time.Minute); err != nil {
			return "", err
		}
		observability.InfoContext(cctx, "break snoozed",
			logfields.Remaining(time.Duration(cmd.Minutes)*time.Minute))
		return fmt.Sprintf("snoozed %d minutes", cmd.Minutes), nil

	case activation.VerbStatus:
		payload, err := json.Marshal(d.statusReport(now))
		if err != nil {
			return "", ferrors.WrapError(err, ferrors.CategoryInternal, "marshaling status").Build()
		}
		return string(payload), nil
	}

	return "", ferrors.ValidationError("unknown command").Build()
}

func (d *Daemon) statusReport(now time.Time) StatusReport {
	snap := d.sched.Status()
	return StatusReport{
		Version:     version.Version,
		Phase:       string(snap.Phase),
		Degraded:    snap.Degraded,
		BreakID:     snap.BreakID,
		NextWarning: snap.NextWarning,
		NextBreak:   snap.NextBreak,
		BreakEndsAt: snap.BreakEndsAt,
		Remaining:   d.sched.Remaining(now).Round(time.Second).String(),
		Locker:      d.currentLockerName(),
		ConfigHash:  snap.ConfigHash,
		Uptime:      now.Sub(d.startedAt).Round(time.Second).String(),
	}
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if d.sched.Status().Degraded {
		status = "degraded"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  status,
		"version": version.Version,
	})
}

func (d *Daemon) handleStatusHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(d.statusReport(d.clock()))
}
