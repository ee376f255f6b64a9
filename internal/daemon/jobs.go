package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/breaktimed/internal/activation"
	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
	"git.home.luguber.info/inful/breaktimed/internal/logfields"
)

const (
	autosaveInterval      = time.Minute
	pruneInterval         = 24 * time.Hour
	statusRefreshInterval = 30 * time.Second
)

// startMaintenanceJobs schedules the periodic housekeeping: schedule-state
// autosave (so a crash loses at most a minute of anchor drift), break
// history pruning, and the sd_notify status line (the tick loop sleeps
// until the next deadline, so the remaining time would go stale without it).
func (d *Daemon) startMaintenanceJobs() (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "creating maintenance scheduler").Build()
	}

	if _, err := s.NewJob(
		gocron.DurationJob(autosaveInterval),
		gocron.NewTask(func() { d.saveState(context.Background()) }),
		gocron.WithName("state-autosave"),
	); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "scheduling state autosave").Build()
	}

	if _, err := s.NewJob(
		gocron.DurationJob(pruneInterval),
		gocron.NewTask(func() {
			n, err := d.store.Prune(context.Background())
			if err != nil {
				d.logger.Warn("history prune failed", logfields.Error(err))
				return
			}
			if n > 0 {
				d.logger.Debug("break history pruned", slog.Int64("removed", n))
			}
		}),
		gocron.WithName("history-prune"),
	); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "scheduling history prune").Build()
	}

	if _, err := s.NewJob(
		gocron.DurationJob(statusRefreshInterval),
		gocron.NewTask(func() {
			activation.NotifyStatus(d.statusLine(d.sched.Status(), d.clock()))
		}),
		gocron.WithName("status-refresh"),
	); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "scheduling status refresh").Build()
	}

	s.Start()
	return s, nil
}
