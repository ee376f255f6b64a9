// Package notify delivers user-facing cues around breaks: desktop
// notifications over D-Bus and sound playback. Delivery is best effort; a
// failed cue never affects the schedule.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/breaktimed/internal/logfields"
	"git.home.luguber.info/inful/breaktimed/internal/metrics"
)

// Notifier is one delivery channel for break cues.
type Notifier interface {
	Name() string
	Warn(ctx context.Context, lead time.Duration) error
	BreakStarted(ctx context.Context, d time.Duration) error
	BreakEnded(ctx context.Context) error
}

// Multi fans a cue out to every configured channel. Failures are logged and
// counted but never propagated; the remaining channels still fire.
type Multi struct {
	channels []Notifier
	logger   *slog.Logger
	recorder metrics.Recorder
}

// NewMulti builds the fan-out. Nil logger and recorder get safe defaults.
func NewMulti(logger *slog.Logger, rec metrics.Recorder, channels ...Notifier) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Multi{channels: channels, logger: logger, recorder: rec}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Warn(ctx context.Context, lead time.Duration) error {
	m.each(ctx, "warn", func(n Notifier) error { return n.Warn(ctx, lead) })
	return nil
}

func (m *Multi) BreakStarted(ctx context.Context, d time.Duration) error {
	m.each(ctx, "break_started", func(n Notifier) error { return n.BreakStarted(ctx, d) })
	return nil
}

func (m *Multi) BreakEnded(ctx context.Context) error {
	m.each(ctx, "break_ended", func(n Notifier) error { return n.BreakEnded(ctx) })
	return nil
}

func (m *Multi) each(ctx context.Context, cue string, fn func(Notifier) error) {
	for _, n := range m.channels {
		if ctx.Err() != nil {
			return
		}
		if err := fn(n); err != nil {
			m.recorder.IncNotifierFailure(n.Name())
			m.logger.Warn("notification delivery failed",
				logfields.Event(cue), slog.String("channel", n.Name()), logfields.Error(err))
		}
	}
}

func formatMinutes(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Round(time.Second).Seconds()))
	}
	m := int(d.Round(time.Minute).Minutes())
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
