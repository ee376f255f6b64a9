package compositor

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
	"git.home.luguber.info/inful/breaktimed/internal/logfields"
)

// MonitorPower switches displays off for the duration of a break and back on
// afterwards. Failures are warnings; a break works fine with the screens on.
type MonitorPower struct {
	compositor string
	logger     *slog.Logger
}

// NewMonitorPower builds power control for the detected compositor.
func NewMonitorPower(logger *slog.Logger) *MonitorPower {
	if logger == nil {
		logger = slog.Default()
	}
	return &MonitorPower{compositor: DetectCompositor(), logger: logger}
}

// Supported reports whether the detected compositor has a power command.
func (m *MonitorPower) Supported() bool {
	return m.compositor == "niri" || m.compositor == "sway" || m.compositor == "hyprland"
}

// Off powers all monitors down.
func (m *MonitorPower) Off(ctx context.Context) error {
	return m.run(ctx, false)
}

// On powers all monitors back up.
func (m *MonitorPower) On(ctx context.Context) error {
	return m.run(ctx, true)
}

func (m *MonitorPower) run(ctx context.Context, on bool) error {
	var cmd *exec.Cmd
	switch m.compositor {
	case "niri":
		action := "power-off-monitors"
		if on {
			action = "power-on-monitors"
		}
		cmd = exec.CommandContext(ctx, "niri", "msg", "action", action)
	case "sway":
		state := "off"
		if on {
			state = "on"
		}
		cmd = exec.CommandContext(ctx, "swaymsg", "output", "*", "power", state)
	case "hyprland":
		state := "off"
		if on {
			state = "on"
		}
		cmd = exec.CommandContext(ctx, "hyprctl", "dispatch", "dpms", state)
	default:
		return ferrors.CompositorError("monitor power control not supported").
			WithSeverity(ferrors.SeverityWarning).
			WithContext("compositor", m.compositor).
			Build()
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		m.logger.Warn("monitor power command failed",
			logfields.Error(err), slog.String("output", strings.TrimSpace(string(out))))
		return ferrors.WrapError(err, ferrors.CategoryCompositor, "monitor power command failed").
			WithSeverity(ferrors.SeverityWarning).
			Build()
	}
	return nil
}

// SessionLockedHint asks logind whether the session is marked locked. Used by
// status output to cross-check a degraded break.
func SessionLockedHint(ctx context.Context) (bool, error) {
	session := os.Getenv("XDG_SESSION_ID")
	if session == "" {
		session = "auto"
	}
	out, err := exec.CommandContext(ctx, "loginctl", "show-session", session,
		"--property=LockedHint", "--value").Output()
	if err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryCompositor, "loginctl query failed").
			WithSeverity(ferrors.SeverityWarning).
			Build()
	}
	return strings.TrimSpace(string(out)) == "yes", nil
}
