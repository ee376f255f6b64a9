// Package compositor talks to the running Wayland compositor: it provides the
// exec-driven session lock driver and monitor power control. Nothing here is
// compositor-API specific; everything goes through the helper binaries the
// session already has (swaylock, niri, swaymsg, hyprctl, loginctl).
package compositor

import (
	"os"
	"os/exec"

	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
)

// lockHelpers is the autodetection preference order.
var lockHelpers = []string{"swaylock", "hyprlock", "waylock"}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// ResolveLockHelper picks the lock helper binary. An explicit name must exist
// in PATH; "auto" (or empty) walks the known helpers in preference order.
func ResolveLockHelper(preferred string) (string, error) {
	if preferred != "" && preferred != "auto" {
		if commandExists(preferred) {
			return preferred, nil
		}
		return "", ferrors.CompositorError("configured lock helper not found in PATH").
			WithContext("locker", preferred).
			UserAction().
			Build()
	}
	for _, h := range lockHelpers {
		if commandExists(h) {
			return h, nil
		}
	}
	return "", ferrors.CompositorError("no session lock helper found in PATH").
		UserAction().
		Build()
}

// DetectCompositor identifies the running compositor from its session
// environment. Used to pick the monitor power command.
func DetectCompositor() string {
	switch {
	case os.Getenv("NIRI_SOCKET") != "":
		return "niri"
	case os.Getenv("SWAYSOCK") != "":
		return "sway"
	case os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != "":
		return "hyprland"
	}
	return "unknown"
}

// SessionIsWayland reports whether the process runs inside a Wayland session.
func SessionIsWayland() bool {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return true
	}
	return os.Getenv("XDG_SESSION_TYPE") == "wayland"
}
