package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBreakID     = "break_id"
	KeyPhase       = "phase"
	KeyEvent       = "event"
	KeyCommand     = "command"
	KeyRemaining   = "remaining"
	KeyDurationMS  = "duration_ms"
	KeyAttempt     = "attempt"
	KeyLocker      = "locker"
	KeyConfigHash  = "config_hash"
	KeySocket      = "socket"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BreakID(id string) slog.Attr          { return slog.String(KeyBreakID, id) }
func Phase(p string) slog.Attr             { return slog.String(KeyPhase, p) }
func Event(e string) slog.Attr             { return slog.String(KeyEvent, e) }
func Command(c string) slog.Attr           { return slog.String(KeyCommand, c) }
func Remaining(d time.Duration) slog.Attr  { return slog.Duration(KeyRemaining, d) }
func DurationMS(ms float64) slog.Attr      { return slog.Float64(KeyDurationMS, ms) }
func Attempt(n int) slog.Attr              { return slog.Int(KeyAttempt, n) }
func Locker(name string) slog.Attr         { return slog.String(KeyLocker, name) }
func ConfigHash(h string) slog.Attr        { return slog.String(KeyConfigHash, h) }
func Socket(path string) slog.Attr         { return slog.String(KeySocket, path) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
