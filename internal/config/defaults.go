package config

import (
	"os"
	"path/filepath"
	"time"
)

// Defaults mirror the values the packaged unit files ship with. The break
// geometry matches the classic 30-minute work block with a short standing
// break; the warning fires two minutes out so a sentence can be finished.
const (
	DefaultBreakInterval  = 30 * time.Minute
	DefaultBreakDuration  = 80 * time.Second
	DefaultWarningLead    = 2 * time.Minute
	DefaultAcquireTimeout = 10 * time.Second
	DefaultMaxRetries     = 3
)

// applyDefaults fills zero values with production defaults. It never
// overrides a value the user set explicitly.
func applyDefaults(cfg *Config) {
	if cfg.Break.Interval <= 0 {
		cfg.Break.Interval = DefaultBreakInterval
	}
	if cfg.Break.Duration <= 0 {
		cfg.Break.Duration = DefaultBreakDuration
	}
	if cfg.Break.WarningLead <= 0 {
		cfg.Break.WarningLead = DefaultWarningLead
	}

	if cfg.Lock.AcquireTimeout <= 0 {
		cfg.Lock.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.Lock.MaxRetries == 0 {
		cfg.Lock.MaxRetries = DefaultMaxRetries
	}
	if cfg.Lock.RetryBackoff == "" {
		cfg.Lock.RetryBackoff = "linear"
	}
	if cfg.Lock.RetryInitial <= 0 {
		cfg.Lock.RetryInitial = time.Second
	}
	if cfg.Lock.RetryMax <= 0 {
		cfg.Lock.RetryMax = 15 * time.Second
	}

	if cfg.Daemon.StateDir == "" {
		cfg.Daemon.StateDir = defaultStateDir()
	}
	if cfg.Daemon.ControlSocket == "" {
		cfg.Daemon.ControlSocket = DefaultControlSocket()
	}

	cfg.Monitoring.Logging.Level = NormalizeLogLevel(string(cfg.Monitoring.Logging.Level))
	cfg.Monitoring.Logging.Format = NormalizeLogFormat(string(cfg.Monitoring.Logging.Format))

	if cfg.Monitoring.Metrics.Enabled && cfg.Monitoring.Metrics.Listen == "" {
		cfg.Monitoring.Metrics.Listen = "127.0.0.1:9297"
	}

	if cfg.Export != nil && cfg.Export.Enabled && cfg.Export.Subject == "" {
		cfg.Export.Subject = "breaktimed.events"
	}
}

// DefaultControlSocket is where the control socket lives when systemd did not
// hand one over.
func DefaultControlSocket() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "breaktimed.sock")
	}
	return filepath.Join(os.TempDir(), "breaktimed.sock")
}

func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "breaktimed")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "breaktimed-state"
	}
	return filepath.Join(home, ".local", "state", "breaktimed")
}
