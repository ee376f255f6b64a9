package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// loadEnvFile loads environment variables from .env/.env.local files.
// Existing process environment variables are not overwritten; the first file
// that parses wins. Missing files are not an error.
func loadEnvFile() {
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err == nil {
			return
		}
	}
}

// applyEnvOverrides applies BREAKTIMED_* environment overrides on top of the
// file-based configuration. The override surface is deliberately small: the
// values an ops script or a test harness plausibly needs to pin.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BREAKTIMED_BREAK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Break.Interval = d
		}
	}
	if v := os.Getenv("BREAKTIMED_BREAK_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Break.Duration = d
		}
	}
	if v := os.Getenv("BREAKTIMED_BLOCKING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Break.BlockingEnabled = b
		}
	}
	if v := os.Getenv("BREAKTIMED_CONTROL_SOCKET"); v != "" {
		cfg.Daemon.ControlSocket = v
	}
	if v := os.Getenv("BREAKTIMED_STATE_DIR"); v != "" {
		cfg.Daemon.StateDir = v
	}
	if v := os.Getenv("BREAKTIMED_LOG_LEVEL"); v != "" {
		cfg.Monitoring.Logging.Level = NormalizeLogLevel(v)
	}
}
