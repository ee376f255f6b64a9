package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the full daemon configuration. A loaded Config is treated
// as an immutable snapshot: reload builds a fresh value and the daemon installs
// it with an atomic swap, never mutating one in place.
type Config struct {
	Break      BreakConfig      `yaml:"break"`
	Lock       LockConfig       `yaml:"lock"`
	Notify     NotifyConfig     `yaml:"notify"`
	Session    SessionConfig    `yaml:"session"`
	Daemon     DaemonConfig     `yaml:"daemon"`
	Monitoring MonitoringConfig `yaml:"monitoring,omitempty"`
	Export     *ExportConfig    `yaml:"export,omitempty"`
}

// BreakConfig holds the break schedule the state machine runs on.
type BreakConfig struct {
	Interval        time.Duration `yaml:"interval"`
	Duration        time.Duration `yaml:"duration"`
	WarningLead     time.Duration `yaml:"warning_lead"`
	BlockingEnabled bool          `yaml:"blocking_enabled"`
}

// LockConfig tunes lock-surface acquisition against the compositor.
type LockConfig struct {
	// Locker optionally pins the session-lock client; empty means autodetect.
	Locker         string        `yaml:"locker,omitempty"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	RetryBackoff   string        `yaml:"retry_backoff,omitempty"` // fixed|linear|exponential
	RetryInitial   time.Duration `yaml:"retry_initial,omitempty"`
	RetryMax       time.Duration `yaml:"retry_max,omitempty"`
	MaxRetries     int           `yaml:"max_retries"`
}

// NotifyConfig controls the peripheral break cues.
type NotifyConfig struct {
	Sound        bool   `yaml:"sound"`
	Notification bool   `yaml:"notification"`
	SoundFile    string `yaml:"sound_file,omitempty"`
}

// SessionConfig holds compositor-session side effects around a break.
type SessionConfig struct {
	TurnOffMonitors bool `yaml:"turn_off_monitors"`
}

// DaemonConfig holds the activation and persistence surface.
type DaemonConfig struct {
	// ControlSocket overrides the systemd-passed datagram socket path.
	// Used only when the daemon runs without socket activation.
	ControlSocket string `yaml:"control_socket,omitempty"`
	StateDir      string `yaml:"state_dir,omitempty"`
	// IdleExit stops the process after this long with no break pending and no
	// client traffic, handing the lifecycle back to socket activation.
	// Zero disables idle exit.
	IdleExit time.Duration `yaml:"idle_exit,omitempty"`
}

// MonitoringConfig groups observability settings.
type MonitoringConfig struct {
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen,omitempty"`
}

// ExportConfig configures the optional NATS event mirror.
type ExportConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Load loads configuration from the specified file, applies the environment
// overlay, fills defaults, and validates. The returned Config is ready to use.
func Load(configPath string) (*Config, error) {
	loadEnvFile()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file is a supported setup; the defaults mirror the
			// packaged /etc configuration.
			cfg := &Config{}
			applyDefaults(cfg)
			applyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultPath returns the per-user config path, honoring XDG_CONFIG_HOME.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "breaktimed.yaml"
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "breaktimed", "breaktimed.yaml")
}

// Init writes a default configuration file to configPath.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	cfg := &Config{}
	applyDefaults(cfg)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
