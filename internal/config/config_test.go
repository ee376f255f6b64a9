package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
)

func validConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, DefaultBreakInterval, cfg.Break.Interval)
	assert.Equal(t, DefaultBreakDuration, cfg.Break.Duration)
	assert.Equal(t, DefaultWarningLead, cfg.Break.WarningLead)
	assert.Equal(t, DefaultAcquireTimeout, cfg.Lock.AcquireTimeout)
	assert.Equal(t, DefaultMaxRetries, cfg.Lock.MaxRetries)
	assert.Equal(t, "linear", cfg.Lock.RetryBackoff)
	assert.NotEmpty(t, cfg.Daemon.StateDir)
}

func TestValidateRejectsBadBreakGeometry(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Break.Interval = 0 }},
		{"negative duration", func(c *Config) { c.Break.Duration = -time.Second }},
		{"zero warning lead", func(c *Config) { c.Break.WarningLead = 0 }},
		{"lead equals interval", func(c *Config) {
			c.Break.Interval = 10 * time.Minute
			c.Break.WarningLead = 10 * time.Minute
		}},
		{"lead exceeds interval", func(c *Config) {
			c.Break.Interval = 5 * time.Minute
			c.Break.WarningLead = 6 * time.Minute
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation),
				"expected a validation-classified error, got %v", err)
		})
	}
}

func TestValidateLockSettings(t *testing.T) {
	cfg := validConfig()
	cfg.Lock.RetryBackoff = "fibonacci"
	require.Error(t, Validate(cfg))

	cfg = validConfig()
	cfg.Lock.MaxRetries = -1
	require.Error(t, Validate(cfg))

	cfg = validConfig()
	require.NoError(t, Validate(cfg))
}

func TestValidateExport(t *testing.T) {
	cfg := validConfig()
	cfg.Export = &ExportConfig{Enabled: true}
	require.Error(t, Validate(cfg), "enabled export without nats_url must fail")

	cfg.Export.NATSURL = "nats://127.0.0.1:4222"
	applyDefaults(cfg)
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "breaktimed.events", cfg.Export.Subject)
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "breaktimed.yaml")

	yaml := `
break:
  interval: 45m
  duration: 3m
  warning_lead: 90s
  blocking_enabled: true
notify:
  sound: true
  notification: true
session:
  turn_off_monitors: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, cfg.Break.Interval)
	assert.Equal(t, 3*time.Minute, cfg.Break.Duration)
	assert.Equal(t, 90*time.Second, cfg.Break.WarningLead)
	assert.True(t, cfg.Break.BlockingEnabled)
	// defaults still filled in for omitted sections
	assert.Equal(t, DefaultAcquireTimeout, cfg.Lock.AcquireTimeout)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBreakInterval, cfg.Break.Interval)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BREAKTIMED_BREAK_INTERVAL", "20m")
	t.Setenv("BREAKTIMED_BLOCKING_ENABLED", "true")

	cfg := validConfig()
	applyEnvOverrides(cfg)
	assert.Equal(t, 20*time.Minute, cfg.Break.Interval)
	assert.True(t, cfg.Break.BlockingEnabled)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "breaktimed.yaml")
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	// second init without force must refuse
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))
}
