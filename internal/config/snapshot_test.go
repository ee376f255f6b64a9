package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotStable(t *testing.T) {
	a := validConfig()
	b := validConfig()
	assert.Equal(t, a.Snapshot(), b.Snapshot(), "identical configs must hash identically")
}

func TestSnapshotSensitivity(t *testing.T) {
	base := validConfig()
	changed := validConfig()
	changed.Break.Interval = base.Break.Interval + time.Minute
	assert.NotEqual(t, base.Snapshot(), changed.Snapshot())

	blocked := validConfig()
	blocked.Break.BlockingEnabled = !base.Break.BlockingEnabled
	assert.NotEqual(t, base.Snapshot(), blocked.Snapshot())
}

func TestSnapshotIgnoresCosmeticFields(t *testing.T) {
	base := validConfig()
	cosmetic := validConfig()
	cosmetic.Monitoring.Logging.Level = LogLevelDebug
	cosmetic.Monitoring.Metrics.Enabled = true
	cosmetic.Monitoring.Metrics.Listen = "127.0.0.1:9999"
	assert.Equal(t, base.Snapshot(), cosmetic.Snapshot(),
		"logging and metrics settings must not look like a schedule change")
}

func TestSnapshotNil(t *testing.T) {
	var c *Config
	assert.Empty(t, c.Snapshot())
}
