package config

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Snapshot computes a stable hash of the schedule-affecting configuration
// fields. It is intentionally narrower than full serialization: cosmetic
// fields (logging, metrics listen address) changing must not look like a
// schedule change to the state machine. The hash doubles as the
// config_version recorded in ScheduleState and the state store.
func (c *Config) Snapshot() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(parts ...string) {
		h.Write([]byte(strings.Join(parts, "=")))
		h.Write([]byte{0})
	}
	w("break.interval", c.Break.Interval.String())
	w("break.duration", c.Break.Duration.String())
	w("break.warning_lead", c.Break.WarningLead.String())
	w("break.blocking_enabled", strconv.FormatBool(c.Break.BlockingEnabled))
	w("lock.locker", c.Lock.Locker)
	w("lock.acquire_timeout", c.Lock.AcquireTimeout.String())
	w("lock.retry_backoff", c.Lock.RetryBackoff)
	w("lock.max_retries", strconv.Itoa(c.Lock.MaxRetries))
	w("notify.sound", strconv.FormatBool(c.Notify.Sound))
	w("notify.notification", strconv.FormatBool(c.Notify.Notification))
	w("session.turn_off_monitors", strconv.FormatBool(c.Session.TurnOffMonitors))
	return hex.EncodeToString(h.Sum(nil))
}
