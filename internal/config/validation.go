package config

import (
	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
)

// Validate checks the invariants a Config must satisfy before the daemon may
// install it. An invalid snapshot is rejected wholesale; the caller keeps the
// previous snapshot in effect.
func Validate(cfg *Config) error {
	if cfg == nil {
		return ferrors.ValidationError("configuration is nil").Build()
	}
	if err := validateBreak(cfg); err != nil {
		return err
	}
	if err := validateLock(cfg); err != nil {
		return err
	}
	return validateExport(cfg)
}

func validateBreak(cfg *Config) error {
	b := cfg.Break
	if b.Interval <= 0 {
		return ferrors.ValidationError("break.interval must be positive").
			WithContext("interval", b.Interval.String()).Build()
	}
	if b.Duration <= 0 {
		return ferrors.ValidationError("break.duration must be positive").
			WithContext("duration", b.Duration.String()).Build()
	}
	if b.WarningLead <= 0 {
		return ferrors.ValidationError("break.warning_lead must be positive").
			WithContext("warning_lead", b.WarningLead.String()).Build()
	}
	if b.WarningLead >= b.Interval {
		return ferrors.ValidationError("break.warning_lead must be shorter than break.interval").
			WithContext("warning_lead", b.WarningLead.String()).
			WithContext("interval", b.Interval.String()).Build()
	}
	return nil
}

func validateLock(cfg *Config) error {
	l := cfg.Lock
	if l.AcquireTimeout <= 0 {
		return ferrors.ValidationError("lock.acquire_timeout must be positive").Build()
	}
	if l.MaxRetries < 0 {
		return ferrors.ValidationError("lock.max_retries cannot be negative").Build()
	}
	switch l.RetryBackoff {
	case "", "fixed", "linear", "exponential":
	default:
		return ferrors.ValidationError("lock.retry_backoff must be fixed, linear or exponential").
			WithContext("retry_backoff", l.RetryBackoff).Build()
	}
	return nil
}

func validateExport(cfg *Config) error {
	if cfg.Export == nil || !cfg.Export.Enabled {
		return nil
	}
	if cfg.Export.NATSURL == "" {
		return ferrors.ValidationError("export.nats_url is required when export is enabled").Build()
	}
	return nil
}
