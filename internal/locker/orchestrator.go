package locker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
	"git.home.luguber.info/inful/breaktimed/internal/logfields"
	"git.home.luguber.info/inful/breaktimed/internal/metrics"
	"git.home.luguber.info/inful/breaktimed/internal/retry"
)

// Outcome is the result of an acquisition run. Exactly one of Session or
// Degraded is meaningful: a nil Session with Degraded set means every attempt
// failed and the break proceeds without enforcement. Err carries the last
// attempt's failure in that case.
type Outcome struct {
	Session  Session
	Attempts int
	Degraded bool
	Err      error
}

// Orchestrator drives lock acquisition with per-attempt timeouts and retry
// backoff. It never fails a break outright: when retries are exhausted the
// outcome is degraded rather than an error, so the schedule keeps running.
type Orchestrator struct {
	locker   Locker
	policy   retry.Policy
	timeout  time.Duration
	logger   *slog.Logger
	recorder metrics.Recorder
}

// NewOrchestrator wires an acquisition orchestrator around a compositor
// driver. A nil recorder falls back to the noop recorder.
func NewOrchestrator(l Locker, policy retry.Policy, timeout time.Duration, logger *slog.Logger, rec metrics.Recorder) *Orchestrator {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		locker:   l,
		policy:   policy,
		timeout:  timeout,
		logger:   logger.With(logfields.Locker(l.Name())),
		recorder: rec,
	}
}

// Acquire attempts to hold the lock surface, retrying per policy. It returns
// early with Err set when ctx is canceled (daemon shutdown); otherwise the
// outcome is either a live session or degraded mode.
func (o *Orchestrator) Acquire(ctx context.Context) Outcome {
	var lastErr error

	for attempt := 0; ; attempt++ {
		started := time.Now()
		sess, err := o.acquireOnce(ctx)
		o.recorder.ObserveLockAcquireDuration(time.Since(started), err == nil)

		if err == nil {
			o.logger.Info("lock surface acquired", logfields.Attempt(attempt+1))
			return Outcome{Session: sess, Attempts: attempt + 1}
		}
		if ctx.Err() != nil {
			return Outcome{Attempts: attempt + 1, Err: ctx.Err()}
		}

		lastErr = err
		o.recorder.IncLockFailure(failureKind(err))
		o.logger.Warn("lock acquisition attempt failed",
			logfields.Attempt(attempt+1), logfields.Error(err))

		if !retryableLockError(err) || attempt >= o.policy.MaxRetries {
			o.logger.Error("lock acquisition exhausted, break will run unenforced",
				logfields.Error(lastErr))
			return Outcome{Attempts: attempt + 1, Degraded: true, Err: lastErr}
		}
		o.recorder.IncLockRetry()
		if err := sleepCtx(ctx, o.policy.Delay(attempt+1)); err != nil {
			return Outcome{Attempts: attempt + 1, Err: err}
		}
	}
}

// Release dismisses a held session with its own timeout so a wedged helper
// process cannot stall the schedule.
func (o *Orchestrator) Release(ctx context.Context, sess Session) error {
	if sess == nil {
		return nil
	}
	rctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	if err := sess.Release(rctx); err != nil {
		o.logger.Warn("lock release failed", logfields.Error(err))
		return err
	}
	return nil
}

func (o *Orchestrator) acquireOnce(ctx context.Context) (Session, error) {
	actx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	sess, err := o.locker.Acquire(actx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryLock, "lock acquisition timed out").
			Retryable().
			WithContext(FailureKindContextKey, string(metrics.LockTimeout)).
			Build()
	}
	return sess, err
}

// retryableLockError reports whether another attempt can help. A compositor
// that denies the lock outright will deny it again; retrying is for transient
// failures such as timeouts and dropped connections.
func retryableLockError(err error) bool {
	if ce, ok := ferrors.AsClassified(err); ok {
		return ce.CanRetry()
	}
	return true
}

func failureKind(err error) metrics.LockFailureKind {
	if ce, ok := ferrors.AsClassified(err); ok {
		if v, ok := ce.Context().Get(FailureKindContextKey); ok {
			if s, ok := v.(string); ok {
				return metrics.LockFailureKind(s)
			}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return metrics.LockTimeout
	}
	return metrics.LockDisconnected
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
