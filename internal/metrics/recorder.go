package metrics

import "time"

// BreakOutcomeLabel enumerates how a break cycle ended.
type BreakOutcomeLabel string

const (
	OutcomeCompleted BreakOutcomeLabel = "completed"
	OutcomeSkipped   BreakOutcomeLabel = "skipped"
	OutcomeDegraded  BreakOutcomeLabel = "degraded"
)

// LockFailureKind labels why a lock acquisition attempt failed.
type LockFailureKind string

const (
	LockDenied       LockFailureKind = "denied"
	LockTimeout      LockFailureKind = "timeout"
	LockDisconnected LockFailureKind = "disconnected"
	LockLost         LockFailureKind = "lost"
)

// Recorder defines observability hooks for the break daemon. Implementations
// may forward to Prometheus, OpenTelemetry, etc. All methods must be safe for
// nil receivers when using the NoopRecorder (allowing optional injection).
type Recorder interface {
	SetPhase(phase string)
	IncBreakOutcome(outcome BreakOutcomeLabel)
	ObserveLockAcquireDuration(d time.Duration, success bool)
	IncLockFailure(kind LockFailureKind)
	IncLockRetry()
	IncNotifierFailure(channel string)
	IncConfigReload(accepted bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) SetPhase(string)                                 {}
func (NoopRecorder) IncBreakOutcome(BreakOutcomeLabel)               {}
func (NoopRecorder) ObserveLockAcquireDuration(time.Duration, bool)  {}
func (NoopRecorder) IncLockFailure(LockFailureKind)                  {}
func (NoopRecorder) IncLockRetry()                                   {}
func (NoopRecorder) IncNotifierFailure(string)                       {}
func (NoopRecorder) IncConfigReload(bool)                            {}
