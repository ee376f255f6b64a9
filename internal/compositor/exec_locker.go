package compositor

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
	"git.home.luguber.info/inful/breaktimed/internal/locker"
	"git.home.luguber.info/inful/breaktimed/internal/logfields"
	"git.home.luguber.info/inful/breaktimed/internal/metrics"
)

// startupGrace is how long the helper must stay alive before the surface
// counts as held. Lock helpers that cannot get the session lock (another lock
// active, compositor refused) exit within this window.
const startupGrace = 500 * time.Millisecond

// helperArgs holds the per-helper invocation. The helper runs in the
// foreground so its exit doubles as the loss signal.
var helperArgs = map[string][]string{
	"swaylock": {"--color", "1e1e2e"},
	"hyprlock": nil,
	"waylock":  nil,
}

// ExecLocker implements locker.Locker by supervising a lock helper process.
type ExecLocker struct {
	helper string
	args   []string
	grace  time.Duration
	logger *slog.Logger
}

// NewExecLocker builds a driver for the given helper binary.
func NewExecLocker(helper string, logger *slog.Logger) *ExecLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecLocker{
		helper: helper,
		args:   helperArgs[helper],
		grace:  startupGrace,
		logger: logger.With(logfields.Locker(helper)),
	}
}

func (l *ExecLocker) Name() string { return l.helper }

// Acquire starts the helper and waits out the startup grace period. A helper
// that exits during startup was refused the lock; a helper still running
// holds it.
func (l *ExecLocker) Acquire(ctx context.Context) (locker.Session, error) {
	cmd := exec.Command(l.helper, l.args...)
	if err := cmd.Start(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryCompositor, "failed to start lock helper").
			WithContext(locker.FailureKindContextKey, string(metrics.LockDisconnected)).
			Build()
	}

	s := &execSession{
		helper: l.helper,
		cmd:    cmd,
		lost:   make(chan error, 1),
		exited: make(chan struct{}),
		logger: l.logger,
	}
	go s.wait()

	grace := time.NewTimer(l.grace)
	defer grace.Stop()

	select {
	case <-s.exited:
		return nil, ferrors.LockError("lock helper exited during startup").
			WithRetry(ferrors.RetryUserAction).
			WithContext(locker.FailureKindContextKey, string(metrics.LockDenied)).
			WithContext("exit", exitStatus(s.waitErr)).
			Build()
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-s.exited
		return nil, ctx.Err()
	case <-grace.C:
	}

	l.logger.Debug("lock helper running", logfields.Attempt(1))
	return s, nil
}

// execSession supervises one running helper process.
type execSession struct {
	helper string
	cmd    *exec.Cmd
	lost   chan error
	exited chan struct{}
	logger *slog.Logger

	waitErr   error
	releasing atomic.Bool
	once      sync.Once
}

// wait owns the process exit. An exit that was not requested through Release
// means the surface is gone; the user or compositor dismissed it.
func (s *execSession) wait() {
	s.waitErr = s.cmd.Wait()
	close(s.exited)
	if !s.releasing.Load() {
		s.lost <- ferrors.CompositorError("lock helper exited unexpectedly").
			WithContext(locker.FailureKindContextKey, string(metrics.LockLost)).
			WithContext("exit", exitStatus(s.waitErr)).
			Build()
	}
	close(s.lost)
}

func (s *execSession) Lost() <-chan error { return s.lost }

// Release dismisses the surface: SIGUSR1 asks the helper to unlock, and a
// helper that ignores it gets killed when ctx runs out. Repeat calls are
// no-ops.
func (s *execSession) Release(ctx context.Context) error {
	s.once.Do(func() {
		s.releasing.Store(true)
		select {
		case <-s.exited:
			return
		default:
		}
		if err := s.cmd.Process.Signal(syscall.SIGUSR1); err != nil {
			s.logger.Debug("unlock signal failed", logfields.Error(err))
		}
		select {
		case <-s.exited:
		case <-ctx.Done():
			_ = s.cmd.Process.Kill()
			<-s.exited
		}
	})
	return nil
}

func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
