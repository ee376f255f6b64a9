// Package locker coordinates acquisition and release of the session lock
// surface around a break. The actual surface is provided by a compositor
// driver implementing the Locker interface; this package owns the retry and
// degraded-mode policy on top of it.
package locker

import (
	"context"
)

// FailureKindContextKey is the classified-error context key under which
// drivers record why an acquisition attempt failed (denied, timeout,
// disconnected).
const FailureKindContextKey = "kind"

// Locker creates a session lock surface.
type Locker interface {
	// Name identifies the driver for logs and status output.
	Name() string
	// Acquire blocks until the surface is held, the context is done, or the
	// compositor refuses. The returned Session is live on success.
	Acquire(ctx context.Context) (Session, error)
}

// Session is a held lock surface.
type Session interface {
	// Lost delivers at most one error when the surface disappears out of
	// band; the channel is closed after release.
	Lost() <-chan error
	// Release dismisses the surface. Safe to call more than once; repeat
	// calls return nil.
	Release(ctx context.Context) error
}
