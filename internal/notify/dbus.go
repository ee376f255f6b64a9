package notify

import (
	"context"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
)

const (
	notifDest   = "org.freedesktop.Notifications"
	notifPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifMethod = "org.freedesktop.Notifications.Notify"
	appName     = "breaktimed"
)

// DesktopNotifier delivers cues through the freedesktop notification service
// on the session bus. The connection is established lazily so the daemon
// starts fine before the notification service does. Each cue replaces the
// previous one instead of stacking.
type DesktopNotifier struct {
	mu     sync.Mutex
	conn   *dbus.Conn
	lastID uint32
}

func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{}
}

func (n *DesktopNotifier) Name() string { return "dbus" }

func (n *DesktopNotifier) Warn(ctx context.Context, lead time.Duration) error {
	return n.send(ctx, "Break coming up", "Break starts in "+formatMinutes(lead)+".", lead)
}

func (n *DesktopNotifier) BreakStarted(ctx context.Context, d time.Duration) error {
	return n.send(ctx, "Break time", "Step away for "+formatMinutes(d)+".", d)
}

func (n *DesktopNotifier) BreakEnded(ctx context.Context) error {
	return n.send(ctx, "Break over", "Back to it.", 10*time.Second)
}

func (n *DesktopNotifier) send(ctx context.Context, summary, body string, expire time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	conn, err := n.connLocked()
	if err != nil {
		return err
	}

	obj := conn.Object(notifDest, notifPath)
	call := obj.CallWithContext(ctx, notifMethod, 0,
		appName,        // app_name
		n.lastID,       // replaces_id
		"view-refresh", // app_icon
		summary,
		body,
		[]string{},                // actions
		map[string]dbus.Variant{}, // hints
		int32(expire.Milliseconds()),
	)
	if call.Err != nil {
		// drop the connection so the next cue reconnects
		n.conn = nil
		return ferrors.WrapError(call.Err, ferrors.CategoryNotify, "notification call failed").Build()
	}
	if err := call.Store(&n.lastID); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNotify, "unexpected notification reply").Build()
	}
	return nil
}

func (n *DesktopNotifier) connLocked() (*dbus.Conn, error) {
	if n.conn != nil {
		return n.conn, nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNotify, "session bus unavailable").Build()
	}
	n.conn = conn
	return conn, nil
}

// Close releases the bus connection.
func (n *DesktopNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	return err
}
