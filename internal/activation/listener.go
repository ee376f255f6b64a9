package activation

import (
	"net"
	"os"
	"path/filepath"

	sdactivation "github.com/coreos/go-systemd/v22/activation"
	sddaemon "github.com/coreos/go-systemd/v22/daemon"

	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
)

// ControlConn wraps the control socket with enough bookkeeping to clean up
// after ourselves: a socket we bound gets unlinked on close, one systemd
// handed us does not.
type ControlConn struct {
	*net.UnixConn
	path  string
	owned bool
}

// Close closes the socket and removes the path if this process created it.
func (c *ControlConn) Close() error {
	err := c.UnixConn.Close()
	if c.owned && c.path != "" {
		_ = os.Remove(c.path)
	}
	return err
}

// Activated reports whether the connection came from systemd.
func (c *ControlConn) Activated() bool { return !c.owned }

// ControlSocket returns the daemon's control socket: the systemd-activated
// datagram socket when running under a .socket unit, otherwise a fresh bind
// at path.
func ControlSocket(path string) (*ControlConn, error) {
	conns, err := sdactivation.PacketConns()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryActivation, "reading activated sockets").Build()
	}
	for _, pc := range conns {
		if uc, ok := pc.(*net.UnixConn); ok {
			return &ControlConn{UnixConn: uc, path: path}, nil
		}
	}
	if len(conns) > 0 {
		return nil, ferrors.ActivationError("activated socket is not a unix datagram socket").Build()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryActivation, "creating socket directory").Build()
	}
	// a previous unclean shutdown may have left the path behind
	_ = os.Remove(path)

	addr, err := net.ResolveUnixAddr("unixgram", path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryActivation, "resolving control socket path").Build()
	}
	uc, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryActivation, "binding control socket").Build()
	}
	return &ControlConn{UnixConn: uc, path: path, owned: true}, nil
}

// NotifyReady tells systemd the daemon is up. A false return just means we
// are not running under systemd.
func NotifyReady() bool {
	ok, _ := sddaemon.SdNotify(false, sddaemon.SdNotifyReady)
	return ok
}

// NotifyStopping tells systemd shutdown has begun.
func NotifyStopping() {
	_, _ = sddaemon.SdNotify(false, sddaemon.SdNotifyStopping)
}

// NotifyStatus publishes a one-line status visible in systemctl output.
func NotifyStatus(status string) {
	_, _ = sddaemon.SdNotify(false, "STATUS="+status)
}
