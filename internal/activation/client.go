package activation

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
)

// replyTimeout bounds how long a control client waits for the daemon.
const replyTimeout = 3 * time.Second

// Client sends one control command and reads the reply. Datagram replies need
// a bound return address, so the client binds a throwaway socket per call.
type Client struct {
	socketPath string
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Send transmits the raw command line and returns the daemon's reply with the
// trailing newline stripped.
func (c *Client) Send(command string) (string, error) {
	local := filepath.Join(os.TempDir(), fmt.Sprintf("breaktimed-ctl-%d-%d.sock", os.Getpid(), time.Now().UnixNano()))
	laddr := &net.UnixAddr{Name: local, Net: "unixgram"}
	raddr := &net.UnixAddr{Name: c.socketPath, Net: "unixgram"}

	conn, err := net.DialUnix("unixgram", laddr, raddr)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryActivation, "daemon control socket unreachable").
			WithContext("socket", c.socketPath).
			UserAction().
			Build()
	}
	defer func() {
		_ = conn.Close()
		_ = os.Remove(local)
	}()

	if _, err := conn.Write([]byte(command)); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryActivation, "sending control command").Build()
	}

	_ = conn.SetReadDeadline(time.Now().Add(replyTimeout))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryActivation, "no reply from daemon").Build()
	}

	reply := strings.TrimRight(string(buf[:n]), "\n")
	if msg, ok := strings.CutPrefix(reply, "error: "); ok {
		return "", ferrors.DaemonError(msg).WithSeverity(ferrors.SeverityError).Build()
	}
	return reply, nil
}
