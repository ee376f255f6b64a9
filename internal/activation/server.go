package activation

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"

	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
	"git.home.luguber.info/inful/breaktimed/internal/logfields"
)

// Handler executes a parsed control command and returns the reply text.
type Handler interface {
	HandleCommand(ctx context.Context, cmd Command) (string, error)
}

// Server pumps the control socket: one datagram in, one reply out. Replies go
// to the sender's bound address, so unbound senders are fire-and-forget.
type Server struct {
	conn    *ControlConn
	handler Handler
	logger  *slog.Logger
}

func NewServer(conn *ControlConn, h Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{conn: conn, handler: h, logger: logger}
}

// Serve blocks until ctx is done. Closing the connection is how the loop gets
// unblocked; the server owns that on shutdown.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.conn.Close()
	}()

	buf := make([]byte, 512)
	for {
		n, addr, err := s.conn.ReadFromUnix(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return ferrors.WrapError(err, ferrors.CategoryActivation, "control socket read failed").Build()
		}

		reply := s.dispatch(ctx, string(buf[:n]))
		if addr != nil && addr.Name != "" {
			if _, err := s.conn.WriteToUnix([]byte(reply), addr); err != nil {
				s.logger.Debug("control reply failed", logfields.Error(err))
			}
		}
	}
}

func (s *Server) dispatch(ctx context.Context, payload string) string {
	cmd, err := ParseCommand(payload)
	if err != nil {
		s.logger.Warn("rejected control command", logfields.Error(err))
		return errorReply(err)
	}

	s.logger.Debug("control command", logfields.Command(string(cmd.Verb)))
	reply, err := s.handler.HandleCommand(ctx, cmd)
	if err != nil {
		return errorReply(err)
	}
	if !strings.HasSuffix(reply, "\n") {
		reply += "\n"
	}
	return reply
}

func errorReply(err error) string {
	if ce, ok := ferrors.AsClassified(err); ok {
		return "error: " + ce.Message() + "\n"
	}
	return "error: " + err.Error() + "\n"
}
