package activation

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in      string
		want    Command
		wantErr bool
	}{
		{in: "break", want: Command{Verb: VerbBreak}},
		{in: "  skip \n", want: Command{Verb: VerbSkip}},
		{in: "RESET", want: Command{Verb: VerbReset}},
		{in: "status", want: Command{Verb: VerbStatus}},
		{in: "get", want: Command{Verb: VerbGet}},
		{in: "get --minutes", want: Command{Verb: VerbGet, Raw: true}},
		{in: "set 45", want: Command{Verb: VerbSet, Minutes: 45}},
		{in: "snooze 10", want: Command{Verb: VerbSnooze, Minutes: 10}},
		{in: "", wantErr: true},
		{in: "dance", wantErr: true},
		{in: "break now", wantErr: true},
		{in: "get --seconds", wantErr: true},
		{in: "set", wantErr: true},
		{in: "set nope", wantErr: true},
		{in: "set -5", wantErr: true},
		{in: "snooze 0", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseCommand(tc.in)
		if tc.wantErr {
			require.Error(t, err, "input %q", tc.in)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation), "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

type echoHandler struct{}

func (echoHandler) HandleCommand(_ context.Context, cmd Command) (string, error) {
	if cmd.Verb == VerbSkip {
		return "", ferrors.DaemonError("no active break").Build()
	}
	return fmt.Sprintf("ok %s", cmd.Verb), nil
}

func TestServerClientRoundTrip(t *testing.T) {
	sock := filepath.Join(shortTempDir(t), "ctl.sock")

	conn, err := ControlSocket(sock)
	require.NoError(t, err)
	assert.False(t, conn.Activated())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := NewServer(conn, echoHandler{}, nil)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	client := NewClient(sock)

	reply, err := client.Send("get --minutes")
	require.NoError(t, err)
	assert.Equal(t, "ok get", reply)

	// handler errors come back as error replies
	_, err = client.Send("skip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active break")

	// parse errors too
	_, err = client.Send("bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestClientUnreachableSocket(t *testing.T) {
	client := NewClient(filepath.Join(shortTempDir(t), "missing.sock"))
	_, err := client.Send("get")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryActivation))
}

// shortTempDir works around the 108-byte unix socket path limit that
// t.TempDir can blow past on deeply nested build roots.
func shortTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	if len(dir) > 80 {
		t.Skip("temp dir too long for unix socket path")
	}
	return dir
}
