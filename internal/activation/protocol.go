// Package activation owns the daemon's lifecycle surface: the systemd
// socket-activated control socket, readiness notification, and the logind
// suspend monitor. The control protocol is plain text over unix datagrams so
// `breaktimed ctl` and a bare `socat` both work.
package activation

import (
	"strconv"
	"strings"

	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
)

// Verb is a control protocol command name.
type Verb string

const (
	VerbBreak  Verb = "break"  // start a break now
	VerbSkip   Verb = "skip"   // end the active break early
	VerbReset  Verb = "reset"  // re-anchor the schedule at now
	VerbGet    Verb = "get"    // time until next break
	VerbSet    Verb = "set"    // one-shot interval override
	VerbSnooze Verb = "snooze" // push the next break out
	VerbStatus Verb = "status" // full JSON status
)

// Command is one parsed control datagram.
type Command struct {
	Verb    Verb
	Minutes int  // set/snooze argument
	Raw     bool // get --minutes: reply with a bare number
}

// ParseCommand parses a control datagram. The format is a verb plus optional
// arguments separated by whitespace; trailing garbage is an error so typos
// fail loudly instead of half-working.
func ParseCommand(payload string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(payload))
	if len(fields) == 0 {
		return Command{}, parseErr("empty command", payload)
	}

	cmd := Command{Verb: Verb(strings.ToLower(fields[0]))}
	args := fields[1:]

	switch cmd.Verb {
	case VerbBreak, VerbSkip, VerbReset, VerbStatus:
		if len(args) != 0 {
			return Command{}, parseErr("command takes no arguments", payload)
		}
	case VerbGet:
		switch {
		case len(args) == 0:
		case len(args) == 1 && args[0] == "--minutes":
			cmd.Raw = true
		default:
			return Command{}, parseErr("usage: get [--minutes]", payload)
		}
	case VerbSet, VerbSnooze:
		if len(args) != 1 {
			return Command{}, parseErr("usage: "+string(cmd.Verb)+" <minutes>", payload)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return Command{}, parseErr("minutes must be a positive integer", payload)
		}
		cmd.Minutes = n
	default:
		return Command{}, parseErr("unknown command", payload)
	}
	return cmd, nil
}

func parseErr(msg, payload string) error {
	return ferrors.ValidationError(msg).
		WithContext("payload", strings.TrimSpace(payload)).
		Build()
}
