package commands

import (
	"fmt"

	"git.home.luguber.info/inful/breaktimed/internal/activation"
	"git.home.luguber.info/inful/breaktimed/internal/config"
)

// The control commands talk to a running daemon over its datagram socket and
// print the reply. A missing config file still works: defaults resolve the
// same socket path the daemon uses.

func sendCommand(root *CLI, line string) error {
	cfg, err := config.Load(root.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	reply, err := activation.NewClient(cfg.Daemon.ControlSocket).Send(line)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

// BreakCmd starts a break immediately.
type BreakCmd struct{}

func (b *BreakCmd) Run(_ *Global, root *CLI) error {
	return sendCommand(root, "break")
}

// SkipCmd ends the active break early.
type SkipCmd struct{}

func (s *SkipCmd) Run(_ *Global, root *CLI) error {
	return sendCommand(root, "skip")
}

// ResetCmd re-anchors the schedule at now.
type ResetCmd struct{}

func (r *ResetCmd) Run(_ *Global, root *CLI) error {
	return sendCommand(root, "reset")
}

// GetCmd reports time until the next break.
type GetCmd struct {
	Minutes bool `help:"Print the bare number of minutes (for status bars)"`
}

func (g *GetCmd) Run(_ *Global, root *CLI) error {
	if g.Minutes {
		return sendCommand(root, "get --minutes")
	}
	return sendCommand(root, "get")
}

// SetCmd overrides the break interval for the current cycle only.
type SetCmd struct {
	Minutes int `arg:"" help:"Minutes until the next break"`
}

func (s *SetCmd) Run(_ *Global, root *CLI) error {
	return sendCommand(root, fmt.Sprintf("set %d", s.Minutes))
}

// SnoozeCmd pushes the next break out.
type SnoozeCmd struct {
	Minutes int `arg:"" help:"Minutes to postpone the next break"`
}

func (s *SnoozeCmd) Run(_ *Global, root *CLI) error {
	return sendCommand(root, fmt.Sprintf("snooze %d", s.Minutes))
}

// StatusCmd dumps the daemon's full status as JSON.
type StatusCmd struct{}

func (s *StatusCmd) Run(_ *Global, root *CLI) error {
	return sendCommand(root, "status")
}
