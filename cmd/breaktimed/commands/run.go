package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/breaktimed/internal/config"
	"git.home.luguber.info/inful/breaktimed/internal/daemon"
	"git.home.luguber.info/inful/breaktimed/internal/logfields"
	"git.home.luguber.info/inful/breaktimed/internal/version"
)

// RunCmd implements the 'run' command, the daemon itself. Under systemd this
// is the unit's ExecStart; SIGHUP reloads configuration, SIGTERM shuts down.
type RunCmd struct{}

func (r *RunCmd) Run(_ *Global, root *CLI) error {
	configPath := root.ConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := buildLogger(cfg, root.Verbose)
	logger.Info("breaktimed starting",
		slog.String("version", version.Version),
		logfields.ConfigHash(cfg.Snapshot()),
		logfields.Socket(cfg.Daemon.ControlSocket))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, configPath, logger)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}
