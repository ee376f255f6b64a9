package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/breaktimed/internal/config"
)

// Global context passed to subcommands if we need to share global state later.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:""`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run    RunCmd    `cmd:"" default:"withargs" help:"Run the break enforcement daemon"`
	Init   InitCmd   `cmd:"" help:"Initialize a configuration file"`
	Break  BreakCmd  `cmd:"" help:"Start a break now"`
	Skip   SkipCmd   `cmd:"" help:"End the active break early"`
	Reset  ResetCmd  `cmd:"" help:"Re-anchor the schedule at now"`
	Get    GetCmd    `cmd:"" help:"Show time until the next break"`
	Set    SetCmd    `cmd:"" help:"Override the interval for the current cycle"`
	Snooze SnoozeCmd `cmd:"" help:"Push the next break out"`
	Status StatusCmd `cmd:"" help:"Show full daemon status as JSON"`
}

// AfterApply runs after flag parsing; setup logging once. The daemon command
// rebuilds the logger from configuration, everything else keeps this one.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// ConfigPath resolves the config file, falling back to the XDG default.
func (c *CLI) ConfigPath() string {
	if c.Config != "" {
		return c.Config
	}
	return config.DefaultPath()
}

// buildLogger constructs the daemon logger from the monitoring section.
func buildLogger(cfg *config.Config, verbose bool) *slog.Logger {
	level := cfg.Monitoring.Logging.Level.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Monitoring.Logging.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
