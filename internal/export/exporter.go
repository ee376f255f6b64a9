// Package export optionally publishes break lifecycle events to NATS, for
// home-automation listeners (mute speakers during a break, dim lights, feed a
// dashboard). Disabled unless configured; the daemon runs identically without
// it.
package export

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/breaktimed/internal/config"
	"git.home.luguber.info/inful/breaktimed/internal/events"
	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
	"git.home.luguber.info/inful/breaktimed/internal/logfields"
)

// wireEvent is the published JSON shape, stable across daemon versions.
type wireEvent struct {
	Kind     string    `json:"kind"` // warning|break_started|break_ended|lock_degraded
	BreakID  string    `json:"break_id,omitempty"`
	Duration float64   `json:"duration_seconds,omitempty"`
	Skipped  bool      `json:"skipped,omitempty"`
	Degraded bool      `json:"degraded,omitempty"`
	At       time.Time `json:"at"`
}

// Exporter bridges the in-process event bus onto a NATS subject.
type Exporter struct {
	conn    *nats.Conn
	bus     *events.Bus
	subject string
	logger  *slog.Logger
}

// New connects to the configured NATS server. Connection failure is an error
// the caller downgrades to a warning; export is never load-bearing.
func New(cfg *config.ExportConfig, bus *events.Bus, logger *slog.Logger) (*Exporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("breaktimed"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "connecting to NATS").
			WithSeverity(ferrors.SeverityWarning).
			Build()
	}
	logger.Info("event export enabled", slog.String("subject", cfg.Subject))
	return &Exporter{conn: conn, bus: bus, subject: cfg.Subject, logger: logger}, nil
}

// Run subscribes to the bus and forwards events until ctx is done.
func (e *Exporter) Run(ctx context.Context) {
	warnings, unsubWarn := events.Subscribe[events.WarningDue](e.bus, 8)
	starts, unsubStart := events.Subscribe[events.BreakStarted](e.bus, 8)
	ends, unsubEnd := events.Subscribe[events.BreakEnded](e.bus, 8)
	degraded, unsubDeg := events.Subscribe[events.LockDegraded](e.bus, 8)
	defer unsubWarn()
	defer unsubStart()
	defer unsubEnd()
	defer unsubDeg()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-warnings:
			if !ok {
				return
			}
			e.publish(wireEvent{Kind: "warning", BreakID: evt.BreakID, Duration: evt.LeadTime.Seconds(), At: evt.At})
		case evt, ok := <-starts:
			if !ok {
				return
			}
			e.publish(wireEvent{Kind: "break_started", BreakID: evt.BreakID, Duration: evt.Duration.Seconds(), At: evt.At})
		case evt, ok := <-ends:
			if !ok {
				return
			}
			e.publish(wireEvent{Kind: "break_ended", BreakID: evt.BreakID, Skipped: evt.Skipped, At: evt.At})
		case evt, ok := <-degraded:
			if !ok {
				return
			}
			e.publish(wireEvent{Kind: "lock_degraded", BreakID: evt.BreakID, Degraded: true, At: evt.At})
		}
	}
}

func (e *Exporter) publish(evt wireEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		e.logger.Warn("marshaling export event", logfields.Error(err))
		return
	}
	if err := e.conn.Publish(e.subject, payload); err != nil {
		e.logger.Warn("publishing export event", logfields.Error(err))
	}
}

// Close drains and closes the connection.
func (e *Exporter) Close() {
	if err := e.conn.Drain(); err != nil {
		e.conn.Close()
	}
}
