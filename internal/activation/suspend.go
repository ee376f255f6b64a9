package activation

import (
	"context"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"

	"git.home.luguber.info/inful/breaktimed/internal/events"
	"git.home.luguber.info/inful/breaktimed/internal/logfields"
)

const prepareForSleep = "org.freedesktop.login1.Manager.PrepareForSleep"

// SuspendMonitor watches logind's PrepareForSleep signal and publishes a
// SuspendResumed event on wake, so the schedule re-anchors instead of firing
// a stale break the moment the laptop lid opens.
type SuspendMonitor struct {
	bus    *events.Bus
	logger *slog.Logger
}

func NewSuspendMonitor(bus *events.Bus, logger *slog.Logger) *SuspendMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SuspendMonitor{bus: bus, logger: logger}
}

// Run blocks until ctx is done. A machine without a system bus is fine; the
// monitor just logs and returns.
func (m *SuspendMonitor) Run(ctx context.Context) {
	conn, err := dbus.SystemBus()
	if err != nil {
		m.logger.Debug("system bus unavailable, suspend monitor disabled", logfields.Error(err))
		return
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath("/org/freedesktop/login1"),
		dbus.WithMatchInterface("org.freedesktop.login1.Manager"),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		m.logger.Warn("subscribing to PrepareForSleep failed", logfields.Error(err))
		return
	}

	signals := make(chan *dbus.Signal, 8)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	var sleptAt time.Time
	m.logger.Info("suspend monitor started")

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if sig == nil || sig.Name != prepareForSleep || len(sig.Body) < 1 {
				continue
			}
			entering, ok := sig.Body[0].(bool)
			if !ok {
				continue
			}
			if entering {
				sleptAt = time.Now()
				continue
			}
			evt := events.SuspendResumed{SleptAt: sleptAt, ResumedAt: time.Now()}
			if err := m.bus.Publish(ctx, evt); err != nil {
				m.logger.Warn("publishing resume event failed", logfields.Error(err))
			}
		}
	}
}
