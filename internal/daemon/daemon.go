// Package daemon wires the break scheduler to the outside world: the control
// socket, the lock orchestrator, notifications, persistence, metrics, and the
// config watcher. One goroutine owns all scheduler mutation through the tick
// loop; everything else talks to the scheduler through its own locking or
// pokes the loop awake.
package daemon

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/breaktimed/internal/activation"
	"git.home.luguber.info/inful/breaktimed/internal/compositor"
	"git.home.luguber.info/inful/breaktimed/internal/config"
	"git.home.luguber.info/inful/breaktimed/internal/events"
	"git.home.luguber.info/inful/breaktimed/internal/export"
	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
	"git.home.luguber.info/inful/breaktimed/internal/locker"
	"git.home.luguber.info/inful/breaktimed/internal/logfields"
	"git.home.luguber.info/inful/breaktimed/internal/metrics"
	"git.home.luguber.info/inful/breaktimed/internal/notify"
	"git.home.luguber.info/inful/breaktimed/internal/retry"
	"git.home.luguber.info/inful/breaktimed/internal/schedule"
	"git.home.luguber.info/inful/breaktimed/internal/statestore"
)

// stateFile is the database name inside the configured state directory.
const stateFile = "state.db"

// Daemon owns every long-lived component of a running breaktimed instance.
type Daemon struct {
	mu         sync.RWMutex
	cfg        *config.Config
	configPath string

	sched    *schedule.Scheduler
	bus      *events.Bus
	store    *statestore.Store
	orch     *locker.Orchestrator
	monitors *compositor.MonitorPower
	notifier notify.Notifier
	recorder metrics.Recorder
	registry *prom.Registry
	exporter *export.Exporter
	logger   *slog.Logger
	clock    func() time.Time

	lockerName string

	workers      WorkerGroup
	wake         chan struct{}
	startedAt    time.Time
	lastActivity atomic.Int64

	// active break bookkeeping, touched only from the tick loop
	session    locker.Session
	breakStart time.Time

	pendingSkip atomic.Bool
}

// New assembles a daemon from configuration. The schedule resumes from the
// state store when a previous run left one behind.
func New(cfg *config.Config, configPath string, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := statestore.Open(filepath.Join(cfg.Daemon.StateDir, stateFile))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryStore, "opening state store").Fatal().Build()
	}

	d := &Daemon{
		cfg:        cfg,
		configPath: configPath,
		bus:        events.NewBus(),
		store:      store,
		logger:     logger,
		clock:      time.Now,
		wake:       make(chan struct{}, 1),
		recorder:   metrics.NoopRecorder{},
	}

	now := d.clock()
	if st, err := store.LoadSchedule(context.Background()); err == nil {
		d.sched = schedule.Resume(cfg, st.Anchor, now)
		logger.Info("schedule resumed", slog.Time("anchor", st.Anchor))
	} else {
		d.sched = schedule.New(cfg, now)
	}

	if cfg.Monitoring.Metrics.Enabled {
		d.registry = prom.NewRegistry()
		d.recorder = metrics.NewPrometheusRecorder(d.registry)
	}

	if !compositor.SessionIsWayland() {
		logger.Warn("not running inside a Wayland session")
	}
	d.monitors = compositor.NewMonitorPower(logger)
	if cfg.Session.TurnOffMonitors && !d.monitors.Supported() {
		logger.Warn("monitor power control not available for this compositor")
	}
	d.notifier = buildNotifier(cfg, logger, d.recorder)
	d.orch, d.lockerName = buildOrchestrator(cfg, logger, d.recorder)
	if d.orch == nil && cfg.Break.BlockingEnabled {
		logger.Warn("no lock helper available, breaks will run unenforced")
	}

	return d, nil
}

func buildNotifier(cfg *config.Config, logger *slog.Logger, rec metrics.Recorder) notify.Notifier {
	var channels []notify.Notifier
	if cfg.Notify.Notification {
		channels = append(channels, notify.NewDesktopNotifier())
	}
	if cfg.Notify.Sound {
		channels = append(channels, notify.NewSoundNotifier(cfg.Notify.SoundFile))
	}
	return notify.NewMulti(logger, rec, channels...)
}

func buildOrchestrator(cfg *config.Config, logger *slog.Logger, rec metrics.Recorder) (*locker.Orchestrator, string) {
	helper, err := compositor.ResolveLockHelper(cfg.Lock.Locker)
	if err != nil {
		logger.Warn("lock helper resolution failed", logfields.Error(err))
		return nil, "none"
	}
	policy := retry.NewPolicy(cfg.Lock.RetryBackoff, cfg.Lock.RetryInitial, cfg.Lock.RetryMax, cfg.Lock.MaxRetries)
	driver := compositor.NewExecLocker(helper, logger)
	return locker.NewOrchestrator(driver, policy, cfg.Lock.AcquireTimeout, logger, rec), helper
}

// Run blocks until ctx is canceled, then shuts down in order: stop intake,
// release any held lock, persist state.
func (d *Daemon) Run(ctx context.Context) error {
	d.startedAt = d.clock()
	d.touchActivity()

	cfg := d.config()

	conn, err := activation.ControlSocket(cfg.Daemon.ControlSocket)
	if err != nil {
		return err
	}
	d.logger.Info("control socket ready",
		logfields.Socket(cfg.Daemon.ControlSocket),
		slog.Bool("activated", conn.Activated()))

	srv := activation.NewServer(conn, d, d.logger)
	serveErr := make(chan error, 1)
	d.workers.Go(func() { serveErr <- srv.Serve(ctx) })

	d.workers.Go(func() { activation.NewSuspendMonitor(d.bus, d.logger).Run(ctx) })
	d.workers.Go(func() { d.consumeResumeEvents(ctx) })

	watcher, err := NewConfigWatcher(d.configPath, d)
	if err != nil {
		d.logger.Warn("config watcher unavailable", logfields.Error(err))
	} else if err := watcher.Start(ctx); err != nil {
		d.logger.Warn("config watcher start failed", logfields.Error(err))
	}

	jobs, err := d.startMaintenanceJobs()
	if err != nil {
		d.logger.Warn("maintenance scheduler unavailable", logfields.Error(err))
	}

	if cfg.Export != nil && cfg.Export.Enabled {
		exp, err := export.New(cfg.Export, d.bus, d.logger)
		if err != nil {
			d.logger.Warn("event export disabled", logfields.Error(err))
		} else {
			d.exporter = exp
			d.workers.Go(func() { exp.Run(ctx) })
		}
	}

	var admin *http.Server
	if cfg.Monitoring.Metrics.Enabled && d.registry != nil {
		admin = d.startAdminServer(cfg.Monitoring.Metrics.Listen)
	}

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)
	d.workers.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sighup:
				d.logger.Info("SIGHUP received, reloading configuration")
				d.reloadFromDisk(ctx)
			}
		}
	})

	activation.NotifyReady()
	d.logger.Info("daemon ready")

	d.runLoop(ctx)

	// shutdown
	activation.NotifyStopping()
	if watcher != nil {
		_ = watcher.Stop()
	}
	if jobs != nil {
		_ = jobs.Shutdown()
	}
	if admin != nil {
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = admin.Shutdown(shCtx)
		cancel()
	}
	d.releaseHeldLock()
	d.saveState(context.Background())
	if d.exporter != nil {
		d.exporter.Close()
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.workers.StopAndWait(waitCtx); err != nil {
		d.logger.Warn("workers did not stop cleanly", logfields.Error(err))
	}
	d.bus.Close()
	if err := d.store.Close(); err != nil {
		d.logger.Warn("closing state store", logfields.Error(err))
	}

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	default:
	}
	d.logger.Info("daemon stopped")
	return nil
}

func (d *Daemon) config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

func (d *Daemon) setConfig(cfg *config.Config) {
	d.mu.Lock()
	d.cfg = cfg
	d.notifier = buildNotifier(cfg, d.logger, d.recorder)
	d.orch, d.lockerName = buildOrchestrator(cfg, d.logger, d.recorder)
	d.mu.Unlock()
}

func (d *Daemon) currentNotifier() notify.Notifier {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.notifier
}

func (d *Daemon) currentOrch() *locker.Orchestrator {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.orch
}

func (d *Daemon) currentLockerName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lockerName
}

// poke wakes the tick loop after out-of-loop scheduler mutation.
func (d *Daemon) poke() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Daemon) touchActivity() {
	d.lastActivity.Store(d.clock().UnixNano())
}

func (d *Daemon) idleFor() time.Duration {
	return time.Duration(d.clock().UnixNano() - d.lastActivity.Load())
}

// releaseHeldLock drops the lock surface during shutdown so the screen never
// stays locked because the daemon died.
func (d *Daemon) releaseHeldLock() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	d.releaseSession(ctx)
}

func (d *Daemon) saveState(ctx context.Context) {
	snap := d.sched.Status()
	err := d.store.SaveSchedule(ctx, statestore.ScheduleState{
		Anchor:     snap.Anchor,
		ConfigHash: snap.ConfigHash,
	})
	if err != nil {
		d.logger.Warn("saving schedule state", logfields.Error(err))
	}
}

func (d *Daemon) consumeResumeEvents(ctx context.Context) {
	resumed, unsub := events.Subscribe[events.SuspendResumed](d.bus, 4)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-resumed:
			if !ok {
				return
			}
			now := d.clock()
			if err := d.sched.Reset(now); err != nil {
				// mid-break resume: let the break finish on its own
				d.logger.Debug("resume during break, schedule untouched")
				continue
			}
			d.logger.Info("schedule re-anchored after suspend",
				slog.Duration("slept", evt.ResumedAt.Sub(evt.SleptAt)))
			d.poke()
		}
	}
}

func (d *Daemon) startAdminServer(listen string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(d.registry))
	mux.HandleFunc("/healthz", d.handleHealth)
	mux.HandleFunc("/status", d.handleStatusHTTP)

	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	d.workers.Go(func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Warn("admin server stopped", logfields.Error(err))
		}
	})
	d.logger.Info("admin server listening", slog.String("listen", listen))
	return srv
}
