package daemon

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/breaktimed/internal/config"
	"git.home.luguber.info/inful/breaktimed/internal/events"
	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
	"git.home.luguber.info/inful/breaktimed/internal/logfields"
)

// ConfigWatcher monitors the configuration file and triggers debounced
// reloads.
type ConfigWatcher struct {
	configPath   string
	daemon       *Daemon
	watcher      *fsnotify.Watcher
	mu           sync.Mutex
	stopChan     chan struct{}
	reloadChan   chan struct{}
	debounceTime time.Duration
}

// NewConfigWatcher creates a watcher for configPath.
func NewConfigWatcher(configPath string, daemon *Daemon) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "creating file watcher").Build()
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		_ = watcher.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolving config path").Build()
	}

	return &ConfigWatcher{
		configPath:   absPath,
		daemon:       daemon,
		watcher:      watcher,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: time.Second,
	}, nil
}

// Start begins monitoring. Watching the directory instead of the file
// survives editors that replace on save.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	if err := cw.watcher.Add(filepath.Dir(cw.configPath)); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "watching config directory").Build()
	}

	cw.daemon.logger.Info("watching configuration", logfields.ConfigHash(cw.daemon.sched.Status().ConfigHash))
	cw.daemon.workers.Go(func() { cw.watchLoop(ctx) })
	cw.daemon.workers.Go(func() { cw.reloadLoop(ctx) })
	return nil
}

// Stop shuts the watcher down.
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	select {
	case <-cw.stopChan:
		return nil
	default:
	}
	close(cw.stopChan)
	return cw.watcher.Close()
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(cw.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				cw.triggerReload()
			case event.Op&fsnotify.Remove != 0:
				cw.daemon.logger.Warn("config file removed, keeping current configuration")
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.daemon.logger.Warn("config watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	var reloadTimer *time.Timer
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case <-cw.reloadChan:
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(cw.debounceTime, func() {
				cw.daemon.reloadFromDisk(ctx)
			})
		}
	}
}

func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
	default:
	}
}

// reloadFromDisk loads, validates, and applies a config candidate. A
// candidate that fails to load or validate is rejected and the running
// snapshot stays in effect.
func (d *Daemon) reloadFromDisk(ctx context.Context) {
	now := d.clock()

	newCfg, err := config.Load(d.configPath)
	if err != nil {
		d.recorder.IncConfigReload(false)
		d.logger.Warn("config reload rejected", logfields.Error(err))
		_ = d.bus.Publish(ctx, events.ConfigRejected{Reason: err.Error(), At: now})
		return
	}

	oldHash := d.sched.Status().ConfigHash
	newHash := newCfg.Snapshot()
	if newHash == oldHash {
		d.logger.Debug("config unchanged, reload skipped")
		return
	}

	d.setConfig(newCfg)
	d.sched.Reload(newCfg, now)
	d.recorder.IncConfigReload(true)
	d.logger.Info("configuration reloaded", logfields.ConfigHash(newHash))
	_ = d.bus.Publish(ctx, events.ConfigReloaded{ConfigHash: newHash, At: now})
	d.poke()
}
