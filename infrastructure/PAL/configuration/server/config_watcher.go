package server

import (
	"context"
	"path/filepath"
	"time"

	"avb/application/logging"

	"github.com/fsnotify/fsnotify"
)

// CapacitySetter applies a new player limit to a running server.
type CapacitySetter interface {
	SetMaxPlayers(n uint32)
}

// ConfigWatcher applies max_players changes to a running server. It uses
// fsnotify and falls back to polling.
type ConfigWatcher struct {
	configManager ConfigurationManager
	capacity      CapacitySetter
	interval      time.Duration
	logger        logging.Logger

	maxPlayers uint32
	loaded     bool
}

func NewConfigWatcher(
	configManager ConfigurationManager,
	capacity CapacitySetter,
	interval time.Duration,
	logger logging.Logger,
) *ConfigWatcher {
	return &ConfigWatcher{
		configManager: configManager,
		capacity:      capacity,
		interval:      interval,
		logger:        logger,
	}
}

// Watch blocks until ctx is done.
func (w *ConfigWatcher) Watch(ctx context.Context) {
	w.check()

	// the directory is watched because atomic writes replace the file's inode
	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	path := w.configManager.Path()
	dir, configFileName := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Printf("config watcher: fsnotify unavailable: %v (using polling)", err)
	} else {
		defer func() {
			_ = watcher.Close()
		}()
		if err := watcher.Add(dir); err != nil {
			w.logger.Printf("config watcher: watch of %s failed: %v (using polling)", dir, err)
		} else {
			fsEvents = watcher.Events
			fsErrors = watcher.Errors
		}
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if filepath.Base(event.Name) != configFileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.check()
			}
		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			w.logger.Printf("config watcher: fsnotify error: %v", err)
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *ConfigWatcher) check() {
	conf, err := w.configManager.Reload()
	if err != nil {
		w.logger.Printf("config watcher: keeping current settings: %v", err)
		return
	}
	if w.loaded && conf.MaxPlayers == w.maxPlayers {
		return
	}
	if w.loaded {
		w.capacity.SetMaxPlayers(conf.MaxPlayers)
	}
	w.maxPlayers = conf.MaxPlayers
	w.loaded = true
}

// ForceCheck re-reads the configuration immediately.
func (w *ConfigWatcher) ForceCheck() {
	w.check()
}
