// Package watcher reloads the configuration file when it changes on disk and
// pushes the parsed result to the running server.
package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/modelbridge/gembridge/internal/config"
)

// debounceInterval coalesces the burst of events editors emit on save.
const debounceInterval = 500 * time.Millisecond

// Watcher monitors a configuration file and invokes a callback with each
// successfully reloaded configuration.
type Watcher struct {
	configPath string
	onChange   func(*config.Config)
}

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(configPath string, onChange func(*config.Config)) *Watcher {
	return &Watcher{
		configPath: filepath.Clean(configPath),
		onChange:   onChange,
	}
}

// Start begins watching in a background goroutine until ctx is cancelled.
// The parent directory is watched rather than the file itself so that
// rename-based saves keep working.
func (w *Watcher) Start(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err = fsWatcher.Add(filepath.Dir(w.configPath)); err != nil {
		_ = fsWatcher.Close()
		return err
	}

	go w.run(ctx, fsWatcher)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsWatcher *fsnotify.Watcher) {
	defer func() {
		_ = fsWatcher.Close()
	}()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.configPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, w.reload)
		case errWatch, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warnf("config watcher error: %v", errWatch)
		}
	}
}

// reload parses the file and hands the result to the callback. A file that
// fails to parse leaves the previous configuration in effect.
func (w *Watcher) reload() {
	cfg, err := config.LoadConfig(w.configPath)
	if err != nil {
		log.Warnf("config reload failed, keeping previous configuration: %v", err)
		return
	}
	log.Infof("configuration reloaded from %s", w.configPath)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
