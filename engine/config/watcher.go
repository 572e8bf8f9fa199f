package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a config file when it changes on disk.
type Watcher struct {
	path     string
	onChange func(Config)
	debounce time.Duration
	logger   *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the file must be quiet before it is reloaded. The default is 250ms.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher creates a watcher for the config file at path. onChange receives every config
// that loads and validates; invalid edits are logged and skipped.
//
// Parameters:
//   - path: the config file
//   - onChange: called from the watcher goroutine with the new config
//   - options: a variadic list of WatcherOption functions
//
// Returns:
//   - *Watcher: the watcher, not yet running
func NewWatcher(path string, onChange func(Config), options ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		debounce: 250 * time.Millisecond,
		logger:   zap.NewNop(),
	}
	for _, option := range options {
		option(w)
	}
	return w
}

// Run watches the file's directory until ctx is done. Editors often replace the file instead of
// writing it, so the directory is watched and events are filtered by name.
//
// Parameters:
//   - ctx: stops the watcher when done
//
// Returns:
//   - error: an error if the watch cannot be set up; nil once ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.logger.Info("watching config", zap.String("path", w.path))

	debounceTimer := time.NewTimer(w.debounce)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	defer debounceTimer.Stop()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				w.logger.Debug("config file changed", zap.String("op", event.Op.String()))
				debounceTimer.Reset(w.debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("config watcher error", zap.Error(err))

		case <-debounceTimer.C:
			w.reload()

		case <-ctx.Done():
			w.logger.Info("stopping config watcher")
			return nil
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Clean(event.Name) == w.path
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("ignoring config change", zap.Error(err))
		return
	}
	w.logger.Info("config reloaded", zap.String("path", w.path))
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
