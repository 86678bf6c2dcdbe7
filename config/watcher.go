package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for more writes before reloading.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads configuration when one of the loader's files changes.
type Watcher struct {
	loader   *Loader
	onChange func(*Config)
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher that calls onChange with every successfully
// reloaded config. Invalid edits are logged and skipped.
func NewWatcher(loader *Loader, onChange func(*Config), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		loader:   loader,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   logger,
	}
}

// SetDebounce overrides the debounce delay.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run watches until ctx is cancelled. Directories are watched rather than
// files so that editors that replace files by rename are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	targets := make(map[string]bool)
	for _, p := range w.loader.Paths() {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		dir := filepath.Dir(abs)
		if err := fsw.Add(dir); err != nil {
			w.logger.Debug("Config directory not watchable", "dir", dir, "error", err)
			continue
		}
		targets[abs] = true
	}
	if len(targets) == 0 {
		w.logger.Debug("No config files to watch")
		<-ctx.Done()
		return ctx.Err()
	}

	w.logger.Info("Watching config", "files", len(targets), "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !targets[abs] {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Config watcher error", "error", err)

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Warn("Config reload rejected", "error", err)
		return
	}
	w.logger.Info("Config reloaded")
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
