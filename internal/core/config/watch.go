package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file into a Store when it changes on disk.
type Watcher struct {
	path     string
	store    *Store
	debounce time.Duration
	log      *slog.Logger
}

// NewWatcher creates a watcher for path.
func NewWatcher(path string, store *Store) *Watcher {
	return &Watcher{
		path:     path,
		store:    store,
		debounce: 500 * time.Millisecond,
		log:      slog.Default().With("component", "config-watcher"),
	}
}

// Run blocks until ctx is cancelled. The parent directory is watched so
// editors that replace the file atomically are handled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	target := filepath.Clean(w.path)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				pending = time.After(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("File watcher error", "error", err)
		case <-pending:
			pending = nil
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Error("Config reload failed, keeping current settings", "error", err)
		return
	}
	if err := w.store.Replace(ctx, cfg.Vitality); err != nil {
		w.log.Error("Config reload failed, keeping current settings", "error", err)
		return
	}
	w.log.Info("Config reloaded", "path", w.path)
}
