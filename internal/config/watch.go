package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// DefaultDebounce is the quiet period after the last file event before the
// configuration is reloaded.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk.
type Watcher struct {
	Path     string
	Debounce time.Duration
	Logger   zerolog.Logger
	// OnChange receives every configuration that loads and validates.
	// Files that fail to load are logged and skipped.
	OnChange func(types.Config) error
}

// Run watches the directory of w.Path until ctx is done. Editors often
// replace a file instead of writing it in place, so the directory is watched
// and events are filtered by name.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(w.Path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	name := filepath.Clean(w.Path)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.Path)
	if err != nil {
		w.Logger.Error().Err(err).Str("path", w.Path).Msg("config reload skipped")
		return
	}
	if w.OnChange == nil {
		return
	}
	if err := w.OnChange(cfg); err != nil {
		w.Logger.Error().Err(err).Str("path", w.Path).Msg("config reload failed")
		return
	}
	w.Logger.Info().Str("path", w.Path).Msg("config reloaded")
}
