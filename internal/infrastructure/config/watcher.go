package configinfra

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	fsinfra "github.com/kilometers-ai/plugin-updater/internal/infrastructure/filesystem"
)

// DefaultDebounce coalesces editor save bursts into one reload
const DefaultDebounce = 250 * time.Millisecond

// PluginsFileWatcher calls onChange with the re-read plugin list whenever the
// plugins file changes on disk.
type PluginsFileWatcher struct {
	path     string
	debounce time.Duration
	onChange func([]PluginSpec)
	logger   zerolog.Logger

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// NewPluginsFileWatcher watches the directory holding path, so atomic
// rename-style saves are seen too.
func NewPluginsFileWatcher(path string, debounce time.Duration, onChange func([]PluginSpec), logger zerolog.Logger) (*PluginsFileWatcher, error) {
	path = filepath.Clean(fsinfra.ExpandPath(path))
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	return &PluginsFileWatcher{
		path:     path,
		debounce: debounce,
		onChange: onChange,
		logger:   logger.With().Str("component", "plugins_watcher").Str("path", path).Logger(),
		watcher:  fsw,
	}, nil
}

// Start processes events in the background until ctx is done
func (w *PluginsFileWatcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

func (w *PluginsFileWatcher) run(ctx context.Context) {
	defer w.wg.Done()
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("file watcher error")
		}
	}
}

// Wait blocks until the watch loop started by Start has returned
func (w *PluginsFileWatcher) Wait() {
	w.wg.Wait()
}

func (w *PluginsFileWatcher) reload() {
	plugins, err := LoadPluginsFile(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("ignoring invalid plugins file")
		return
	}
	w.logger.Debug().Int("plugins", len(plugins)).Msg("plugins file changed")
	w.onChange(plugins)
}
