package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lcx/hotplug/archive"
	"github.com/lcx/hotplug/log"
)

// DefaultSettle is how long an archive must stay quiet before the watcher
// acts on it.
const DefaultSettle = 300 * time.Millisecond

// Watcher installs and starts archives dropped into the plugin directory,
// reloads a plugin whose archive is rewritten in place and uninstalls
// plugins whose archive disappears.
type Watcher struct {
	app     *Application
	dir     string
	settle  time.Duration
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	done    chan struct{}
}

// NewWatcher watches dir on behalf of app. settle <= 0 uses DefaultSettle.
func NewWatcher(app *Application, dir string, settle time.Duration) (*Watcher, error) {
	if settle <= 0 {
		settle = DefaultSettle
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &Watcher{
		app:     app,
		dir:     dir,
		settle:  settle,
		watcher: fw,
		pending: make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}, nil
}

// Run consumes file events until ctx is done or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !archive.IsArchive(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			w.schedule(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("dir", w.dir).Msg("plugin dir watcher")
		}
	}
}

// schedule coalesces bursts of events on one file, such as the writes of
// a copy in progress, into a single action.
func (w *Watcher) schedule(ctx context.Context, event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.apply(ctx, path)
	})
}

func (w *Watcher) apply(ctx context.Context, path string) {
	_, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if id, ok := w.app.byPath(path); ok {
			if err := w.app.Uninstall(ctx, id); err != nil {
				log.Error().Err(err).Str("plugin", id).Msg("uninstall removed archive")
			}
		}
	case err != nil:
		log.Warn().Err(err).Str("path", path).Msg("stat archive")
	default:
		if id, ok := w.app.byPath(path); ok {
			if _, err := w.app.Reload(ctx, id); err != nil {
				log.Error().Err(err).Str("plugin", id).Msg("reload rewritten archive")
			}
			return
		}
		info, err := w.app.Install(ctx, path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("install new archive")
			return
		}
		if err := w.app.Start(ctx, info.ID); err != nil {
			log.Error().Err(err).Str("plugin", info.ID).Msg("start new archive")
		}
	}
}

// Close stops watching. Pending actions are dropped; an action already
// running completes.
func (w *Watcher) Close() error {
	w.mu.Lock()
	for p, t := range w.pending {
		t.Stop()
		delete(w.pending, p)
	}
	w.mu.Unlock()
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.watcher.Close()
}
