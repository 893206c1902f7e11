package file

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bivasb/medguard-ai-sub000/internal/logger"
)

const defaultWatchDebounce = 500 * time.Millisecond

// Watcher reloads a ConfigStore when its file changes and notifies a
// callback after each successful reload.
type Watcher struct {
	store    *ConfigStore
	onReload func()
	debounce time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for store. onReload may be nil.
func NewWatcher(store *ConfigStore, onReload func()) *Watcher {
	return &Watcher{
		store:    store,
		onReload: onReload,
		debounce: defaultWatchDebounce,
		stopCh:   make(chan struct{}),
	}
}

// SetDebounce overrides the reload debounce window.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Start begins watching. The watcher stops when ctx is done or Stop is
// called. The directory is watched rather than the file so editors that
// replace the file on save are handled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watcher != nil {
		w.mu.Unlock()
		return nil
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(w.store.Path())); err != nil {
		_ = fsWatcher.Close()
		w.mu.Unlock()
		return fmt.Errorf("watch config dir: %w", err)
	}
	w.watcher = fsWatcher
	w.mu.Unlock()

	go w.loop(fsWatcher)
	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.stopCh:
		}
	}()
	return nil
}

// Stop terminates the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
			w.watcher = nil
		}
	})
}

func (w *Watcher) loop(fsWatcher *fsnotify.Watcher) {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Config watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	name := filepath.Base(event.Name)
	if name != configFileName && name != envFileName {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.stopCh:
		return
	default:
	}
	if err := w.store.Load(); err != nil {
		logger.Warn("Config reload failed, keeping previous values: %v", err)
		return
	}
	logger.Info("Reloaded configuration from %s", w.store.Path())
	if w.onReload != nil {
		w.onReload()
	}
}
