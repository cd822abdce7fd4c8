package runtime

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"hipcortex/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// SeedWatcher reloads the graph seed whenever the file is written or
// recreated. It watches the parent directory so editors that save by
// rename-and-replace are still seen.
type SeedWatcher struct {
	mu          sync.Mutex
	path        string
	dir         string
	reload      func() error
	debounceDur time.Duration
	pendingAt   time.Time
	pending     bool
	ready       chan struct{}
	readyOnce   sync.Once
	stats       SeedWatcherStats
}

// SeedWatcherStats tracks watcher activity.
type SeedWatcherStats struct {
	Events        int
	Reloads       int
	Errors        int
	LastEventType string
	LastReload    time.Time
}

// NewSeedWatcher prepares a watcher for path. reload runs once per settled
// burst of changes.
func NewSeedWatcher(path string, reload func() error) (*SeedWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("seed watcher: path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("seed watcher: %w", err)
	}
	return &SeedWatcher{
		path:        abs,
		dir:         filepath.Dir(abs),
		reload:      reload,
		debounceDur: 300 * time.Millisecond, // Debounce rapid saves
		ready:       make(chan struct{}),
	}, nil
}

// Ready is closed once the directory is being watched.
func (w *SeedWatcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is cancelled. It returns nil on cancellation and may
// be called again afterwards.
func (w *SeedWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("seed watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("seed watcher: watch %s: %w", w.dir, err)
	}
	logging.Watcher("SeedWatcher: watching %s", w.path)
	w.readyOnce.Do(func() { close(w.ready) })

	// Debounce timer for batching rapid changes
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Watcher("SeedWatcher: stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryWatcher).Error("SeedWatcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processDebounced()
		}
	}
}

func (w *SeedWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}

	var eventType string
	switch {
	case event.Has(fsnotify.Create):
		eventType = "create"
	case event.Has(fsnotify.Write):
		eventType = "modify"
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// Graph keeps its last good contents until the file returns.
		logging.WatcherDebug("SeedWatcher: %s removed", w.path)
		return
	default:
		return
	}

	logging.WatcherDebug("SeedWatcher: %s event", eventType)

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventType = eventType
	w.pending = true
	w.pendingAt = time.Now()
	w.mu.Unlock()
}

func (w *SeedWatcher) processDebounced() {
	w.mu.Lock()
	if !w.pending || time.Since(w.pendingAt) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	err := w.reload()

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.stats.Errors++
		logging.Get(logging.CategoryWatcher).Warn("SeedWatcher: reload failed, keeping previous graph: %v", err)
		return
	}
	w.stats.Reloads++
	w.stats.LastReload = time.Now()
	logging.Watcher("SeedWatcher: graph reloaded from %s", w.path)
}

// Stats returns a copy of the watcher's counters.
func (w *SeedWatcher) Stats() SeedWatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
