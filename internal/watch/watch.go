// Package watch re-syncs a local project when its markdown files change.
//
// The watcher:
//  1. Watches the project root and every non-excluded subdirectory
//  2. Queues a sync on any create, write, remove or rename of a .md file
//  3. Runs one sync once changes have been quiet for the debounce interval
//  4. Re-queues when the project is already syncing
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/source"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/syncer"
)

// Trigger claims a project and syncs it in the foreground.
type Trigger interface {
	TriggerAndRun(ctx context.Context, slug string) (syncer.Result, error)
}

// Config holds configuration for a Watcher.
type Config struct {
	// Debounce is how long changes must be quiet before a sync runs.
	// Rapid saves are batched into one sync.
	Debounce time.Duration

	// Logger for watcher activity
	Logger *log.Logger
}

// DefaultDebounce is the quiet period used when Config.Debounce is unset.
const DefaultDebounce = 500 * time.Millisecond

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Debounce: DefaultDebounce,
		Logger:   log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// Watcher watches one local project.
type Watcher struct {
	slug    string
	root    string
	trigger Trigger
	config  *Config

	watcher *fsnotify.Watcher

	pendingMu  sync.Mutex
	pending    bool
	lastChange time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
}

// New creates a Watcher for the project slug rooted at root.
// Use Start to begin watching.
func New(slug, root string, trigger Trigger, config *Config) (*Watcher, error) {
	if slug == "" {
		return nil, fmt.Errorf("slug cannot be empty")
	}
	if root == "" {
		return nil, fmt.Errorf("root cannot be empty")
	}
	if trigger == nil {
		return nil, fmt.Errorf("trigger cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[watch] ", log.LstdFlags)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		slug:    slug,
		root:    root,
		trigger: trigger,
		config:  config,
		watcher: watcher,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start watches until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		w.Stop()
		return err
	}

	w.config.Logger.Printf("Watching %s for project '%s'", w.root, w.slug)

	w.wg.Add(2)
	go w.watchFileEvents()
	go w.processChangeQueue()

	select {
	case <-ctx.Done():
		w.config.Logger.Println("Shutdown signal received")
		w.Stop()
	case <-w.ctx.Done():
	}
	return nil
}

// Stop closes the watcher and waits for its goroutines. It is safe to call
// more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.cancel()
		if err := w.watcher.Close(); err != nil {
			w.config.Logger.Printf("Error closing watcher: %v", err)
		}
		w.wg.Wait()
	})
}

// addTree watches dir and every subdirectory the local collector would walk.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			w.config.Logger.Printf("Warning: cannot watch %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && source.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// watchFileEvents queues a sync for relevant events and follows new
// directories.
func (w *Watcher) watchFileEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if source.SkipDir(info.Name()) {
						continue
					}
					if err := w.addTree(event.Name); err != nil {
						w.config.Logger.Printf("Warning: %v", err)
					}
					// files may have landed before the watch was added
					w.queueChange()
					continue
				}
			}

			if !relevant(event) {
				continue
			}
			w.config.Logger.Printf("File event: %s %s", event.Op, event.Name)
			w.queueChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// relevant reports whether event can change the project's document set.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return source.IsMarkdown(filepath.Base(event.Name))
}

func (w *Watcher) queueChange() {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending = true
	w.lastChange = time.Now()
}

// processChangeQueue runs a sync once the queue has been quiet long enough.
func (w *Watcher) processChangeQueue() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			if w.takePending() {
				w.runSync()
			}
		}
	}
}

// takePending clears and reports a pending change whose quiet period has
// elapsed.
func (w *Watcher) takePending() bool {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if !w.pending || time.Since(w.lastChange) < w.config.Debounce {
		return false
	}
	w.pending = false
	return true
}

func (w *Watcher) runSync() {
	result, err := w.trigger.TriggerAndRun(w.ctx, w.slug)
	switch {
	case errors.Is(err, syncer.ErrSyncInProgress):
		w.config.Logger.Printf("Sync already running for '%s', re-queueing", w.slug)
		w.queueChange()
	case err != nil:
		w.config.Logger.Printf("Warning: sync for '%s' failed: %v", w.slug, err)
	default:
		w.config.Logger.Printf("Synced '%s': %s", w.slug, result)
	}
}
