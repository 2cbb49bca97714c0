package indexer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/ctxgraph/internal/parser"
)

// DefaultDebounce is how long the watcher waits for more changes before
// triggering a re-index
const DefaultDebounce = 500 * time.Millisecond

// ChangeHandler receives the deduplicated, sorted paths changed within one
// debounce window
type ChangeHandler func(ctx context.Context, paths []string)

// WatcherOptions configures a Watcher
type WatcherOptions struct {
	Debounce   time.Duration
	IgnoreDirs []string // Directory base names never watched
	Logger     *slog.Logger
}

// DefaultWatcherOptions returns the options used when NewWatcher gets nil
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		Debounce:   DefaultDebounce,
		IgnoreDirs: []string{"vendor", "node_modules", "testdata"},
	}
}

// Watcher watches a project tree and reports batches of changed Go and
// markdown files
type Watcher struct {
	root       string
	watcher    *fsnotify.Watcher
	handler    ChangeHandler
	debounce   time.Duration
	ignoreDirs map[string]bool
	logger     *slog.Logger

	changes  chan string
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	watching bool
}

// NewWatcher creates a watcher for root. Call Start to begin watching.
func NewWatcher(root string, handler ChangeHandler, opts *WatcherOptions) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ignore := make(map[string]bool, len(opts.IgnoreDirs))
	for _, d := range opts.IgnoreDirs {
		ignore[d] = true
	}

	return &Watcher{
		root:       root,
		watcher:    fw,
		handler:    handler,
		debounce:   opts.Debounce,
		ignoreDirs: ignore,
		logger:     logger,
		changes:    make(chan string, 1024),
		done:       make(chan struct{}),
	}, nil
}

// Start adds the project directories and begins processing events
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop ends watching and waits for a pending handler call to finish
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
		w.wg.Wait()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether Start has run and Stop has not
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignoreDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) ignoreDir(name string) bool {
	return strings.HasPrefix(name, ".") || w.ignoreDirs[name]
}

// relevant reports whether a changed path can affect the index
func relevant(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	return strings.HasSuffix(path, ".go") || parser.IsMarkdown(path)
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
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

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.ignoreDir(info.Name()) {
						if err := w.addRecursive(event.Name); err != nil {
							w.logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
						}
					}
					continue
				}
			}
			if !relevant(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}

			select {
			case w.changes <- event.Name:
			default:
				w.logger.Warn("watch buffer full, dropping change", "file", event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(pending) == 0 {
			return
		}
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		clear(pending)

		w.logger.Debug("files changed", "count", len(paths))
		if w.handler != nil {
			w.handler(ctx, paths)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case path := <-w.changes:
			pending[path] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			flush()
		}
	}
}

// ReindexOnChange returns a handler that re-runs IndexProject for root,
// skipping the batch when another run holds lock
func ReindexOnChange(idx *Indexer, root string, config *Config, lock *IndexLock) ChangeHandler {
	return func(ctx context.Context, paths []string) {
		if lock != nil {
			if !lock.TryAcquire() {
				idx.logger.Info("indexing in progress, skipping change batch", "files", len(paths))
				return
			}
			defer lock.Release()
		}
		if _, err := idx.IndexProject(ctx, root, config); err != nil {
			idx.logger.Error("re-index after change failed", "error", err)
		}
	}
}
