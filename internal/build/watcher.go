package build

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceDelay is the default quiet period before a change burst is reported
const DefaultDebounceDelay = 200 * time.Millisecond

// Watcher watches source trees and reports bursts of matching changes.
// Every change restarts a single quiet-period timer; when it fires, all paths
// changed since the last report are delivered together.
type Watcher struct {
	watcher *fsnotify.Watcher
	changes chan []string
	errors  chan error
	done    chan struct{}
	roots   []string
	pattern string // e.g., "*.go"
	ignore  map[string]bool

	mu            sync.Mutex
	debounceDelay time.Duration
	timer         *time.Timer
	pending       map[string]struct{}
	closed        bool
}

// NewWatcher creates a Watcher over roots and all their subdirectories.
// Directories listed in ignore (and any .git directory) are never watched.
func NewWatcher(roots []string, pattern string, debounce time.Duration, ignore ...string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = DefaultDebounceDelay
	}

	w := &Watcher{
		watcher:       watcher,
		changes:       make(chan []string, 16),
		errors:        make(chan error, 10),
		done:          make(chan struct{}),
		pattern:       pattern,
		ignore:        make(map[string]bool, len(ignore)),
		debounceDelay: debounce,
		pending:       make(map[string]struct{}),
	}

	for _, dir := range ignore {
		w.ignore[filepath.Clean(dir)] = true
	}

	for _, root := range roots {
		root = filepath.Clean(root)
		w.roots = append(w.roots, root)
		if err := w.addRecursive(root); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	go w.processEvents()

	return w, nil
}

// addRecursive adds the directory and all its subdirectories to the watcher
func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// If the directory doesn't exist, that's ok - skip it
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		if !info.IsDir() {
			return nil
		}
		if w.skipDir(path) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			// Ignore permission errors for directories we can't access
			if os.IsPermission(err) {
				return nil
			}
			return err
		}
		return nil
	})
}

func (w *Watcher) skipDir(path string) bool {
	return w.ignore[filepath.Clean(path)] || filepath.Base(path) == ".git"
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	// New directories join the watch so files created inside them are seen
	if event.Has(fsnotify.Create) {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if err := w.addRecursive(path); err != nil {
				w.sendError(err)
			}
			return
		}
	}

	if event.Op == fsnotify.Chmod || !w.matchesPattern(path) {
		return
	}

	w.debounce(path)
}

// matchesPattern checks the file name against the configured pattern
func (w *Watcher) matchesPattern(path string) bool {
	if w.pattern == "" {
		return true
	}

	matched, err := filepath.Match(w.pattern, filepath.Base(path))
	if err != nil {
		return false
	}
	return matched
}

// debounce records path and restarts the quiet-period timer
func (w *Watcher) debounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceDelay, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if w.closed || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	w.timer = nil
	w.mu.Unlock()

	sort.Strings(paths)

	select {
	case w.changes <- paths:
	case <-w.done:
	default:
		// Changes channel full; a rebuild is already queued
	}
}

func (w *Watcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
		// Error channel full, drop the error
	}
}

// Changes returns the channel of coalesced change bursts
func (w *Watcher) Changes() <-chan []string {
	return w.changes
}

// Errors returns the channel for receiving errors
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Roots returns the watched root directories
func (w *Watcher) Roots() []string {
	return append([]string(nil), w.roots...)
}

// Close stops the watcher and releases resources
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true

	if w.timer != nil {
		w.timer.Stop()
	}
	w.pending = nil
	w.mu.Unlock()

	close(w.done)

	return w.watcher.Close()
}
