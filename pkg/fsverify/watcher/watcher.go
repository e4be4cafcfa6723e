// Package watcher re-runs validation when captured tool output changes.
// Each watched capture directory is a root; a burst of events below a root
// results in one callback for that root once the burst has settled.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/fsverify/pkg/fsverify/logging"
)

var logger = logging.Get("watcher")

// Watcher watches capture directories recursively.
type Watcher struct {
	watcher *fsnotify.Watcher
	roots   []string
	paths   map[string]bool
	mu      sync.RWMutex
	closed  bool
}

// New creates a new Watcher.
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher: fsw,
		paths:   make(map[string]bool),
	}, nil
}

// Watch adds root and every directory below it. Symlinks are not followed.
func (w *Watcher) Watch(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	info, err := os.Lstat(absRoot)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("watch root is not a directory: " + absRoot)
	}

	w.mu.Lock()
	if !slices.Contains(w.roots, absRoot) {
		w.roots = append(w.roots, absRoot)
	}
	w.mu.Unlock()

	return w.addTree(absRoot)
}

// Roots returns the watched roots in the order they were added.
func (w *Watcher) Roots() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.roots...)
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // Skip entries with errors
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			return w.addWatch(path)
		}
		return nil
	})
}

// addWatch adds a single directory to the watch list.
func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}

	if err := w.watcher.Add(path); err != nil {
		logger.Warn("failed to add watch", "path", path, "error", err)
		return err
	}

	w.paths[path] = true
	return nil
}

// Run delivers settled changes until ctx is cancelled. fn is called with
// the changed root once no event has arrived below it for the debounce
// interval. Calls happen on the Run goroutine, one at a time.
func (w *Watcher) Run(ctx context.Context, debounce time.Duration, fn func(root string)) {
	fire := make(chan string)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			root := w.handleEvent(event)
			if root == "" {
				continue
			}
			if t, ok := timers[root]; ok {
				t.Reset(debounce)
				continue
			}
			timers[root] = time.AfterFunc(debounce, func() {
				select {
				case fire <- root:
				case <-ctx.Done():
				}
			})

		case root := <-fire:
			delete(timers, root)
			logger.Debug("capture changed", "root", root)
			fn(root)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("watcher error", "error", err)
		}
	}
}

// handleEvent keeps the watch list current and returns the root the event
// belongs to, or "" when the event is irrelevant.
func (w *Watcher) handleEvent(event fsnotify.Event) string {
	if event.Op == fsnotify.Chmod || strings.HasSuffix(event.Name, ".tmp") {
		return ""
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			_ = w.addTree(event.Name)
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.forget(event.Name)
	}

	return w.rootFor(event.Name)
}

// forget drops the watches of path and everything below it.
func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for watched := range w.paths {
		if watched == path || isSubPath(watched, path) {
			_ = w.watcher.Remove(watched)
			delete(w.paths, watched)
		}
	}
}

// rootFor returns the innermost watched root containing path.
func (w *Watcher) rootFor(path string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	best := ""
	for _, root := range w.roots {
		if (path == root || isSubPath(path, root)) && len(root) > len(best) {
			best = root
		}
	}
	return best
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}

// isSubPath checks if path is under parent directory.
func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
