package daemon

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
	"git.home.luguber.info/inful/docgen/internal/logfields"
)

// SourceWatcher reports debounced changes to a set of root files and below a
// set of root directories.
type SourceWatcher struct {
	roots    []string
	ignore   []string
	debounce time.Duration
	onChange func(path string)

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	watched map[string]bool
	trees   []string
	files   map[string]bool
}

// NewSourceWatcher watches directory roots recursively and file roots
// individually; a file root's siblings never trigger onChange. Paths at or
// below an ignore entry, and any file or directory whose name starts with a
// dot, are filtered out too. onChange receives the last changed path of a
// burst.
func NewSourceWatcher(roots, ignore []string, debounce time.Duration, onChange func(path string)) (*SourceWatcher, error) {
	if len(roots) == 0 {
		return nil, foundation.ValidationError("at least one watch root is required").Build()
	}
	if debounce <= 0 {
		return nil, foundation.ValidationError("debounce must be > 0").Build()
	}
	if onChange == nil {
		return nil, foundation.ValidationError("change callback is required").Build()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, foundation.WrapError(err, foundation.CategoryDaemon, "failed to create file watcher").Build()
	}
	sw := &SourceWatcher{
		debounce: debounce,
		onChange: onChange,
		watcher:  w,
		watched:  make(map[string]bool),
		files:    make(map[string]bool),
	}
	for _, r := range roots {
		sw.roots = append(sw.roots, filepath.Clean(r))
	}
	for _, p := range ignore {
		sw.ignore = append(sw.ignore, filepath.Clean(p))
	}
	return sw, nil
}

// Start registers the directory trees and begins delivering events until ctx
// is done or Close is called.
func (sw *SourceWatcher) Start(ctx context.Context) error {
	for _, root := range sw.roots {
		info, err := os.Stat(root)
		if err != nil {
			slog.Warn("Skipping missing watch path", logfields.Path(root), logfields.Error(err))
			continue
		}
		if !info.IsDir() {
			if err := sw.addFile(root); err != nil {
				return err
			}
			continue
		}
		sw.mu.Lock()
		sw.trees = append(sw.trees, root)
		sw.mu.Unlock()
		if err := sw.addTree(root); err != nil {
			return err
		}
	}
	if sw.count() == 0 {
		return foundation.DaemonError("no watchable directories").
			WithContext("roots", sw.roots).
			Build()
	}
	slog.Info("Watching documentation sources", slog.Int("directories", sw.count()))
	go sw.loop(ctx)
	return nil
}

// Close stops the watcher.
func (sw *SourceWatcher) Close() error {
	return sw.watcher.Close()
}

// Ignored reports whether a change to path is filtered out.
func (sw *SourceWatcher) Ignored(path string) bool {
	path = filepath.Clean(path)
	if strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	for _, ig := range sw.ignore {
		if path == ig || strings.HasPrefix(path, ig+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (sw *SourceWatcher) count() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return len(sw.watched)
}

// addFile watches the directory holding path without descending into it.
func (sw *SourceWatcher) addFile(path string) error {
	dir := filepath.Dir(path)
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.files[path] = true
	if sw.watched[dir] {
		return nil
	}
	if err := sw.watcher.Add(dir); err != nil {
		return foundation.WrapError(err, foundation.CategoryDaemon, "failed to watch file").
			WithContext("path", path).
			Build()
	}
	sw.watched[dir] = true
	return nil
}

// inTree reports whether path is at or below a recursively watched root.
func (sw *SourceWatcher) inTree(path string) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	for _, root := range sw.trees {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (sw *SourceWatcher) isFile(path string) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.files[path]
}

// addTree adds dir and every non-ignored directory below it.
func (sw *SourceWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Debug("Cannot walk watch path", logfields.Path(path), logfields.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && sw.Ignored(path) {
			return filepath.SkipDir
		}
		sw.mu.Lock()
		defer sw.mu.Unlock()
		if sw.watched[path] {
			return nil
		}
		if err := sw.watcher.Add(path); err != nil {
			return foundation.WrapError(err, foundation.CategoryDaemon, "failed to watch directory").
				WithContext("path", path).
				Build()
		}
		sw.watched[path] = true
		return nil
	})
}

func (sw *SourceWatcher) loop(ctx context.Context) {
	// Reset discards a pending fire (Go 1.23 timer semantics).
	timer := time.NewTimer(sw.debounce)
	timer.Stop()
	defer timer.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if !sw.relevant(event) {
				continue
			}
			slog.Debug("Source change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
			if event.Has(fsnotify.Create) && sw.inTree(event.Name) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := sw.addTree(event.Name); err != nil {
						slog.Warn("Cannot watch new directory", logfields.Path(event.Name), logfields.Error(err))
					}
				}
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				sw.forget(event.Name)
			}
			last = event.Name
			timer.Reset(sw.debounce)
		case <-timer.C:
			sw.onChange(last)
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Source watcher error", logfields.Error(err))
		}
	}
}

func (sw *SourceWatcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(event.Name)
	if sw.Ignored(name) {
		return false
	}
	return sw.inTree(name) || sw.isFile(name)
}

// forget drops bookkeeping for a removed directory; fsnotify already stopped
// watching it.
func (sw *SourceWatcher) forget(path string) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	prefix := path + string(filepath.Separator)
	for p := range sw.watched {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(sw.watched, p)
		}
	}
}
