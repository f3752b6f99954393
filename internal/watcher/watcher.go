package watcher

import (
	"context"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Event represents a log file change detected by the watcher.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Watcher monitors workflow log files for changes using OS-level notifications.
type Watcher struct {
	fsw    *fsnotify.Watcher
	log    *zap.Logger
	Events chan Event
	paths  []string
}

// New creates a Watcher for the given glob patterns.
// Patterns are expanded at startup and the resulting files are watched.
func New(patterns []string, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:    fsw,
		log:    log,
		Events: make(chan Event, 256),
	}

	for _, abs := range Expand(patterns, log) {
		if err := fsw.Add(abs); err != nil {
			log.Warn("cannot watch file", zap.String("path", abs), zap.Error(err))
			continue
		}
		w.paths = append(w.paths, abs)
	}

	return w, nil
}

// Start begins listening for file events. It blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	defer w.fsw.Close()
	defer close(w.Events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			// Forward relevant events (write, create, remove, rename).
			switch {
			case ev.Op&fsnotify.Write != 0,
				ev.Op&fsnotify.Create != 0,
				ev.Op&fsnotify.Remove != 0,
				ev.Op&fsnotify.Rename != 0:
				w.Events <- Event{Path: ev.Name, Op: ev.Op}
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.Error(err))
		}
	}
}

// Paths returns the list of files currently being watched.
func (w *Watcher) Paths() []string {
	return w.paths
}

// ReWatch adds a path back to the watcher (used after rotation).
func (w *Watcher) ReWatch(path string) error {
	return w.fsw.Add(path)
}

// Expand resolves glob patterns to absolute file paths, in pattern order.
// Supports recursive patterns like /g3/nwp/ecflow/**/*.log via doublestar.
// Patterns that fail to expand are logged and skipped; duplicates are dropped.
func Expand(patterns []string, log *zap.Logger) []string {
	if log == nil {
		log = zap.NewNop()
	}
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
		if err != nil {
			log.Warn("failed to expand pattern", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		for _, m := range matches {
			abs, _ := filepath.Abs(m)
			if seen[abs] {
				continue
			}
			seen[abs] = true
			out = append(out, abs)
		}
	}
	return out
}
