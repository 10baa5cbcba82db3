// Package watcher reports file changes under a project root. Changes are
// handed to the registered handlers one at a time, in arrival order; with a
// debounce delay, changes to the same path within the delay coalesce.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/pri/internal/logging"
)

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type EventType
	// Path is absolute; Rel is slash separated and relative to the root.
	Path    string
	Rel     string
	ModTime time.Time
	Size    int64
}

// Filter reports whether a change to the project-relative path is wanted.
type Filter func(rel string) bool

// Handler handles one change. Errors are logged and watching continues.
type Handler func(ctx context.Context, event ChangeEvent) error

// DefaultIgnores are directory names never watched.
var DefaultIgnores = []string{"node_modules", ".git", ".temp", ".vscode", "coverage", ".nyc_output"}

// Options configures a Watcher.
type Options struct {
	Root string
	// Debounce coalesces changes per path; zero delivers every change.
	Debounce time.Duration
	// Ignore lists extra directory names or root-relative directories to skip.
	Ignore []string
	Logger logging.Logger
}

// Watcher watches a directory tree.
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	debounce time.Duration
	ignores  []string
	logger   logging.Logger

	mu       sync.RWMutex
	filters  []Filter
	handlers []Handler

	closeOnce sync.Once
}

// New creates a watcher and registers every directory under opts.Root.
func New(opts Options) (*Watcher, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		root:     root,
		debounce: opts.Debounce,
		ignores:  append(append([]string(nil), DefaultIgnores...), opts.Ignore...),
		logger:   logger.WithComponent("watcher"),
	}

	if err := w.addRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return w, nil
}

// AddFilter adds a filter; a change must pass every filter.
func (w *Watcher) AddFilter(filter Filter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.filters = append(w.filters, filter)
}

// AddHandler adds a change handler
func (w *Watcher) AddHandler(handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Run delivers changes until ctx is cancelled, then releases the watcher.
// Cancellation is not an error.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending = make(map[string]ChangeEvent)
		order   []string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			change, ok := w.convert(ev)
			if !ok {
				continue
			}
			if w.debounce <= 0 {
				w.dispatch(ctx, change)
				continue
			}

			if _, seen := pending[change.Path]; !seen {
				order = append(order, change.Path)
			}
			pending[change.Path] = change
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			for _, path := range order {
				w.dispatch(ctx, pending[path])
			}
			order = order[:0]
			clear(pending)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

// Close releases the underlying watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) dispatch(ctx context.Context, event ChangeEvent) {
	w.mu.RLock()
	handlers := append([]Handler(nil), w.handlers...)
	w.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			w.logger.Error(ctx, err, "File watcher handler error", "path", event.Rel)
		}
	}
}

// convert maps an fsnotify event, registering new directories on the way.
// Directory events and filtered paths are dropped.
func (w *Watcher) convert(event fsnotify.Event) (ChangeEvent, bool) {
	rel, ok := w.relative(event.Name)
	if !ok || w.ignored(rel) {
		return ChangeEvent{}, false
	}

	info, err := os.Stat(event.Name)
	if err == nil && info.IsDir() {
		if event.Op.Has(fsnotify.Create) {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn(context.Background(), err, "Failed to watch new directory", "path", rel)
			}
		}
		return ChangeEvent{}, false
	}

	w.mu.RLock()
	filters := w.filters
	w.mu.RUnlock()
	for _, filter := range filters {
		if !filter(rel) {
			return ChangeEvent{}, false
		}
	}

	change := ChangeEvent{Path: event.Name, Rel: rel}
	if err == nil {
		change.ModTime = info.ModTime()
		change.Size = info.Size()
	}

	switch {
	case event.Op.Has(fsnotify.Create):
		change.Type = EventTypeCreated
	case event.Op.Has(fsnotify.Write):
		change.Type = EventTypeModified
	case event.Op.Has(fsnotify.Remove):
		change.Type = EventTypeDeleted
	case event.Op.Has(fsnotify.Rename):
		change.Type = EventTypeRenamed
	default:
		change.Type = EventTypeModified
	}

	return change, true
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}

		if rel, ok := w.relative(path); ok && rel != "." && w.ignored(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) relative(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

// ignored matches every path segment against the ignore list. Entries that
// contain a slash match a root-relative directory prefix instead.
func (w *Watcher) ignored(rel string) bool {
	segments := strings.Split(rel, "/")
	for _, ignore := range w.ignores {
		ignore = strings.Trim(ignore, "/")
		if ignore == "" {
			continue
		}
		if strings.Contains(ignore, "/") {
			if rel == ignore || strings.HasPrefix(rel, ignore+"/") {
				return true
			}
			continue
		}
		for _, segment := range segments {
			if segment == ignore {
				return true
			}
		}
	}
	return false
}

// Extensions keeps changes to files with one of exts.
func Extensions(exts ...string) Filter {
	return func(rel string) bool {
		ext := filepath.Ext(rel)
		for _, want := range exts {
			if ext == want {
				return true
			}
		}
		return false
	}
}

// NoTestFilter drops test sources.
func NoTestFilter(rel string) bool {
	base := filepath.Base(rel)
	for _, pattern := range []string{"*.test.ts", "*.test.tsx", "*.spec.ts", "*.spec.tsx"} {
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
	}
	return true
}
