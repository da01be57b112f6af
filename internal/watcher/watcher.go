// Package watcher adapts fsnotify to the raw event feed consumed by the
// interpreter. It keeps recursive directory watches, pairs the two halves of a
// rename into one move, announces the content of directories that appear and
// debounces writes.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/linkwatcher/internal/config"
	"github.com/standardbeagle/linkwatcher/internal/logging"
	"github.com/standardbeagle/linkwatcher/internal/types"
	"github.com/standardbeagle/linkwatcher/pkg/pathutil"
)

const (
	eventBuffer = 1024

	// inotify queues the two halves of a rename back to back; a Rename that is
	// not followed by its Create within this window left the watched tree.
	renameWindow = 100 * time.Millisecond
)

// heldRename is the first half of a possible move.
type heldRename struct {
	path  string
	canon string
	isDir bool
}

// Options configure a Watcher.
type Options struct {
	Root     string // absolute project root
	Filter   *config.Filter
	Debounce time.Duration // quiet period before a write becomes EventModified
	Logger   *slog.Logger
}

// Watcher monitors a project tree and emits types.RawEvent values in the order
// fsnotify reported them.
type Watcher struct {
	watcher *fsnotify.Watcher
	root    string
	filter  *config.Filter
	logger  *slog.Logger
	writes  *debouncer
	held    *heldRename // owned by the event goroutine

	events chan types.RawEvent
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	stop   sync.Once

	// watched directories, so a remove can be reported as a directory delete
	dirsMu sync.Mutex
	dirs   map[string]struct{}

	statsMu         sync.RWMutex
	eventsProcessed int64
	errorCount      int64
}

// New creates a watcher. Nothing is watched until Start.
func New(opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		watcher: fw,
		root:    filepath.Clean(opts.Root),
		filter:  opts.Filter,
		logger:  logging.Component(opts.Logger, "watcher"),
		writes:  newDebouncer(opts.Debounce),
		events:  make(chan types.RawEvent, eventBuffer),
		ctx:     ctx,
		cancel:  cancel,
		dirs:    make(map[string]struct{}),
	}, nil
}

// Events is closed after Stop returns.
func (w *Watcher) Events() <-chan types.RawEvent {
	return w.events
}

// Start adds watches for every non-ignored directory and begins delivering events.
func (w *Watcher) Start() error {
	w.logger.Debug("starting file watcher", "root", w.root)
	if err := w.addWatches(w.root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", w.root, err)
	}

	w.wg.Add(1)
	go w.processEvents()

	w.logger.Info("file watcher started", "directories", w.watchedDirs())
	return nil
}

// Stop closes the fsnotify watcher and waits for the event goroutine. Pending
// debounced writes are dropped.
func (w *Watcher) Stop() error {
	var err error
	w.stop.Do(func() {
		w.cancel()
		if cerr := w.watcher.Close(); cerr != nil {
			err = cerr
			w.logger.Warn("error closing fsnotify watcher", "error", cerr)
		}
		w.wg.Wait()
		close(w.events)
		w.logger.Debug("file watcher stopped")
	})
	return err
}

// addWatches walks dir and watches every directory that is not ignored. It
// returns the monitored files found on the way, so a directory that appears
// with content can be announced child by child.
func (w *Watcher) addWatches(dir string) error {
	_, err := w.walk(dir, false)
	return err
}

func (w *Watcher) walk(dir string, collect bool) ([]string, error) {
	visited := make(map[string]bool)
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		canon, ok := pathutil.Canonicalize(path, w.root, w.root)
		if !ok {
			return filepath.SkipDir
		}

		if !d.IsDir() {
			if collect && d.Type().IsRegular() && w.filter.IsMonitored(canon) {
				files = append(files, path)
			}
			return nil
		}

		// symlink cycles
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil || visited[realPath] {
			return filepath.SkipDir
		}
		visited[realPath] = true

		if canon != "" && w.filter.IsIgnoredDir(canon) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to add watch", "path", path, "error", err)
			return nil
		}
		w.dirsMu.Lock()
		w.dirs[path] = struct{}{}
		w.dirsMu.Unlock()
		return nil
	})
	return files, err
}

func (w *Watcher) watchedDirs() int {
	w.dirsMu.Lock()
	defer w.dirsMu.Unlock()
	return len(w.dirs)
}

// forgetDir drops path and everything below it from the watched set and
// reports whether path was a watched directory. Watches of a moved tree are
// removed so they can be re-added under the new path.
func (w *Watcher) forgetDir(path string) bool {
	w.dirsMu.Lock()
	_, wasDir := w.dirs[path]
	var removed []string
	if wasDir {
		prefix := path + string(filepath.Separator)
		for d := range w.dirs {
			if d == path || strings.HasPrefix(d, prefix) {
				delete(w.dirs, d)
				removed = append(removed, d)
			}
		}
	}
	w.dirsMu.Unlock()

	for _, d := range removed {
		// the kernel may already have dropped it
		_ = w.watcher.Remove(d)
	}
	return wasDir
}

// processEvents owns the debounce state and the held rename; everything it
// touches besides the watched-dir set is confined to this goroutine.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	writeTimer := time.NewTimer(time.Hour)
	writeTimer.Stop()
	defer writeTimer.Stop()
	renameTimer := time.NewTimer(time.Hour)
	renameTimer.Stop()
	defer renameTimer.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
			if w.held != nil {
				renameTimer.Reset(renameWindow)
			}
			if next, ok := w.writes.next(); ok {
				writeTimer.Reset(time.Until(next))
			}

		case <-renameTimer.C:
			if h := w.held; h != nil {
				w.held = nil
				w.emitDeleted(h)
			}

		case <-writeTimer.C:
			for _, path := range w.writes.due(time.Now()) {
				w.emit(types.RawEvent{Op: types.EventModified, Path: path, Size: -1})
			}
			if next, ok := w.writes.next(); ok {
				writeTimer.Reset(time.Until(next))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.incrementStats(0, 1)
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	canon, ok := pathutil.Canonicalize(path, w.root, w.root)
	if !ok || canon == "" {
		return
	}
	w.logger.Debug("received event", "op", event.Op.String(), "path", canon)

	if h := w.held; h != nil {
		if path == h.path && (event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)) {
			// self notification of the moved inode
			return
		}
		w.held = nil
		if event.Has(fsnotify.Create) && w.completeRename(h, path, canon) {
			return
		}
		w.emitDeleted(h)
	}

	switch {
	case event.Has(fsnotify.Rename):
		w.writes.remove(path)
		w.held = &heldRename{path: path, canon: canon, isDir: w.forgetDir(path)}

	case event.Has(fsnotify.Remove):
		w.writes.remove(path)
		w.emitDeleted(&heldRename{path: path, canon: canon, isDir: w.forgetDir(path)})

	case event.Has(fsnotify.Create):
		info, err := os.Lstat(path)
		if err != nil {
			// already gone again
			return
		}
		if info.IsDir() {
			w.handleDirCreate(path, canon)
			return
		}
		if !info.Mode().IsRegular() || !w.filter.IsMonitored(canon) {
			return
		}
		w.emit(types.RawEvent{Op: types.EventCreated, Path: path, Size: info.Size()})

	case event.Has(fsnotify.Write):
		if w.filter.IsMonitored(canon) {
			w.writes.add(path, time.Now())
		}
	}
}

// completeRename pairs a held Rename with the Create that followed it. A file
// and a directory are never two halves of the same rename.
func (w *Watcher) completeRename(h *heldRename, path, canon string) bool {
	info, err := os.Lstat(path)
	if err != nil || info.IsDir() != h.isDir {
		return false
	}
	if info.IsDir() {
		if !w.filter.IsIgnoredDir(canon) {
			if _, err := w.walk(path, false); err != nil {
				w.logger.Warn("failed to watch moved directory", "path", path, "error", err)
			}
		}
		w.emit(types.RawEvent{Op: types.EventDirMoved, Path: h.path, Dest: path, IsDir: true, Size: -1})
		return true
	}
	if !info.Mode().IsRegular() {
		return false
	}
	w.emit(types.RawEvent{Op: types.EventMoved, Path: h.path, Dest: path, Size: info.Size()})
	return true
}

func (w *Watcher) emitDeleted(h *heldRename) {
	if !h.isDir && w.filter.IsIgnored(h.canon) {
		return
	}
	w.emit(types.RawEvent{Op: types.EventDeleted, Path: h.path, IsDir: h.isDir, Size: -1})
}

// handleDirCreate watches a new directory tree and announces the files already
// inside it; fsnotify reports nothing for content that arrived with a move.
func (w *Watcher) handleDirCreate(path, canon string) {
	if w.filter.IsIgnoredDir(canon) {
		return
	}
	files, err := w.walk(path, true)
	if err != nil {
		w.logger.Warn("failed to watch new directory", "path", path, "error", err)
		return
	}
	w.logger.Debug("added watch for new directory", "path", canon, "files", len(files))

	w.emit(types.RawEvent{Op: types.EventCreated, Path: path, IsDir: true, Size: -1})
	for _, f := range files {
		size := int64(-1)
		if info, err := os.Stat(f); err == nil {
			size = info.Size()
		}
		w.emit(types.RawEvent{Op: types.EventCreated, Path: f, Size: size})
	}
}

func (w *Watcher) emit(ev types.RawEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case w.events <- ev:
		w.incrementStats(1, 0)
	case <-w.ctx.Done():
	}
}

func (w *Watcher) incrementStats(events, errors int64) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.eventsProcessed += events
	w.errorCount += errors
}

// Stats returns watch statistics.
func (w *Watcher) Stats() WatchStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	return WatchStats{
		EventsProcessed: w.eventsProcessed,
		ErrorCount:      w.errorCount,
		IsActive:        w.ctx.Err() == nil,
	}
}

// WatchStats counts delivered events and fsnotify errors.
type WatchStats struct {
	EventsProcessed int64
	ErrorCount      int64
	IsActive        bool
}
