// Package interpreter turns raw filesystem events into link maintenance: moves
// (native, or reconstructed from delete+create pairs), directory moves, deletes,
// creates and modifications.
package interpreter

import (
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/standardbeagle/linkwatcher/internal/config"
	lwerrors "github.com/standardbeagle/linkwatcher/internal/errors"
	"github.com/standardbeagle/linkwatcher/internal/index"
	"github.com/standardbeagle/linkwatcher/internal/links"
	"github.com/standardbeagle/linkwatcher/internal/logging"
	"github.com/standardbeagle/linkwatcher/internal/parser"
	"github.com/standardbeagle/linkwatcher/internal/types"
	"github.com/standardbeagle/linkwatcher/internal/updater"
	"github.com/standardbeagle/linkwatcher/pkg/pathutil"
)

// Options wire an Interpreter to its collaborators.
type Options struct {
	Root              string // absolute project root
	Index             *index.ReferenceIndex
	Registry          *parser.Registry
	Updater           *updater.Updater
	Resolver          *links.Resolver
	Filter            *config.Filter
	MoveDetectTimeout time.Duration
	DirMoveTimeout    time.Duration
	Logger            *slog.Logger
}

// Interpreter handles one event at a time. mu serializes event handling with
// the pending-buffer timers; the index lock is only ever taken after mu.
type Interpreter struct {
	mu sync.Mutex

	root        string
	index       *index.ReferenceIndex
	registry    *parser.Registry
	updater     *updater.Updater
	resolver    *links.Resolver
	filter      *config.Filter
	moveTimeout time.Duration
	dirTimeout  time.Duration
	logger      *slog.Logger
	now         func() time.Time

	pendingDeletes map[string]*PendingDelete
	pendingDirs    map[string]*PendingDirMove
	stats          types.Stats
	closed         bool
}

// New returns an interpreter. Zero timeouts fall back to the config defaults.
func New(opts Options) *Interpreter {
	if opts.MoveDetectTimeout <= 0 {
		opts.MoveDetectTimeout = config.DefaultMoveDetectTimeoutMs * time.Millisecond
	}
	if opts.DirMoveTimeout <= 0 {
		opts.DirMoveTimeout = config.DefaultDirMoveTimeoutMs * time.Millisecond
	}
	if opts.Resolver == nil {
		opts.Resolver = links.NewResolver(opts.Root)
	}
	return &Interpreter{
		root:           opts.Root,
		index:          opts.Index,
		registry:       opts.Registry,
		updater:        opts.Updater,
		resolver:       opts.Resolver,
		filter:         opts.Filter,
		moveTimeout:    opts.MoveDetectTimeout,
		dirTimeout:     opts.DirMoveTimeout,
		logger:         logging.Component(opts.Logger, "interpreter"),
		now:            time.Now,
		pendingDeletes: make(map[string]*PendingDelete),
		pendingDirs:    make(map[string]*PendingDirMove),
	}
}

// Handle processes one raw event end to end.
func (in *Interpreter) Handle(ev types.RawEvent) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}

	path, ok := in.canonical(ev.Path)
	if !ok {
		return
	}

	switch ev.Op {
	case types.EventCreated:
		in.handleCreate(path, ev)
	case types.EventDeleted:
		in.handleDelete(path, ev)
	case types.EventModified:
		in.handleModify(path, ev)
	case types.EventMoved, types.EventDirMoved:
		dest, ok := in.canonical(ev.Dest)
		if !ok {
			in.logger.Debug("move destination outside project", "from", path, "to", ev.Dest)
			in.handleDelete(path, ev)
			return
		}
		if ev.Op == types.EventDirMoved || ev.IsDir {
			in.handleDirMove(path, dest)
		} else {
			in.handleMove(path, dest, ev.Size)
		}
	}
}

// canonical converts an event path. Absolute paths are made project-relative;
// relative paths are taken as already relative to the root.
func (in *Interpreter) canonical(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	c, ok := pathutil.Canonicalize(p, in.root, in.root)
	if !ok {
		in.logger.Debug("ignoring path outside project", "path", p)
		return "", false
	}
	return c, c != ""
}

func (in *Interpreter) handleCreate(path string, ev types.RawEvent) {
	if ev.IsDir {
		// children arrive as their own events
		return
	}
	if !in.filter.IsMonitored(path) {
		return
	}

	size := ev.Size
	if size < 0 {
		size = in.statSize(path)
	}

	if in.matchPendingDir(path) {
		return
	}

	if d, ok := in.pendingDeletes[path]; ok {
		d.timer.Stop()
		delete(in.pendingDeletes, path)
		in.logger.Debug("file replaced in place", "path", path)
		in.rescan(path)
		return
	}

	if d := in.matchPendingDelete(path, size); d != nil {
		d.timer.Stop()
		delete(in.pendingDeletes, d.Path)
		in.logger.Info("detected move", "from", d.Path, "to", path)
		in.moveFile(d.Path, path, true)
		return
	}

	if in.index.HasSource(path) || in.index.HasFile(path) {
		in.logger.Debug("rescanning recreated file", "path", path)
		in.rescan(path)
		return
	}

	in.logger.Info("file created", "path", path)
	in.rescan(path)
	in.stats.FilesCreated++
}

func (in *Interpreter) handleModify(path string, ev types.RawEvent) {
	if ev.IsDir || !in.filter.IsMonitored(path) {
		return
	}
	if !in.index.HasFile(path) && !in.index.HasSource(path) {
		in.handleCreate(path, ev)
		return
	}
	in.logger.Debug("file modified", "path", path)
	in.rescan(path)
}

func (in *Interpreter) handleDelete(path string, ev types.RawEvent) {
	known := in.index.HasFile(path)
	if known || (!ev.IsDir && in.filter.IsMonitored(path)) {
		in.addPendingDelete(path, ev)
		return
	}

	if in.filter.IsIgnoredDir(path) {
		return
	}
	if _, pending := in.pendingDirs[path]; pending {
		return
	}
	children := in.childrenOf(path)
	if len(children) == 0 {
		return
	}

	batch := newPendingDirMove(path, children, in.now())
	batch.timer = time.AfterFunc(in.dirTimeout, func() { in.expireDir(path, batch) })
	in.pendingDirs[path] = batch
	in.logger.Debug("directory deleted, waiting for children", "dir", path, "children", len(children))
}

func (in *Interpreter) addPendingDelete(path string, ev types.RawEvent) {
	size, ok := in.index.FileSize(path)
	if !ok {
		size = ev.Size
	}
	if old, exists := in.pendingDeletes[path]; exists {
		old.timer.Stop()
	}
	pd := &PendingDelete{Path: path, DeletedAt: in.now(), Size: size}
	pd.timer = time.AfterFunc(in.moveTimeout, func() { in.expireDelete(path, pd) })
	in.pendingDeletes[path] = pd
	in.logger.Debug("file deleted, waiting for matching create", "path", path, "size", size)
}

// matchPendingDelete finds the most recent pending delete with the same
// basename, within the move window, and a compatible size.
func (in *Interpreter) matchPendingDelete(path string, size int64) *PendingDelete {
	base := pathutil.Base(path)
	now := in.now()
	var best *PendingDelete
	for _, d := range in.pendingDeletes {
		if pathutil.Base(d.Path) != base || now.Sub(d.DeletedAt) > in.moveTimeout {
			continue
		}
		if d.Size > 0 && size >= 0 && d.Size != size {
			continue
		}
		if best == nil || d.DeletedAt.After(best.DeletedAt) {
			best = d
		}
	}
	return best
}

func (in *Interpreter) matchPendingDir(path string) bool {
	keys := make([]string, 0, len(in.pendingDirs))
	for k := range in.pendingDirs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		batch := in.pendingDirs[k]
		old, ok := batch.match(path)
		if !ok {
			continue
		}
		in.logger.Debug("matched directory child", "from", old, "to", path)
		if batch.Complete() {
			batch.timer.Stop()
			delete(in.pendingDirs, k)
			in.flushDir(batch)
		}
		return true
	}
	return false
}

func (in *Interpreter) handleMove(oldPath, newPath string, size int64) {
	oldKnown := in.index.HasFile(oldPath) || in.index.HasSource(oldPath)
	newMonitored := in.filter.IsMonitored(newPath)

	if oldKnown && newMonitored && !in.sizeMatches(oldPath, newPath, size) {
		// a rename out of the tree followed by an unrelated create
		in.logger.Debug("move rejected, size differs", "from", oldPath, "to", newPath)
		in.splitMove(oldPath, newPath, size)
		return
	}

	switch {
	case !oldKnown && !newMonitored:
		return
	case !newMonitored:
		in.logger.Info("file moved out of scope", "from", oldPath, "to", newPath)
		in.finalizeDelete(oldPath)
	case !oldKnown && !in.filter.IsMonitored(oldPath):
		in.rescan(newPath)
		in.stats.FilesCreated++
	default:
		in.logger.Info("file moved", "from", oldPath, "to", newPath)
		in.moveFile(oldPath, newPath, true)
	}
}

// sizeMatches applies the delete+create size rule to a reported move: a known
// non-empty size must be carried over unchanged.
func (in *Interpreter) sizeMatches(oldPath, newPath string, size int64) bool {
	want, ok := in.index.FileSize(oldPath)
	if !ok || want <= 0 {
		return true
	}
	if size < 0 {
		size = in.statSize(newPath)
	}
	return size < 0 || size == want
}

// splitMove handles a move that cannot be trusted as a delete followed by a
// create, so the pending-delete matching rules decide.
func (in *Interpreter) splitMove(oldPath, newPath string, size int64) {
	in.handleDelete(oldPath, types.RawEvent{Op: types.EventDeleted, Size: -1})
	in.handleCreate(newPath, types.RawEvent{Op: types.EventCreated, Size: size})
}

func (in *Interpreter) handleDirMove(oldDir, newDir string) {
	if in.index.HasFile(oldDir) || in.index.HasSource(oldDir) {
		// a file never becomes a directory by moving
		in.logger.Debug("directory move from a file path", "from", oldDir, "to", newDir)
		in.handleDelete(oldDir, types.RawEvent{Op: types.EventDeleted, Size: -1})
		return
	}
	children := in.childrenOf(oldDir)
	batch := newPendingDirMove(oldDir, children, in.now())
	batch.NewDir, batch.HasNewDir = newDir, true
	for _, c := range children {
		batch.accept(c, pathutil.Join(newDir, c[len(batch.OldDirPrefix):]))
	}
	in.logger.Info("directory moved", "from", oldDir, "to", newDir, "files", len(children))
	in.flushDir(batch)
}

// childrenOf lists tracked files and reference sources below dir.
func (in *Interpreter) childrenOf(dir string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range [][]string{in.index.FilesUnder(dir), in.index.SourcesUnder(dir)} {
		for _, p := range list {
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (in *Interpreter) statSize(path string) int64 {
	info, err := os.Stat(pathutil.Abs(in.root, path))
	if err != nil {
		return -1
	}
	return info.Size()
}

func (in *Interpreter) expireDelete(path string, pd *PendingDelete) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if cur, ok := in.pendingDeletes[path]; !ok || cur != pd {
		return
	}
	delete(in.pendingDeletes, path)
	in.logger.Debug("pending delete expired", "path", path, "error_type", lwerrors.ErrorTypeTimerExpired)
	in.finalizeDelete(path)
}

func (in *Interpreter) expireDir(dir string, batch *PendingDirMove) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if cur, ok := in.pendingDirs[dir]; !ok || cur != batch {
		return
	}
	delete(in.pendingDirs, dir)
	in.logger.Debug("pending directory move expired", "dir", dir,
		"matched", len(batch.Matched), "unmatched", len(batch.Unmatched), "error_type", lwerrors.ErrorTypeTimerExpired)
	in.flushDir(batch)
}

// FlushPending resolves every pending buffer now, as if its timer had fired.
func (in *Interpreter) FlushPending() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.flushPendingLocked()
}

func (in *Interpreter) flushPendingLocked() {
	dirs := make([]string, 0, len(in.pendingDirs))
	for k := range in.pendingDirs {
		dirs = append(dirs, k)
	}
	sort.Strings(dirs)
	for _, k := range dirs {
		batch := in.pendingDirs[k]
		batch.timer.Stop()
		delete(in.pendingDirs, k)
		in.flushDir(batch)
	}

	paths := make([]string, 0, len(in.pendingDeletes))
	for p := range in.pendingDeletes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		in.pendingDeletes[p].timer.Stop()
		delete(in.pendingDeletes, p)
		in.finalizeDelete(p)
	}
}

// Close drains pending buffers and rejects further events.
func (in *Interpreter) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}
	in.flushPendingLocked()
	in.closed = true
}

// Reset drops pending buffers without resolving them, for a full rescan.
func (in *Interpreter) Reset() {
	in.mu.Lock()
	defer in.mu.Unlock()
	for k, d := range in.pendingDeletes {
		d.timer.Stop()
		delete(in.pendingDeletes, k)
	}
	for k, b := range in.pendingDirs {
		b.timer.Stop()
		delete(in.pendingDirs, k)
	}
}

// Stats returns the event counters.
func (in *Interpreter) Stats() types.Stats {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.stats
}

// PendingDeletes returns the paths waiting for a matching create.
func (in *Interpreter) PendingDeletes() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]string, 0, len(in.pendingDeletes))
	for p := range in.pendingDeletes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// PendingDirMoves returns the directories waiting for their children.
func (in *Interpreter) PendingDirMoves() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]string, 0, len(in.pendingDirs))
	for d := range in.pendingDirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
