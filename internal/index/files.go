package index

import (
	"sort"

	"github.com/standardbeagle/linkwatcher/pkg/pathutil"
)

// TrackFile records that path exists with the given size. Files are tracked even
// when they were too large to parse, so they can still be rekeyed as targets.
func (x *ReferenceIndex) TrackFile(path string, size int64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.files[path] = size
}

// UntrackFile forgets path.
func (x *ReferenceIndex) UntrackFile(path string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.files, path)
}

// HasFile reports whether path is tracked.
func (x *ReferenceIndex) HasFile(path string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.files[path]
	return ok
}

// FileSize returns the last recorded size of path.
func (x *ReferenceIndex) FileSize(path string) (int64, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	size, ok := x.files[path]
	return size, ok
}

// MoveFile transfers the tracked entry of oldPath to newPath.
func (x *ReferenceIndex) MoveFile(oldPath, newPath string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	size, ok := x.files[oldPath]
	if !ok {
		return
	}
	delete(x.files, oldPath)
	x.files[newPath] = size
}

// FilesUnder returns the tracked files strictly inside dir, sorted. The dir
// prefix always carries its trailing slash, so "docs" never matches "docs-other"
// and a file path never matches itself as a directory.
func (x *ReferenceIndex) FilesUnder(dir string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []string
	for p := range x.files {
		if pathutil.IsUnder(p, dir) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// SourcesUnder returns the reference sources strictly inside dir. A source that
// is not tracked (for example a file created before its watch was added) still
// belongs to a moved directory.
func (x *ReferenceIndex) SourcesUnder(dir string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []string
	for p := range x.sources {
		if pathutil.IsUnder(p, dir) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// TrackedFiles returns every tracked path, sorted.
func (x *ReferenceIndex) TrackedFiles() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, 0, len(x.files))
	for p := range x.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
