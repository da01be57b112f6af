// Package index holds the in-memory reference index: every link found in the
// project, bucketed by target, plus the set of files known to exist.
package index

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/linkwatcher/internal/links"
	"github.com/standardbeagle/linkwatcher/internal/types"
	"github.com/standardbeagle/linkwatcher/pkg/pathutil"
)

// ReferenceIndex is safe for concurrent use. One RWMutex guards all state so
// readers never observe a half-applied rekey.
type ReferenceIndex struct {
	mu       sync.RWMutex
	resolver *links.Resolver

	byTarget map[string][]types.Reference
	sources  map[string]int // files_with_links: source -> reference count
	seen     map[types.ReferenceKey]struct{}
	files    map[string]int64 // tracked files -> size in bytes
}

// Stats is a point-in-time summary of the index.
type Stats struct {
	Targets      int
	References   int
	Sources      int
	TrackedFiles int
}

// New returns an empty index resolving references with resolver.
func New(resolver *links.Resolver) *ReferenceIndex {
	return &ReferenceIndex{
		resolver: resolver,
		byTarget: make(map[string][]types.Reference),
		sources:  make(map[string]int),
		seen:     make(map[types.ReferenceKey]struct{}),
		files:    make(map[string]int64),
	}
}

// ReplaceSource atomically swaps every reference of source for refs.
func (x *ReferenceIndex) ReplaceSource(source string, refs []types.Reference) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeSourceLocked(source)
	n := 0
	for _, r := range refs {
		if x.insertLocked(r) {
			n++
		}
	}
	return n
}

func (x *ReferenceIndex) insertLocked(ref types.Reference) bool {
	key := ref.Key()
	if _, dup := x.seen[key]; dup {
		return false
	}
	x.seen[key] = struct{}{}
	bucket := links.BucketKey(ref.LinkTarget)
	x.byTarget[bucket] = append(x.byTarget[bucket], ref)
	x.sources[ref.SourceFile]++
	return true
}

// RemoveSource deletes every reference found in source and returns how many.
func (x *ReferenceIndex) RemoveSource(source string) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.removeSourceLocked(source)
}

func (x *ReferenceIndex) removeSourceLocked(source string) int {
	if x.sources[source] == 0 {
		return 0
	}
	removed := x.filterLocked(func(r types.Reference) bool { return r.SourceFile == source })
	delete(x.sources, source)
	return len(removed)
}

// filterLocked removes and returns every reference for which drop is true,
// pruning empty buckets and keeping the dedup set and source counts in step.
func (x *ReferenceIndex) filterLocked(drop func(types.Reference) bool) []types.Reference {
	var removed []types.Reference
	for key, bucket := range x.byTarget {
		kept := bucket[:0]
		for _, r := range bucket {
			if drop(r) {
				removed = append(removed, r)
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(x.byTarget, key)
		} else {
			x.byTarget[key] = kept
		}
	}
	for _, r := range removed {
		delete(x.seen, r.Key())
		if x.sources[r.SourceFile]--; x.sources[r.SourceFile] <= 0 {
			delete(x.sources, r.SourceFile)
		}
	}
	return removed
}

// LookupTo returns every reference that resolves to target, ordered by source
// file and position.
func (x *ReferenceIndex) LookupTo(target string) []types.Reference {
	x.mu.RLock()
	defer x.mu.RUnlock()

	base := pathutil.Base(target)
	var out []types.Reference
	for key, bucket := range x.byTarget {
		keyBase := pathutil.Base(pathutil.StripAnchor(key))
		prefiltered := keyBase != base && keyBase != "." && keyBase != ".."
		for _, r := range bucket {
			if prefiltered && !r.Kind.IsPythonImport() {
				continue
			}
			if x.resolver.Matches(r, target) {
				out = append(out, r)
			}
		}
	}
	sortRefs(out)
	return out
}

// LookupTree returns every reference that resolves to dir or to a path below it.
func (x *ReferenceIndex) LookupTree(dir string) []types.Reference {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []types.Reference
	for _, bucket := range x.byTarget {
		for _, r := range bucket {
			if x.resolver.MatchesTree(r, dir) {
				out = append(out, r)
			}
		}
	}
	sortRefs(out)
	return out
}

// Rekey rewrites every reference pointing at oldTarget so it points at newTarget
// in its original style, moving it to its new bucket. Returns the number rekeyed.
func (x *ReferenceIndex) Rekey(oldTarget, newTarget string) int {
	return x.rekey(func(r types.Reference) (string, bool) {
		return x.resolver.Retarget(r, oldTarget, newTarget)
	})
}

// RekeyTree is Rekey for every reference to oldDir or anything below it.
func (x *ReferenceIndex) RekeyTree(oldDir, newDir string) int {
	return x.rekey(func(r types.Reference) (string, bool) {
		return x.resolver.RetargetTree(r, oldDir, newDir)
	})
}

func (x *ReferenceIndex) rekey(retarget func(types.Reference) (string, bool)) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	updated := make(map[types.ReferenceKey]types.Reference)
	removed := x.filterLocked(func(r types.Reference) bool {
		written, ok := retarget(r)
		if !ok || written == r.LinkTarget {
			return false
		}
		moved := r
		moved.LinkTarget = written
		if r.Kind.IsPythonImport() {
			moved.LinkText = strings.ReplaceAll(written, "/", ".")
		}
		moved.ColEnd = moved.ColStart + len(written)
		updated[r.Key()] = moved
		return true
	})
	for _, r := range removed {
		x.insertLocked(updated[r.Key()])
	}
	return len(removed)
}

// RenameSource reattributes the references found in oldSource to newSource. The
// written targets are unchanged because the file content moved with it.
func (x *ReferenceIndex) RenameSource(oldSource, newSource string) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	if oldSource == newSource || x.sources[oldSource] == 0 {
		return 0
	}
	removed := x.filterLocked(func(r types.Reference) bool { return r.SourceFile == oldSource })
	for _, r := range removed {
		r.SourceFile = newSource
		x.insertLocked(r)
	}
	return len(removed)
}

// HasSource reports whether source currently contributes references.
func (x *ReferenceIndex) HasSource(source string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.sources[source] > 0
}

// Sources returns the files that contribute references, sorted.
func (x *ReferenceIndex) Sources() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, 0, len(x.sources))
	for s := range x.sources {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// References returns a copy of every stored reference, ordered.
func (x *ReferenceIndex) References() []types.Reference {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []types.Reference
	for _, bucket := range x.byTarget {
		out = append(out, bucket...)
	}
	sortRefs(out)
	return out
}

// Buckets returns a copy of the target -> references map.
func (x *ReferenceIndex) Buckets() map[string][]types.Reference {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make(map[string][]types.Reference, len(x.byTarget))
	for k, v := range x.byTarget {
		out[k] = append([]types.Reference(nil), v...)
	}
	return out
}

// Clear drops all references and tracked files.
func (x *ReferenceIndex) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.byTarget = make(map[string][]types.Reference)
	x.sources = make(map[string]int)
	x.seen = make(map[types.ReferenceKey]struct{})
	x.files = make(map[string]int64)
}

// Fingerprint digests the stored references independent of insertion order.
func (x *ReferenceIndex) Fingerprint() uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var sum uint64
	var b strings.Builder
	for key, bucket := range x.byTarget {
		for _, r := range bucket {
			b.Reset()
			b.WriteString(key)
			b.WriteByte(0)
			b.WriteString(r.SourceFile)
			b.WriteByte(0)
			b.WriteString(strconv.Itoa(r.Line))
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(r.ColStart))
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(r.ColEnd))
			b.WriteByte(0)
			b.WriteString(r.LinkText)
			b.WriteByte(0)
			b.WriteString(r.LinkTarget)
			b.WriteByte(0)
			b.WriteString(r.Kind.String())
			sum += xxhash.Sum64String(b.String())
		}
	}
	return sum
}

// Stats summarizes the index.
func (x *ReferenceIndex) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	refs := 0
	for _, b := range x.byTarget {
		refs += len(b)
	}
	return Stats{
		Targets:      len(x.byTarget),
		References:   refs,
		Sources:      len(x.sources),
		TrackedFiles: len(x.files),
	}
}

func sortRefs(refs []types.Reference) {
	sort.Slice(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.SourceFile != b.SourceFile {
			return a.SourceFile < b.SourceFile
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.ColStart != b.ColStart {
			return a.ColStart < b.ColStart
		}
		return a.Kind < b.Kind
	})
}
