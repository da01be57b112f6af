package interpreter

import (
	"os"
	"sort"
	"strings"

	lwerrors "github.com/standardbeagle/linkwatcher/internal/errors"
	"github.com/standardbeagle/linkwatcher/internal/links"
	"github.com/standardbeagle/linkwatcher/internal/types"
	"github.com/standardbeagle/linkwatcher/internal/updater"
	"github.com/standardbeagle/linkwatcher/pkg/pathutil"
)

// moveFile runs the single-file move procedure for oldPath -> newPath.
func (in *Interpreter) moveFile(oldPath, newPath string, count bool) {
	in.index.RenameSource(oldPath, newPath)
	if !in.index.HasFile(oldPath) {
		in.index.TrackFile(newPath, in.statSize(newPath))
	}
	in.index.MoveFile(oldPath, newPath)

	res, stale := in.retarget(oldPath, newPath)
	stale = append(stale, res.ChangedFiles...)
	stale = append(stale, newPath)
	in.rescanAll(stale)

	if count {
		in.stats.FilesMoved++
	}
	in.record(res)
	in.logger.Info("move handled", "from", oldPath, "to", newPath,
		"files_updated", res.FilesChanged, "links_updated", res.RefsChanged)
}

// retarget rewrites and rekeys every reference to oldPath. The second return
// lists sources whose index entries may no longer mirror disk.
func (in *Interpreter) retarget(oldPath, newPath string) (updater.Result, []string) {
	refs, dropped := in.dropAmbiguous(in.index.LookupTo(oldPath), oldPath)
	res := in.updater.Update(refs, oldPath, newPath)
	if in.updater.DryRun() {
		return res, nil
	}
	in.index.Rekey(oldPath, newPath)
	return res, sourcesOf(dropped)
}

// dropAmbiguous removes python imports of target's module when both the
// module file and the package form of the same module exist.
func (in *Interpreter) dropAmbiguous(refs []types.Reference, target string) (kept, dropped []types.Reference) {
	alt := alternateModule(target)
	if alt == "" || !in.index.HasFile(alt) {
		return refs, nil
	}
	module := links.ModulePath(target)
	for _, r := range refs {
		if r.Kind.IsPythonImport() && r.LinkTarget == module {
			err := &lwerrors.AmbiguityError{
				SourceFile: r.SourceFile,
				LinkTarget: r.LinkTarget,
				Candidates: []string{target, alt},
			}
			in.logger.Debug("skipping ambiguous reference", "error", err)
			dropped = append(dropped, r)
			continue
		}
		kept = append(kept, r)
	}
	return kept, dropped
}

// alternateModule returns the other file that imports of p's module could mean.
func alternateModule(p string) string {
	switch {
	case pathutil.Base(p) == "__init__.py":
		if dir := pathutil.Dir(p); dir != "" {
			return dir + ".py"
		}
		return ""
	case strings.HasSuffix(p, ".py"):
		return strings.TrimSuffix(p, ".py") + "/__init__.py"
	default:
		return ""
	}
}

// flushDir applies a directory move: every matched child is moved, references
// to the directory itself or to untracked files below it are rewritten, and
// children that never reappeared are deleted.
func (in *Interpreter) flushDir(batch *PendingDirMove) {
	pairs := append([]MovePair(nil), batch.Matched...)
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Old < pairs[j].Old })

	// relocate every moved source first so sibling links inside the moved tree
	// resolve against their new location
	for _, p := range pairs {
		in.index.RenameSource(p.Old, p.New)
		if !in.index.HasFile(p.Old) {
			in.index.TrackFile(p.New, in.statSize(p.New))
		}
		in.index.MoveFile(p.Old, p.New)
	}

	var res updater.Result
	var stale []string
	for _, p := range pairs {
		r, s := in.retarget(p.Old, p.New)
		res.Merge(r)
		stale = append(stale, s...)
		stale = append(stale, p.New)
	}

	if batch.HasNewDir && batch.OldDir() != batch.NewDir {
		r, s := in.retargetTree(batch)
		res.Merge(r)
		stale = append(stale, s...)
	}
	stale = append(stale, res.ChangedFiles...)

	unmatched := make([]string, 0, len(batch.Unmatched))
	for old := range batch.Unmatched {
		unmatched = append(unmatched, old)
	}
	sort.Strings(unmatched)
	for _, old := range unmatched {
		in.finalizeDelete(old)
	}

	in.rescanAll(stale)
	in.stats.FilesMoved += int64(len(pairs))
	in.record(res)
	in.logger.Info("directory move handled", "from", batch.OldDir(), "to", batch.NewDir,
		"files_moved", len(pairs), "files_missing", len(unmatched),
		"files_updated", res.FilesChanged, "links_updated", res.RefsChanged)
}

// retargetTree rewrites references that point at the moved directory or at
// something below it that the per-file pass did not cover.
func (in *Interpreter) retargetTree(batch *PendingDirMove) (updater.Result, []string) {
	oldDir, newDir := batch.OldDir(), batch.NewDir

	var refs, skipped []types.Reference
	for _, r := range in.index.LookupTree(oldDir) {
		if in.matchesAny(r, batch.Expected) {
			skipped = append(skipped, r)
			continue
		}
		refs = append(refs, r)
	}
	res := in.updater.UpdateTree(refs, oldDir, newDir)
	if in.updater.DryRun() {
		return res, nil
	}
	in.index.RekeyTree(oldDir, newDir)
	return res, sourcesOf(skipped)
}

func (in *Interpreter) matchesAny(r types.Reference, targets map[string]struct{}) bool {
	for t := range targets {
		if in.resolver.Matches(r, t) {
			return true
		}
	}
	return false
}

// rescan re-reads path and replaces its references. A vanished file is dropped.
func (in *Interpreter) rescan(path string) {
	abs := pathutil.Abs(in.root, path)
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		in.index.RemoveSource(path)
		in.index.UntrackFile(path)
		return
	}
	if !in.filter.IsMonitored(path) {
		return
	}
	in.index.TrackFile(path, info.Size())

	refs := in.registry.ParseFile(abs)
	for i := range refs {
		refs[i].SourceFile = path
	}
	in.index.ReplaceSource(path, refs)
}

func (in *Interpreter) rescanAll(paths []string) {
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		in.rescan(p)
	}
}

// finalizeDelete turns a pending delete into a real one. Inbound references are
// kept so they show up as broken links.
func (in *Interpreter) finalizeDelete(path string) {
	if _, err := os.Stat(pathutil.Abs(in.root, path)); err == nil {
		in.logger.Debug("deleted file is back, rescanning", "path", path)
		in.rescan(path)
		return
	}

	in.index.RemoveSource(path)
	in.index.UntrackFile(path)
	in.stats.FilesDeleted++

	dangling := in.index.LookupTo(path)
	if len(dangling) == 0 {
		in.logger.Info("file deleted", "path", path)
		return
	}
	in.logger.Warn("file deleted, references now dangling", "path", path,
		"references", len(dangling), "sources", sourcesOf(dangling))
}

func (in *Interpreter) record(res updater.Result) {
	in.stats.LinksUpdated += int64(res.RefsChanged)
	in.stats.Errors += int64(len(res.Errors))
	if err := res.Err(); err != nil {
		in.logger.Warn("some references were not updated", "files", len(res.Errors), "error", err)
	}
}

func sourcesOf(refs []types.Reference) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, r := range refs {
		if _, ok := seen[r.SourceFile]; !ok {
			seen[r.SourceFile] = struct{}{}
			out = append(out, r.SourceFile)
		}
	}
	return out
}
