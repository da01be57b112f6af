// Package updater rewrites references on disk after their target moved, keeping
// the written style of every link and replacing each file atomically.
package updater

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	lwerrors "github.com/standardbeagle/linkwatcher/internal/errors"
	"github.com/standardbeagle/linkwatcher/internal/links"
	"github.com/standardbeagle/linkwatcher/internal/logging"
	"github.com/standardbeagle/linkwatcher/internal/parser"
	"github.com/standardbeagle/linkwatcher/internal/types"
	"github.com/standardbeagle/linkwatcher/pkg/pathutil"
)

// Options control how files are written.
type Options struct {
	DryRun        bool
	CreateBackups bool
	BackupTag     string
	Atomic        bool
	Fsync         bool
	Logger        *slog.Logger
}

// Change is one planned or applied rewrite.
type Change struct {
	SourceFile string
	Line       int
	Old        string
	New        string
}

// Result reports the outcome of one Update call. Errors are per file; a failed
// file never stops the rest of the batch.
type Result struct {
	FilesChanged int
	RefsChanged  int
	Errors       []error
	ChangedFiles []string
	Changes      []Change
}

// Merge folds o into r.
func (r *Result) Merge(o Result) {
	r.FilesChanged += o.FilesChanged
	r.RefsChanged += o.RefsChanged
	r.Errors = append(r.Errors, o.Errors...)
	r.ChangedFiles = append(r.ChangedFiles, o.ChangedFiles...)
	r.Changes = append(r.Changes, o.Changes...)
}

// Err joins the per-file errors, or returns nil when every file was written.
func (r Result) Err() error {
	return lwerrors.NewMultiError(r.Errors).ErrorOrNil()
}

// Updater rewrites files under one project root.
type Updater struct {
	root     string
	resolver *links.Resolver
	opts     Options
	logger   *slog.Logger
}

// New returns an updater for the project rooted at root.
func New(root string, resolver *links.Resolver, opts Options) *Updater {
	if opts.BackupTag == "" {
		opts.BackupTag = "linkwatcher"
	}
	return &Updater{
		root:     root,
		resolver: resolver,
		opts:     opts,
		logger:   logging.Component(opts.Logger, "updater"),
	}
}

// DryRun reports whether writes are suppressed.
func (u *Updater) DryRun() bool { return u.opts.DryRun }

// Update rewrites refs that point at oldTarget so they point at newTarget.
func (u *Updater) Update(refs []types.Reference, oldTarget, newTarget string) Result {
	return u.apply(refs, func(r types.Reference) (string, bool) {
		return u.resolver.Retarget(r, oldTarget, newTarget)
	})
}

// UpdateTree rewrites refs that point at oldDir or below it to the same place under newDir.
func (u *Updater) UpdateTree(refs []types.Reference, oldDir, newDir string) Result {
	return u.apply(refs, func(r types.Reference) (string, bool) {
		return u.resolver.RetargetTree(r, oldDir, newDir)
	})
}

type edit struct {
	ref     types.Reference
	written string
}

func (u *Updater) apply(refs []types.Reference, retarget func(types.Reference) (string, bool)) Result {
	bySource := make(map[string][]edit)
	var order []string
	for _, r := range refs {
		written, ok := retarget(r)
		if !ok || written == r.LinkTarget {
			continue
		}
		if _, seen := bySource[r.SourceFile]; !seen {
			order = append(order, r.SourceFile)
		}
		bySource[r.SourceFile] = append(bySource[r.SourceFile], edit{ref: r, written: written})
	}
	sort.Strings(order)

	var res Result
	for _, source := range order {
		changed, changes, err := u.rewriteFile(source, bySource[source])
		if err != nil {
			res.Errors = append(res.Errors, err)
			u.logger.Error("failed to update references", "file", source, "error", err)
			continue
		}
		if changed > 0 {
			res.FilesChanged++
			res.RefsChanged += changed
			res.ChangedFiles = append(res.ChangedFiles, source)
			res.Changes = append(res.Changes, changes...)
		}
	}
	return res
}

func (u *Updater) rewriteFile(source string, edits []edit) (int, []Change, error) {
	abs := pathutil.Abs(u.root, source)
	info, err := os.Stat(abs)
	if err != nil {
		return 0, nil, lwerrors.NewReadError("stat", abs, err)
	}
	original, err := os.ReadFile(abs)
	if err != nil {
		return 0, nil, lwerrors.NewReadError("read", abs, err)
	}

	lines := strings.Split(string(original), "\n")

	// later positions first so earlier columns stay valid
	sort.SliceStable(edits, func(i, j int) bool {
		a, b := edits[i].ref, edits[j].ref
		if a.Line != b.Line {
			return a.Line > b.Line
		}
		return a.ColStart > b.ColStart
	})

	var changes []Change
	for _, e := range edits {
		idx := e.ref.Line - 1
		if idx < 0 || idx >= len(lines) {
			u.logger.Debug("reference line out of range", "ref", e.ref.String())
			continue
		}
		line, cr := strings.CutSuffix(lines[idx], "\r")
		updated, ok := replaceOnLine(line, e.ref, e.written)
		if !ok {
			u.logger.Debug("reference not found on line", "ref", e.ref.String())
			continue
		}
		if cr {
			updated += "\r"
		}
		lines[idx] = updated
		changes = append(changes, Change{SourceFile: source, Line: e.ref.Line, Old: e.ref.LinkTarget, New: e.written})
	}

	if len(changes) == 0 {
		return 0, nil, nil
	}

	content := []byte(strings.Join(lines, "\n"))
	if xxhash.Sum64(content) == xxhash.Sum64(original) {
		return 0, nil, nil
	}

	if u.opts.DryRun {
		for _, c := range changes {
			u.logger.Info("dry run: would update reference", "file", source, "line", c.Line, "from", c.Old, "to", c.New)
		}
		return len(changes), changes, nil
	}

	if err := u.write(abs, original, content, info.Mode().Perm()); err != nil {
		return 0, nil, err
	}
	u.logger.Info("updated references", "file", source, "count", len(changes))
	return len(changes), changes, nil
}

func markdownInlinePattern(text, target string) *regexp.Regexp {
	return regexp.MustCompile(`\[` + regexp.QuoteMeta(text) + `\]\(\s*<?` + regexp.QuoteMeta(target))
}

// replaceOnLine applies one edit. The recorded column span is trusted when it
// still holds the old text; otherwise a strategy per kind locates it on the line.
func replaceOnLine(line string, ref types.Reference, written string) (string, bool) {
	switch {
	case ref.Kind == types.KindMarkdownInline:
		if spanHolds(line, ref, ref.LinkTarget) {
			return splice(line, ref.ColStart, ref.ColEnd, written), true
		}
		re := markdownInlinePattern(ref.LinkText, ref.LinkTarget)
		loc := re.FindStringIndex(line)
		if loc == nil {
			return line, false
		}
		start := loc[1] - len(ref.LinkTarget)
		return splice(line, start, loc[1], written), true

	case ref.Kind.IsPythonImport():
		dotted := strings.ReplaceAll(written, "/", ".")
		if spanHolds(line, ref, ref.LinkText) {
			return splice(line, ref.ColStart, ref.ColEnd, dotted), true
		}
		if !strings.Contains(line, ref.LinkText) {
			return line, false
		}
		return strings.Replace(line, ref.LinkText, dotted, 1), true

	case ref.Kind == types.KindJSON:
		old := parser.EscapeJSONString(ref.LinkTarget)
		if spanHolds(line, ref, old) {
			return splice(line, ref.ColStart, ref.ColEnd, parser.EscapeJSONString(written)), true
		}
		return replaceNearest(line, ref.ColStart, `"`+old+`"`, `"`+parser.EscapeJSONString(written)+`"`)

	default:
		if spanHolds(line, ref, ref.LinkTarget) {
			return splice(line, ref.ColStart, ref.ColEnd, written), true
		}
		// a span recorded with its quotes keeps them
		if q := quotedSpan(line, ref); q != 0 {
			return splice(line, ref.ColStart+1, ref.ColEnd-1, written), true
		}
		return replaceNearest(line, ref.ColStart, ref.LinkTarget, written)
	}
}

func spanHolds(line string, ref types.Reference, want string) bool {
	return ref.ColStart >= 0 && ref.ColEnd <= len(line) && ref.ColStart <= ref.ColEnd &&
		line[ref.ColStart:ref.ColEnd] == want
}

func quotedSpan(line string, ref types.Reference) byte {
	if ref.ColStart < 0 || ref.ColEnd > len(line) || ref.ColEnd-ref.ColStart < 2 {
		return 0
	}
	s := line[ref.ColStart:ref.ColEnd]
	q := s[0]
	if (q == '"' || q == '\'' || q == '`') && s[len(s)-1] == q && s[1:len(s)-1] == ref.LinkTarget {
		return q
	}
	return 0
}

// replaceNearest replaces the occurrence of old closest to col.
func replaceNearest(line string, col int, old, written string) (string, bool) {
	best := -1
	for i := 0; ; {
		j := strings.Index(line[i:], old)
		if j < 0 {
			break
		}
		pos := i + j
		if best < 0 || abs(pos-col) < abs(best-col) {
			best = pos
		}
		i = pos + 1
	}
	if best < 0 {
		return line, false
	}
	return splice(line, best, best+len(old), written), true
}

func splice(line string, start, end int, s string) string {
	return line[:start] + s + line[end:]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// write replaces abs with content, optionally keeping a backup of original.
func (u *Updater) write(abs string, original, content []byte, perm os.FileMode) error {
	if u.opts.CreateBackups {
		backup := fmt.Sprintf("%s.%s.bak", abs, u.opts.BackupTag)
		if err := os.WriteFile(backup, original, perm); err != nil {
			return lwerrors.NewWriteError("backup", backup, err)
		}
	}
	if !u.opts.Atomic {
		if err := os.WriteFile(abs, content, perm); err != nil {
			return lwerrors.NewWriteError("write", abs, err)
		}
		return nil
	}
	return atomicWrite(abs, content, perm, u.opts.Fsync)
}
