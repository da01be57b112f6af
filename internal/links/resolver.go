// Package links resolves link targets as written in a source file to canonical
// project paths, and rewrites them for a moved target while keeping the style
// the author used.
package links

import (
	"path/filepath"
	"strings"

	"github.com/standardbeagle/linkwatcher/internal/types"
	"github.com/standardbeagle/linkwatcher/pkg/pathutil"
)

// Style is how a link target was written.
type Style uint8

const (
	StyleImplicitRelative Style = iota // docs/a.md
	StyleExplicitRelative              // ./a.md, ../a.md
	StyleFilenameOnly                  // a.md
	StyleAbsolute                      // /docs/a.md, C:\x\a.md
)

func (s Style) String() string {
	switch s {
	case StyleExplicitRelative:
		return "explicit-relative"
	case StyleFilenameOnly:
		return "filename-only"
	case StyleAbsolute:
		return "absolute"
	default:
		return "implicit-relative"
	}
}

// Form is the classified shape of a written link target.
type Form struct {
	Style     Style
	Path      string // forward slashes, anchor removed
	Anchor    string
	HasAnchor bool
	Backslash bool // written with '\' separators
	Dir       bool // written with a trailing separator
}

// Classify inspects a link target as written.
func Classify(target string) Form {
	raw, anchor, hasAnchor := pathutil.SplitAnchor(target)
	f := Form{
		Anchor:    anchor,
		HasAnchor: hasAnchor,
		Backslash: strings.Contains(raw, `\`),
	}
	p := pathutil.NormalizeSlashes(raw)
	f.Dir = len(p) > 1 && strings.HasSuffix(p, "/")
	f.Path = p

	switch {
	case strings.HasPrefix(p, "/") || pathutil.HasDriveLetter(p):
		f.Style = StyleAbsolute
	case p == "." || p == ".." || strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../"):
		f.Style = StyleExplicitRelative
	case !strings.Contains(strings.TrimSuffix(p, "/"), "/"):
		f.Style = StyleFilenameOnly
	default:
		f.Style = StyleImplicitRelative
	}
	return f
}

// BucketKey is the index key for a written target: slashes normalized, redundant
// "./" and "." segments collapsed, leading "/" removed. The anchor is kept.
func BucketKey(target string) string {
	p, anchor, hasAnchor := pathutil.SplitAnchor(pathutil.NormalizeSlashes(target))
	p = strings.TrimPrefix(pathutil.Clean(p), "/")
	if hasAnchor {
		return p + "#" + anchor
	}
	return p
}

// ModulePath strips the python file suffix from a canonical path:
// "a/b.py" and "a/b/__init__.py" both become the module path "a/b".
func ModulePath(p string) string {
	if strings.HasSuffix(p, "/__init__.py") {
		return strings.TrimSuffix(p, "/__init__.py")
	}
	return strings.TrimSuffix(p, ".py")
}

// Resolver resolves references of one project.
type Resolver struct {
	root string // absolute project root, forward slashes
}

// NewResolver returns a resolver for the project rooted at root.
func NewResolver(root string) *Resolver {
	return &Resolver{root: strings.TrimSuffix(filepath.ToSlash(root), "/")}
}

// Resolve returns the canonical path a reference points at. The boolean is false
// when the target escapes the project. Directory targets resolve without their
// trailing slash. Python imports resolve to their module path.
func (r *Resolver) Resolve(ref types.Reference) (string, bool) {
	if ref.Kind.IsPythonImport() {
		return ref.LinkTarget, ref.LinkTarget != ""
	}

	f := Classify(ref.LinkTarget)
	p := strings.TrimSuffix(f.Path, "/")
	if p == "" && f.Path == "" {
		return "", false
	}

	if f.Style == StyleAbsolute {
		return r.resolveAbsolute(p)
	}

	joined := pathutil.Join(pathutil.Dir(ref.SourceFile), p)
	if joined == ".." || strings.HasPrefix(joined, "../") {
		return "", false
	}
	return strings.TrimSuffix(joined, "/"), true
}

func (r *Resolver) resolveAbsolute(p string) (string, bool) {
	if pathutil.HasDriveLetter(p) {
		rootLower := strings.ToLower(r.root)
		if strings.HasPrefix(strings.ToLower(p), rootLower+"/") {
			return pathutil.Clean(p[len(r.root)+1:]), true
		}
		return "", false
	}
	if r.root != "" && strings.HasPrefix(p, r.root+"/") {
		return pathutil.Clean(p[len(r.root)+1:]), true
	}
	if p == r.root {
		return "", true
	}
	// project-absolute
	cleaned := strings.TrimPrefix(pathutil.Clean(p), "/")
	return cleaned, true
}

// Matches reports whether ref points at the canonical path target.
func (r *Resolver) Matches(ref types.Reference, target string) bool {
	if ref.Kind.IsPythonImport() {
		return ref.LinkTarget == ModulePath(target) || ref.LinkTarget == target
	}
	resolved, ok := r.Resolve(ref)
	return ok && resolved == target
}

// MatchesTree reports whether ref points at dir or at anything below it.
func (r *Resolver) MatchesTree(ref types.Reference, dir string) bool {
	var resolved string
	if ref.Kind.IsPythonImport() {
		resolved = ref.LinkTarget
	} else {
		var ok bool
		if resolved, ok = r.Resolve(ref); !ok {
			return false
		}
	}
	return resolved == dir || pathutil.IsUnder(resolved, dir)
}

// Retarget computes the new written form of ref after its target moved from
// oldTarget to newTarget. It returns false when ref does not point at oldTarget.
// Python imports come back in slash form. A single file move only rewrites
// imports of exactly that module; submodules move with RetargetTree.
func (r *Resolver) Retarget(ref types.Reference, oldTarget, newTarget string) (string, bool) {
	if ref.Kind.IsPythonImport() {
		if ref.LinkTarget != ModulePath(oldTarget) {
			return "", false
		}
		return ModulePath(newTarget), true
	}
	resolved, ok := r.Resolve(ref)
	if !ok || resolved != oldTarget {
		return "", false
	}
	return r.render(ref, Classify(ref.LinkTarget), newTarget), true
}

// RetargetTree is Retarget for a whole directory: a reference to oldDir or to any
// path below it is rewritten to the same relative position under newDir.
func (r *Resolver) RetargetTree(ref types.Reference, oldDir, newDir string) (string, bool) {
	if ref.Kind.IsPythonImport() {
		return retargetModule(ref.LinkTarget, oldDir, newDir)
	}
	resolved, ok := r.Resolve(ref)
	if !ok {
		return "", false
	}
	var moved string
	switch {
	case resolved == oldDir:
		moved = newDir
	case pathutil.IsUnder(resolved, oldDir):
		moved = pathutil.Join(newDir, resolved[len(pathutil.PrefixWithSlash(oldDir)):])
	default:
		return "", false
	}
	return r.render(ref, Classify(ref.LinkTarget), moved), true
}

func retargetModule(written, oldModule, newModule string) (string, bool) {
	switch {
	case written == oldModule:
		return newModule, true
	case strings.HasPrefix(written, oldModule+"/"):
		return newModule + written[len(oldModule):], true
	default:
		return "", false
	}
}

// render writes canonical path target in the style of f, as seen from ref's source file.
func (r *Resolver) render(ref types.Reference, f Form, target string) string {
	srcDir := pathutil.Dir(ref.SourceFile)

	var out string
	switch f.Style {
	case StyleAbsolute:
		switch {
		case pathutil.HasDriveLetter(f.Path) || (r.root != "" && strings.HasPrefix(f.Path, r.root+"/")):
			out = r.root + "/" + target
		default:
			out = "/" + target
		}
	case StyleFilenameOnly:
		if pathutil.Dir(target) == srcDir {
			out = pathutil.Base(target)
		} else {
			out = pathutil.Rel(srcDir, target)
		}
	case StyleExplicitRelative:
		out = pathutil.Rel(srcDir, target)
		if out != "." && out != ".." && !strings.HasPrefix(out, "../") {
			out = "./" + out
		}
	default:
		out = pathutil.Rel(srcDir, target)
	}

	if f.Dir && !strings.HasSuffix(out, "/") {
		out += "/"
	}
	if f.Backslash {
		out = strings.ReplaceAll(out, "/", `\`)
	}
	if f.HasAnchor {
		out += "#" + f.Anchor
	}
	return out
}
