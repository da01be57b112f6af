// Package pathutil converts between absolute filesystem paths and the canonical
// project-relative form used for every stored path.
//
// Canonical form: project-root-relative, forward slashes, no leading slash, no "."
// segments. Paths that would escape the project root are kept verbatim and reported
// as such so callers can log them as diagnostics.
package pathutil

import (
	"path"
	"path/filepath"
	"strings"
)

// Canonicalize resolves p against base (when p is relative), makes it relative to
// root and returns it in canonical form. The boolean is false when the resolved path
// is not a descendant of root; the returned string is then the slash-converted input,
// unchanged otherwise.
//
// The project root itself canonicalizes to the empty string.
func Canonicalize(p, base, root string) (string, bool) {
	if p == "" {
		return "", false
	}

	resolved := p
	if !filepath.IsAbs(resolved) {
		if base == "" {
			base = root
		}
		resolved = filepath.Join(base, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(filepath.Clean(root), resolved)
	if err != nil {
		return filepath.ToSlash(p), false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return filepath.ToSlash(p), false
	}
	if rel == "." {
		return "", true
	}
	return strings.TrimPrefix(rel, "/"), true
}

// Abs joins a canonical path back onto the project root.
func Abs(root, canonical string) string {
	if canonical == "" {
		return filepath.Clean(root)
	}
	return filepath.Join(root, filepath.FromSlash(canonical))
}

// NormalizeSlashes converts every backslash to a forward slash.
func NormalizeSlashes(s string) string {
	return strings.ReplaceAll(s, "\\", "/")
}

// Clean collapses "." segments and duplicate slashes of a slash path without
// resolving ".." segments that would climb above the first element.
func Clean(p string) string {
	if p == "" {
		return ""
	}
	leading := strings.HasPrefix(p, "/")
	trailing := strings.HasSuffix(p, "/") && len(p) > 1
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 && out[len(out)-1] != ".." {
				out = out[:len(out)-1]
				continue
			}
			if leading {
				// "/.." stays at the root
				continue
			}
			out = append(out, part)
		default:
			out = append(out, part)
		}
	}
	cleaned := strings.Join(out, "/")
	if leading {
		cleaned = "/" + cleaned
	}
	if trailing && cleaned != "" && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

// SplitAnchor splits s at the first '#'. The anchor excludes the '#'.
func SplitAnchor(s string) (string, string, bool) {
	idx := strings.IndexByte(s, '#')
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+1:], true
}

// StripAnchor returns s without its '#' suffix.
func StripAnchor(s string) string {
	p, _, _ := SplitAnchor(s)
	return p
}

// PrefixWithSlash returns dir with exactly one trailing slash. The slash is what
// keeps "docs" from prefix-matching "docs-other"; never strip it.
func PrefixWithSlash(dir string) string {
	if dir == "" {
		return ""
	}
	if strings.HasSuffix(dir, "/") {
		return dir
	}
	return dir + "/"
}

// IsUnder reports whether canonical path p lies strictly inside directory dir.
// The empty dir is the project root, which contains everything.
func IsUnder(p, dir string) bool {
	if dir == "" {
		return p != ""
	}
	return strings.HasPrefix(p, PrefixWithSlash(dir))
}

// Dir returns the directory part of a canonical path; the project root is "".
func Dir(p string) string {
	d := path.Dir(strings.TrimSuffix(p, "/"))
	if d == "." || d == "/" {
		return ""
	}
	return d
}

// Base returns the last element of a slash path.
func Base(p string) string {
	return path.Base(strings.TrimSuffix(p, "/"))
}

// Join joins canonical path elements, dropping empty ones.
func Join(elems ...string) string {
	nonEmpty := make([]string, 0, len(elems))
	for _, e := range elems {
		if e != "" {
			nonEmpty = append(nonEmpty, e)
		}
	}
	return Clean(strings.Join(nonEmpty, "/"))
}

// Rel returns the slash path that leads from directory fromDir to target. Both
// arguments are canonical; the result never starts with "./".
func Rel(fromDir, target string) string {
	from := splitSegments(fromDir)
	to := splitSegments(target)

	common := 0
	for common < len(from) && common < len(to) && from[common] == to[common] {
		common++
	}

	parts := make([]string, 0, len(from)-common+len(to)-common)
	for i := common; i < len(from); i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, to[common:]...)
	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, "/")
}

func splitSegments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// HasDriveLetter reports whether s starts with a Windows drive designator like "C:".
func HasDriveLetter(s string) bool {
	if len(s) < 2 || s[1] != ':' {
		return false
	}
	c := s[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
