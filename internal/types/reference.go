package types

import (
	"fmt"
	"strings"
)

// LinkKind identifies the syntactic construct a Reference was found in. The
// updater picks its rewrite strategy from it.
type LinkKind uint8

const (
	KindMarkdownInline LinkKind = iota
	KindMarkdownReferenceDef
	KindMarkdownQuoted
	KindMarkdownStandalone
	KindYAML
	KindJSON
	KindDartImport
	KindDartPart
	KindDartQuoted
	KindDartStandalone
	KindDartEmbedded
	KindPythonImport
	KindPythonQuoted
	KindPythonComment
	KindGenericQuoted
	KindGenericUnquoted
)

var linkKindNames = [...]string{
	KindMarkdownInline:       "markdown-inline",
	KindMarkdownReferenceDef: "markdown-reference-def",
	KindMarkdownQuoted:       "markdown-quoted",
	KindMarkdownStandalone:   "markdown-standalone",
	KindYAML:                 "yaml",
	KindJSON:                 "json",
	KindDartImport:           "dart-import",
	KindDartPart:             "dart-part",
	KindDartQuoted:           "dart-quoted",
	KindDartStandalone:       "dart-standalone",
	KindDartEmbedded:         "dart-embedded",
	KindPythonImport:         "python-import",
	KindPythonQuoted:         "python-quoted",
	KindPythonComment:        "python-comment",
	KindGenericQuoted:        "generic-quoted",
	KindGenericUnquoted:      "generic-unquoted",
}

func (k LinkKind) String() string {
	if int(k) < len(linkKindNames) {
		return linkKindNames[k]
	}
	return fmt.Sprintf("LinkKind(%d)", uint8(k))
}

// ParseLinkKind converts a kind name back to its LinkKind.
func ParseLinkKind(s string) (LinkKind, bool) {
	for i, name := range linkKindNames {
		if name == s {
			return LinkKind(i), true
		}
	}
	return 0, false
}

// IsMarkdown reports whether the kind came from the markdown parser.
func (k LinkKind) IsMarkdown() bool {
	return k <= KindMarkdownStandalone
}

// IsPythonImport reports whether the target is a module path rather than a file path.
func (k LinkKind) IsPythonImport() bool {
	return k == KindPythonImport
}

// Reference is one textual occurrence of a link inside a source file.
//
// Line is 1-based; ColStart/ColEnd are 0-based, half-open byte offsets on that line
// covering LinkTarget as written. LinkTarget uses forward slashes; python imports store
// the slash form of the dotted module while LinkText keeps the dots.
type Reference struct {
	SourceFile string
	Line       int
	ColStart   int
	ColEnd     int
	LinkText   string
	LinkTarget string
	Kind       LinkKind
}

// ReferenceKey is the identity used to reject duplicate index entries.
type ReferenceKey struct {
	SourceFile string
	Line       int
	ColStart   int
	Kind       LinkKind
	LinkTarget string
}

// Key returns the deduplication key of r.
func (r Reference) Key() ReferenceKey {
	return ReferenceKey{
		SourceFile: r.SourceFile,
		Line:       r.Line,
		ColStart:   r.ColStart,
		Kind:       r.Kind,
		LinkTarget: r.LinkTarget,
	}
}

// Anchor returns the fragment after the first '#' of LinkTarget, if any.
func (r Reference) Anchor() (string, bool) {
	idx := strings.IndexByte(r.LinkTarget, '#')
	if idx < 0 {
		return "", false
	}
	return r.LinkTarget[idx+1:], true
}

func (r Reference) String() string {
	return fmt.Sprintf("%s:%d:%d %s %q", r.SourceFile, r.Line, r.ColStart, r.Kind, r.LinkTarget)
}
