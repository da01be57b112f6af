// Package parser extracts link references from project files. Each format has its
// own Parser; the Registry picks one per file extension and falls back to the
// generic text parser.
package parser

import (
	"bytes"
	"strings"

	"github.com/standardbeagle/linkwatcher/internal/types"
)

// Parser identities accepted by custom_parsers.
const (
	IDMarkdown = "markdown"
	IDYAML     = "yaml"
	IDJSON     = "json"
	IDPython   = "python"
	IDDart     = "dart"
	IDGeneric  = "generic"
)

// Parser extracts references from the content of one file. Positions are in the
// file's own line and column coordinates; SourceFile is set to path as given.
type Parser interface {
	Name() string
	Parse(path string, content []byte) ([]types.Reference, error)
}

// splitLines splits content on '\n', dropping a trailing '\r' from each line so
// that CRLF files report the same columns as LF files.
func splitLines(content []byte) []string {
	raw := bytes.Split(content, []byte{'\n'})
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimSuffix(string(l), "\r")
	}
	return lines
}

type span struct{ start, end int }

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

func overlapsAny(s span, spans []span) bool {
	for _, o := range spans {
		if s.overlaps(o) {
			return true
		}
	}
	return false
}

func newRef(path string, line, col int, text, target string, kind types.LinkKind) types.Reference {
	return types.Reference{
		SourceFile: path,
		Line:       line,
		ColStart:   col,
		ColEnd:     col + len(target),
		LinkText:   text,
		LinkTarget: target,
		Kind:       kind,
	}
}
