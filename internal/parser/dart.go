package parser

import (
	"regexp"
	"strings"

	"github.com/standardbeagle/linkwatcher/internal/types"
)

var (
	dartDirective = regexp.MustCompile(`^\s*(import|export|part(?:\s+of)?)\s+(?:'([^']+)'|"([^"]+)")`)
	dartEmbedded  = regexp.MustCompile(`(?:\.{1,2}/)?[\w\-]+(?:/[\w\-.]+)*\.[A-Za-z0-9]+`)
)

// DartParser extracts import/export/part directives, quoted paths, paths embedded
// in longer strings, and standalone path tokens.
type DartParser struct{}

func NewDartParser() *DartParser { return &DartParser{} }

func (p *DartParser) Name() string { return IDDart }

func (p *DartParser) Parse(path string, content []byte) ([]types.Reference, error) {
	var refs []types.Reference

	for i, line := range splitLines(content) {
		lineNo := i + 1
		var taken []span

		if m := dartDirective.FindStringSubmatchIndex(line); m != nil {
			keyword := line[m[2]:m[3]]
			start, end := m[4], m[5]
			if start < 0 {
				start, end = m[6], m[7]
			}
			target := line[start:end]
			taken = append(taken, span{m[0], m[1]})
			if !strings.HasPrefix(target, "package:") && !strings.HasPrefix(target, "dart:") && !IsExternal(target) {
				kind := types.KindDartImport
				if strings.HasPrefix(keyword, "part") {
					kind = types.KindDartPart
				}
				refs = append(refs, newRef(path, lineNo, start, target, target, kind))
			}
		}

		quoted := quotedSpans(line)
		for _, q := range quoted {
			if overlapsAny(q.whole, taken) {
				continue
			}
			taken = append(taken, q.whole)
			inner := line[q.inner.start:q.inner.end]
			if strings.HasPrefix(inner, "package:") || strings.HasPrefix(inner, "dart:") {
				continue
			}
			if strings.TrimSpace(inner) == inner && LooksLikeFilePath(inner) {
				refs = append(refs, newRef(path, lineNo, q.inner.start, inner, inner, types.KindDartQuoted))
				continue
			}
			refs = append(refs, embeddedPaths(path, lineNo, line, q.inner)...)
		}

		for _, m := range bareToken.FindAllStringIndex(line, -1) {
			start := m[0]
			token := trimTokenPunctuation(line[start:m[1]])
			s := span{start, start + len(token)}
			if token == "" || overlapsAny(s, taken) || isURLContext(line, start) {
				continue
			}
			if !LooksLikeFilePath(token) || !HasFileExtension(token) {
				continue
			}
			refs = append(refs, newRef(path, lineNo, start, token, token, types.KindDartStandalone))
		}
	}

	return refs, nil
}

// embeddedPaths finds path-like substrings inside a string literal that is not a
// path itself, skipping anything that is part of an http(s) URL.
func embeddedPaths(path string, lineNo int, line string, inner span) []types.Reference {
	var refs []types.Reference
	text := line[inner.start:inner.end]
	for _, m := range dartEmbedded.FindAllStringIndex(text, -1) {
		candidate := text[m[0]:m[1]]
		before := text[:m[0]]
		if strings.HasSuffix(before, "http://") || strings.HasSuffix(before, "https://") || isURLContext(text, m[0]) {
			continue
		}
		if !HasFileExtension(candidate) {
			continue
		}
		col := inner.start + m[0]
		refs = append(refs, newRef(path, lineNo, col, candidate, candidate, types.KindDartEmbedded))
	}
	return refs
}
