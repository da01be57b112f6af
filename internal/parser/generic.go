package parser

import (
	"regexp"
	"strings"

	"github.com/standardbeagle/linkwatcher/internal/types"
)

var (
	quotedString  = regexp.MustCompile(`"([^"\n]*)"|'([^'\n]*)'|` + "`([^`\\n]*)`")
	bareToken     = regexp.MustCompile(`[^\s"'` + "`" + `<>()\[\]{},;=]+`)
	fileContextRe = regexp.MustCompile(`(?i)file|path|include|load|read|write|open`)
)

// GenericParser finds quoted path-like strings anywhere, and unquoted ones when the
// line mentions files or the token contains a separator.
type GenericParser struct{}

func NewGenericParser() *GenericParser { return &GenericParser{} }

func (p *GenericParser) Name() string { return IDGeneric }

func (p *GenericParser) Parse(path string, content []byte) ([]types.Reference, error) {
	var refs []types.Reference
	for i, line := range splitLines(content) {
		refs = append(refs, genericLine(path, i+1, line)...)
	}
	return refs, nil
}

func genericLine(path string, lineNo int, line string) []types.Reference {
	var refs []types.Reference

	quoted := quotedSpans(line)
	for _, q := range quoted {
		target := line[q.inner.start:q.inner.end]
		if strings.TrimSpace(target) != target || !LooksLikeFilePath(target) {
			continue
		}
		refs = append(refs, newRef(path, lineNo, q.inner.start, target, target, types.KindGenericQuoted))
	}

	fileContext := fileContextRe.MatchString(line)
	taken := make([]span, 0, len(quoted))
	for _, q := range quoted {
		taken = append(taken, q.whole)
	}
	for _, m := range bareToken.FindAllStringIndex(line, -1) {
		start, end := m[0], m[1]
		token := trimTokenPunctuation(line[start:end])
		end = start + len(token)
		if token == "" || overlapsAny(span{start, end}, taken) || isURLContext(line, start) {
			continue
		}
		if !LooksLikeFilePath(token) {
			continue
		}
		if !fileContext && !strings.ContainsAny(token, `/\`) {
			continue
		}
		refs = append(refs, newRef(path, lineNo, start, token, token, types.KindGenericUnquoted))
	}

	return refs
}

type quotedSpan struct {
	whole span
	inner span
}

func quotedSpans(line string) []quotedSpan {
	var out []quotedSpan
	for _, m := range quotedString.FindAllStringSubmatchIndex(line, -1) {
		for g := 1; g <= 3; g++ {
			if m[2*g] >= 0 {
				out = append(out, quotedSpan{whole: span{m[0], m[1]}, inner: span{m[2*g], m[2*g+1]}})
				break
			}
		}
	}
	return out
}

// trimTokenPunctuation drops sentence punctuation that commonly trails a path in prose.
func trimTokenPunctuation(token string) string {
	token = strings.TrimRight(token, ".:!?")
	return token
}
