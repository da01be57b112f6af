package parser

import (
	"regexp"
	"strings"

	"github.com/standardbeagle/linkwatcher/internal/types"
)

var (
	mdLinkOpen   = regexp.MustCompile(`\[([^\[\]]*)\]\(`)
	mdRefDef     = regexp.MustCompile(`^\s{0,3}\[([^\]]+)\]:\s*(<[^>]*>|\S+)(?:\s+(?:"[^"]*"|'[^']*'|\([^)]*\)))?\s*$`)
	mdQuoted     = regexp.MustCompile(`"([^"\n]+)"|'([^'\n]+)'`)
	mdStandalone = regexp.MustCompile(`(?:^|[\s(\[<:,;])((?:\.{1,2}[/\\])?[\w\-.]+(?:[/\\][\w\-.]+)*\.[A-Za-z0-9]+)\b`)
	mdTitle      = regexp.MustCompile(`^(\S+)\s+("[^"]*"|'[^']*'|\([^)]*\))$`)
)

// MarkdownParser recognizes inline links, reference definitions, quoted
// filenames and standalone filenames.
type MarkdownParser struct{}

func NewMarkdownParser() *MarkdownParser { return &MarkdownParser{} }

func (p *MarkdownParser) Name() string { return IDMarkdown }

func (p *MarkdownParser) Parse(path string, content []byte) ([]types.Reference, error) {
	var refs []types.Reference

	for i, line := range splitLines(content) {
		lineNo := i + 1
		var taken []span

		if m := mdRefDef.FindStringSubmatchIndex(line); m != nil {
			label := line[m[2]:m[3]]
			start, end := m[4], m[5]
			if line[start] == '<' {
				start, end = start+1, end-1
			}
			target := line[start:end]
			if keepMarkdownTarget(target) {
				refs = append(refs, newRef(path, lineNo, start, label, target, types.KindMarkdownReferenceDef))
			}
			// the whole definition line is claimed
			taken = append(taken, span{0, len(line)})
		}

		for _, l := range inlineLinks(line) {
			taken = append(taken, l.whole)
			if keepMarkdownTarget(l.target) {
				refs = append(refs, newRef(path, lineNo, l.col, l.text, l.target, types.KindMarkdownInline))
			}
		}

		for _, m := range mdQuoted.FindAllStringSubmatchIndex(line, -1) {
			whole := span{m[0], m[1]}
			if overlapsAny(whole, taken) {
				continue
			}
			start, end := m[2], m[3]
			if start < 0 {
				start, end = m[4], m[5]
			}
			target := line[start:end]
			if strings.TrimSpace(target) != target || !LooksLikeFilePath(target) || !HasFileExtension(target) {
				continue
			}
			taken = append(taken, whole)
			refs = append(refs, newRef(path, lineNo, start, target, target, types.KindMarkdownQuoted))
		}

		for _, m := range mdStandalone.FindAllStringSubmatchIndex(line, -1) {
			start, end := m[2], m[3]
			target := strings.TrimRight(line[start:end], ".")
			end = start + len(target)
			if overlapsAny(span{start, end}, taken) || !HasFileExtension(target) || isURLContext(line, start) {
				continue
			}
			taken = append(taken, span{start, end})
			refs = append(refs, newRef(path, lineNo, start, target, target, types.KindMarkdownStandalone))
		}
	}

	return refs, nil
}

type inlineLink struct {
	text   string
	target string
	col    int
	whole  span
}

// inlineLinks finds [text](body) links. Body may contain balanced parentheses and
// an optional title, which is not part of the target.
func inlineLinks(line string) []inlineLink {
	var out []inlineLink
	pos := 0
	for pos < len(line) {
		m := mdLinkOpen.FindStringSubmatchIndex(line[pos:])
		if m == nil {
			break
		}
		open := pos + m[1] // first byte after "("
		closeIdx := matchParen(line, open)
		if closeIdx < 0 {
			pos = open
			continue
		}

		body := line[open:closeIdx]
		target, offset := splitLinkBody(body)
		out = append(out, inlineLink{
			text:   line[pos+m[2] : pos+m[3]],
			target: target,
			col:    open + offset,
			whole:  span{pos + m[0], closeIdx + 1},
		})
		pos = closeIdx + 1
	}
	return out
}

// matchParen returns the index of the ')' closing a '(' that ends just before start.
func matchParen(line string, start int) int {
	depth := 1
	for i := start; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitLinkBody strips whitespace, angle brackets and a trailing title from a link
// body, returning the target and its offset within body.
func splitLinkBody(body string) (string, int) {
	trimmed := strings.TrimLeft(body, " \t")
	offset := len(body) - len(trimmed)
	trimmed = strings.TrimRight(trimmed, " \t")

	if strings.HasPrefix(trimmed, "<") {
		if end := strings.IndexByte(trimmed, '>'); end > 0 {
			return trimmed[1:end], offset + 1
		}
	}
	if m := mdTitle.FindStringSubmatch(trimmed); m != nil {
		return m[1], offset
	}
	return trimmed, offset
}

func keepMarkdownTarget(target string) bool {
	if target == "" || strings.HasPrefix(target, "#") {
		return false
	}
	return !IsExternal(target)
}

// isURLContext reports whether the token starting at start is part of a URL.
func isURLContext(line string, start int) bool {
	head := line[:start]
	if i := strings.LastIndexAny(head, " \t"); i >= 0 {
		head = head[i+1:]
	}
	return strings.Contains(head, "://") || strings.HasPrefix(line[start:], "www.")
}
