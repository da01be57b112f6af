package parser

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/standardbeagle/linkwatcher/internal/types"
)

// YAMLParser walks every string value of every document in a YAML stream.
type YAMLParser struct {
	fallback *GenericParser
}

func NewYAMLParser() *YAMLParser { return &YAMLParser{fallback: NewGenericParser()} }

func (p *YAMLParser) Name() string { return IDYAML }

func (p *YAMLParser) Parse(path string, content []byte) ([]types.Reference, error) {
	var docs []*yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(content))
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return p.fallback.Parse(path, content)
		}
		docs = append(docs, &doc)
	}

	lines := splitLines(content)
	var refs []types.Reference
	for _, doc := range docs {
		walkYAML(doc, false, func(n *yaml.Node) {
			if ref, ok := locateScalar(path, lines, n, types.KindYAML); ok {
				refs = append(refs, ref)
			}
		})
	}
	return refs, nil
}

// walkYAML visits string leaves. Mapping keys are skipped.
func walkYAML(n *yaml.Node, isKey bool, visit func(*yaml.Node)) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			walkYAML(c, false, visit)
		}
	case yaml.MappingNode:
		for i, c := range n.Content {
			walkYAML(c, i%2 == 0, visit)
		}
	case yaml.ScalarNode:
		if !isKey && n.ShortTag() == "!!str" {
			visit(n)
		}
	}
}

// locateScalar finds the scalar's value on its line of origin, searching from the
// node's column so repeated values on one line resolve to the right occurrence.
func locateScalar(path string, lines []string, n *yaml.Node, kind types.LinkKind) (types.Reference, bool) {
	value := n.Value
	if n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 || !LooksLikeFilePath(value) {
		return types.Reference{}, false
	}
	if n.Line < 1 || n.Line > len(lines) {
		return types.Reference{}, false
	}
	line := lines[n.Line-1]
	from := min(max(n.Column-1, 0), len(line))
	idx := strings.Index(line[from:], value)
	if idx < 0 {
		if idx = strings.Index(line, value); idx < 0 {
			return types.Reference{}, false
		}
	} else {
		idx += from
	}
	return newRef(path, n.Line, idx, value, value, kind), true
}
