package parser

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/standardbeagle/linkwatcher/internal/types"
)

// JSONParser walks every string leaf of a JSON document.
type JSONParser struct {
	fallback *GenericParser
}

func NewJSONParser() *JSONParser { return &JSONParser{fallback: NewGenericParser()} }

func (p *JSONParser) Name() string { return IDJSON }

func (p *JSONParser) Parse(path string, content []byte) ([]types.Reference, error) {
	if !gjson.ValidBytes(content) {
		return p.fallback.Parse(path, content)
	}

	lineStarts := []int{0}
	for i, b := range content {
		if b == '\n' {
			lineStarts = append(lineStarts, i+1)
		}
	}

	w := &jsonWalker{path: path, content: content, lineStarts: lineStarts}
	w.walk(gjson.ParseBytes(content))
	return w.refs, nil
}

type jsonWalker struct {
	path       string
	content    []byte
	lineStarts []int
	cursor     int
	refs       []types.Reference
}

// walk visits values in document order. Every string token (keys included) advances
// the cursor so that identical keys and values locate to their own occurrence.
func (w *jsonWalker) walk(v gjson.Result) {
	switch {
	case v.IsObject():
		v.ForEach(func(key, value gjson.Result) bool {
			w.advance(key.Raw)
			w.walk(value)
			return true
		})
	case v.IsArray():
		v.ForEach(func(_, value gjson.Result) bool {
			w.walk(value)
			return true
		})
	case v.Type == gjson.String:
		offset := w.advance(v.Raw)
		if offset < 0 {
			return
		}
		target := v.String()
		if !LooksLikeFilePath(target) {
			return
		}
		line := sort.Search(len(w.lineStarts), func(i int) bool { return w.lineStarts[i] > offset }) - 1
		col := offset - w.lineStarts[line] + 1 // skip the opening quote
		ref := newRef(w.path, line+1, col, target, target, types.KindJSON)
		ref.ColEnd = col + len(v.Raw) - 2
		w.refs = append(w.refs, ref)
	}
}

func (w *jsonWalker) advance(raw string) int {
	if raw == "" {
		return -1
	}
	idx := bytes.Index(w.content[w.cursor:], []byte(raw))
	if idx < 0 {
		return -1
	}
	offset := w.cursor + idx
	w.cursor = offset + len(raw)
	return offset
}

// EscapeJSONString renders s as the inside of a JSON string literal.
func EscapeJSONString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	out := bytes.TrimSpace(buf.Bytes())
	return string(out[1 : len(out)-1])
}
