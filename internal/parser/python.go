package parser

import (
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/standardbeagle/linkwatcher/internal/types"
)

// localTopLevel are package names treated as project-local regardless of depth.
var localTopLevel = map[string]struct{}{
	"src": {}, "lib": {}, "app": {}, "core": {}, "utils": {}, "helpers": {}, "modules": {}, "packages": {},
}

var pythonStdlib = map[string]struct{}{}

func init() {
	for _, m := range strings.Fields(`abc argparse array ast asyncio base64 bisect builtins calendar
		collections concurrent contextlib copy csv ctypes dataclasses datetime decimal difflib email enum
		errno fnmatch fractions functools gc getpass glob gzip hashlib heapq hmac html http importlib
		inspect io ipaddress itertools json logging math mimetypes multiprocessing numbers operator os
		pathlib pickle platform pprint queue random re secrets select shlex shutil signal socket sqlite3
		ssl stat statistics string struct subprocess sys tempfile textwrap threading time timeit tkinter
		traceback types typing unittest urllib uuid warnings weakref xml zipfile zlib __future__`) {
		pythonStdlib[m] = struct{}{}
	}
}

// PythonParser extracts project-local imports from the syntax tree, plus quoted
// path strings and path tokens inside comments.
type PythonParser struct {
	language *tree_sitter.Language
}

func NewPythonParser() *PythonParser {
	return &PythonParser{language: tree_sitter.NewLanguage(tree_sitter_python.Language())}
}

func (p *PythonParser) Name() string { return IDPython }

func (p *PythonParser) Parse(path string, content []byte) ([]types.Reference, error) {
	// tree-sitter parsers are not safe for concurrent use; one per call.
	ts := tree_sitter.NewParser()
	defer ts.Close()
	if err := ts.SetLanguage(p.language); err != nil {
		return nil, fmt.Errorf("python grammar: %w", err)
	}

	tree := ts.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("python parse returned no tree")
	}
	defer tree.Close()

	var refs []types.Reference
	traverse(tree.RootNode(), func(n *tree_sitter.Node) bool {
		switch n.Kind() {
		case "import_statement":
			for i := uint(0); i < n.ChildCount(); i++ {
				if mod := moduleNode(n.Child(i)); mod != nil {
					refs = appendImport(refs, path, mod, content)
				}
			}
			return false
		case "import_from_statement":
			if mod := n.ChildByFieldName("module_name"); mod != nil && mod.Kind() == "dotted_name" {
				refs = appendImport(refs, path, mod, content)
			}
			return false
		case "string_content":
			refs = appendPythonString(refs, path, n, content)
		case "comment":
			refs = appendPythonComment(refs, path, n, content)
		}
		return true
	})
	return refs, nil
}

// moduleNode returns the dotted module name of an import list entry.
func moduleNode(n *tree_sitter.Node) *tree_sitter.Node {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "dotted_name":
		return n
	case "aliased_import":
		if name := n.ChildByFieldName("name"); name != nil && name.Kind() == "dotted_name" {
			return name
		}
	}
	return nil
}

func appendImport(refs []types.Reference, path string, mod *tree_sitter.Node, content []byte) []types.Reference {
	dotted := mod.Utf8Text(content)
	if !IsLocalModule(dotted) {
		return refs
	}
	pos := mod.StartPosition()
	ref := types.Reference{
		SourceFile: path,
		Line:       int(pos.Row) + 1,
		ColStart:   int(pos.Column),
		ColEnd:     int(pos.Column) + len(dotted),
		LinkText:   dotted,
		LinkTarget: strings.ReplaceAll(dotted, ".", "/"),
		Kind:       types.KindPythonImport,
	}
	return append(refs, ref)
}

// IsLocalModule decides whether a dotted import names a project module rather than
// the standard library or a third-party package.
func IsLocalModule(dotted string) bool {
	if dotted == "" || strings.HasPrefix(dotted, ".") {
		return false
	}
	parts := strings.Split(dotted, ".")
	if _, std := pythonStdlib[parts[0]]; std {
		return false
	}
	if strings.Contains(dotted, "/") {
		return true
	}
	if _, local := localTopLevel[parts[0]]; local {
		return true
	}
	return len(parts) >= 3
}

func appendPythonString(refs []types.Reference, path string, n *tree_sitter.Node, content []byte) []types.Reference {
	// the source text of an escaped string is not the path it denotes
	if hasEscape(n) {
		return refs
	}
	text := n.Utf8Text(content)
	if strings.ContainsAny(text, "\n") || strings.TrimSpace(text) != text {
		return refs
	}
	if !LooksLikeFilePath(text) || !(HasFileExtension(text) || strings.ContainsAny(text, `/\`)) {
		return refs
	}
	pos := n.StartPosition()
	return append(refs, newRef(path, int(pos.Row)+1, int(pos.Column), text, text, types.KindPythonQuoted))
}

func hasEscape(n *tree_sitter.Node) bool {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c != nil && c.Kind() == "escape_sequence" {
			return true
		}
	}
	return false
}

func appendPythonComment(refs []types.Reference, path string, n *tree_sitter.Node, content []byte) []types.Reference {
	text := n.Utf8Text(content)
	pos := n.StartPosition()
	for _, m := range bareToken.FindAllStringIndex(text, -1) {
		token := trimTokenPunctuation(text[m[0]:m[1]])
		if token == "" || strings.HasPrefix(token, "#") || isURLContext(text, m[0]) || !LooksLikeFilePath(token) {
			continue
		}
		refs = append(refs, newRef(path, int(pos.Row)+1, int(pos.Column)+m[0], token, token, types.KindPythonComment))
	}
	return refs
}

// traverse walks the tree depth-first; returning false skips a node's children.
func traverse(node *tree_sitter.Node, visit func(*tree_sitter.Node) bool) {
	if node == nil || !visit(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		traverse(node.Child(i), visit)
	}
}
