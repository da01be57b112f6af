package parser

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lwerrors "github.com/standardbeagle/linkwatcher/internal/errors"
	"github.com/standardbeagle/linkwatcher/internal/logging"
	"github.com/standardbeagle/linkwatcher/internal/types"
)

// Options configure a Registry.
type Options struct {
	// CustomParsers maps an extension to a parser id and overrides the defaults.
	CustomParsers map[string]string
	// MaxFileSize in bytes; larger files produce no references. Zero disables the limit.
	MaxFileSize int64
	Logger      *slog.Logger
}

// Registry dispatches files to parsers by extension.
type Registry struct {
	mu       sync.RWMutex
	byExt    map[string]Parser
	byID     map[string]Parser
	fallback Parser

	maxSize int64
	binary  *BinaryDetector
	logger  *slog.Logger
}

// NewRegistry builds the default extension table and applies custom parser
// overrides. An unknown parser id is a configuration error.
func NewRegistry(opts Options) (*Registry, error) {
	generic := NewGenericParser()
	r := &Registry{
		byExt:    make(map[string]Parser),
		fallback: generic,
		maxSize:  opts.MaxFileSize,
		binary:   NewBinaryDetector(),
		logger:   logging.Component(opts.Logger, "parser"),
	}

	markdown := NewMarkdownParser()
	yamlParser := NewYAMLParser()
	r.byID = map[string]Parser{
		IDMarkdown: markdown,
		IDYAML:     yamlParser,
		IDJSON:     NewJSONParser(),
		IDPython:   NewPythonParser(),
		IDDart:     NewDartParser(),
		IDGeneric:  generic,
	}

	defaults := map[string]string{
		".md":       IDMarkdown,
		".markdown": IDMarkdown,
		".yaml":     IDYAML,
		".yml":      IDYAML,
		".json":     IDJSON,
		".py":       IDPython,
		".dart":     IDDart,
	}
	for ext, id := range defaults {
		r.byExt[ext] = r.byID[id]
	}

	for ext, id := range opts.CustomParsers {
		p, ok := r.byID[strings.ToLower(id)]
		if !ok {
			return nil, lwerrors.NewConfigError("custom_parsers", ext, fmt.Errorf("unknown parser id %q", id))
		}
		r.byExt[strings.ToLower(ext)] = p
	}

	return r, nil
}

// Register installs p for ext, replacing any previous entry. The parser is also
// reachable by its Name.
func (r *Registry) Register(ext string, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byExt[strings.ToLower(ext)] = p
	r.byID[p.Name()] = p
}

// ParserFor returns the parser responsible for path.
func (r *Registry) ParserFor(path string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byExt[strings.ToLower(filepath.Ext(path))]; ok {
		return p
	}
	return r.fallback
}

// ParseFile reads and parses the file at absPath. Unreadable, oversized and binary
// files yield no references; failures are logged, never returned.
func (r *Registry) ParseFile(absPath string) []types.Reference {
	info, err := os.Stat(absPath)
	if err != nil {
		r.logger.Warn("cannot stat file", "path", absPath, "error", lwerrors.NewReadError("stat", absPath, err))
		return nil
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	if r.maxSize > 0 && info.Size() > r.maxSize {
		r.logger.Debug("skipping oversized file", "path", absPath, "size", info.Size(), "limit", r.maxSize)
		return nil
	}
	if r.binary.IsBinaryByExtension(absPath) {
		return nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		r.logger.Warn("cannot read file", "path", absPath, "error", lwerrors.NewReadError("read", absPath, err))
		return nil
	}
	return r.Parse(absPath, content)
}

// Parse dispatches already-loaded content.
func (r *Registry) Parse(path string, content []byte) []types.Reference {
	if r.binary.IsBinaryByMagicNumber(content) {
		return nil
	}

	p := r.ParserFor(path)
	refs, err := p.Parse(path, content)
	if err != nil {
		r.logger.Warn("parse failed", "path", path, "parser", p.Name(),
			"error", lwerrors.NewParseError(path, p.Name(), 0, err))
		return nil
	}
	return refs
}
