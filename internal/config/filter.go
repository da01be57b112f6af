package config

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides which canonical paths the engine scans and watches.
// It is immutable after construction and safe for concurrent use.
type Filter struct {
	extensions  map[string]struct{}
	ignoredDirs map[string]struct{}
	patterns    []string
}

// NewFilter builds a filter from the monitored extensions, ignored directory
// names and exclude patterns of cfg.
func NewFilter(cfg *Config) *Filter {
	f := &Filter{
		extensions:  make(map[string]struct{}, len(cfg.MonitoredExtensions)),
		ignoredDirs: make(map[string]struct{}, len(cfg.IgnoredDirectories)),
		patterns:    append([]string(nil), cfg.ExcludePatterns...),
	}
	for _, ext := range cfg.MonitoredExtensions {
		f.extensions[strings.ToLower(ext)] = struct{}{}
	}
	for _, dir := range cfg.IgnoredDirectories {
		f.ignoredDirs[dir] = struct{}{}
	}
	return f
}

// HasMonitoredExtension reports whether p's extension is monitored.
func (f *Filter) HasMonitoredExtension(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	_, ok := f.extensions[ext]
	return ok
}

// IsIgnored reports whether a file path lies inside an ignored directory or
// matches an exclude pattern.
func (f *Filter) IsIgnored(p string) bool {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for _, seg := range segments[:len(segments)-1] {
		if _, ok := f.ignoredDirs[seg]; ok {
			return true
		}
	}
	return f.matchesPattern(p)
}

// IsIgnoredDir reports whether a directory path should be skipped entirely.
func (f *Filter) IsIgnoredDir(p string) bool {
	p = strings.Trim(p, "/")
	if p == "" {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if _, ok := f.ignoredDirs[seg]; ok {
			return true
		}
	}
	return f.matchesPattern(p) || f.matchesPattern(p+"/")
}

// IsMonitored reports whether a file path is tracked: monitored extension and not ignored.
func (f *Filter) IsMonitored(p string) bool {
	return f.HasMonitoredExtension(p) && !f.IsIgnored(p)
}

func (f *Filter) matchesPattern(p string) bool {
	for _, pattern := range f.patterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}
