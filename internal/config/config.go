package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Defaults used when neither a config file nor a flag sets a value.
const (
	DefaultMaxFileSizeMB        = 10
	DefaultScanProgressInterval = 100
	DefaultBackupTag            = "linkwatcher"
	DefaultMoveDetectTimeoutMs  = 2000
	DefaultDirMoveTimeoutMs     = 5000
	DefaultWriteDebounceMs      = 300
	DefaultLogLevel             = "INFO"
)

// ConfigFileNames are searched, in order, by Discover.
var ConfigFileNames = []string{
	".linkwatcher.kdl",
	".linkwatcher.toml",
	".linkwatcher.yaml",
	".linkwatcher.yml",
	".linkwatcher.json",
}

// Config is the record consumed by the link-maintenance engine. Unknown fields in
// config files are ignored.
type Config struct {
	ProjectRoot string

	MonitoredExtensions []string
	IgnoredDirectories  []string
	ExcludePatterns     []string // doublestar globs matched against canonical paths

	CreateBackups bool
	BackupTag     string
	DryRunMode    bool
	AtomicUpdates bool
	FsyncWrites   bool

	MaxFileSizeMB        int
	InitialScanEnabled   bool
	ScanProgressInterval int
	ScanWorkers          int // 0 = auto-detect

	LogLevel      string
	CustomParsers map[string]string // extension -> parser id

	MoveDetectTimeoutMs int
	DirMoveTimeoutMs    int
	WriteDebounceMs     int
}

// DefaultMonitoredExtensions lists the extensions scanned and watched out of the box.
func DefaultMonitoredExtensions() []string {
	return []string{
		".md", ".markdown", ".txt", ".rst",
		".yaml", ".yml", ".json", ".toml", ".ini", ".cfg", ".conf",
		".py", ".dart", ".js", ".ts", ".jsx", ".tsx", ".html", ".htm", ".css", ".xml", ".csv",
		".sh", ".bat", ".ps1",
		".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".pdf",
	}
}

// DefaultIgnoredDirectories lists directory names skipped at any depth.
func DefaultIgnoredDirectories() []string {
	return []string{
		".git", ".svn", ".hg",
		"node_modules", "__pycache__", ".pytest_cache", ".mypy_cache",
		".venv", "venv", "env",
		".idea", ".vscode",
		".dart_tool", "build", "dist",
	}
}

// Default returns a configuration populated with defaults, rooted at the working directory.
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	return &Config{
		ProjectRoot:          cwd,
		MonitoredExtensions:  DefaultMonitoredExtensions(),
		IgnoredDirectories:   DefaultIgnoredDirectories(),
		ExcludePatterns:      []string{"**/*.bak", "**/*.tmp", "**/*~"},
		CreateBackups:        false,
		BackupTag:            DefaultBackupTag,
		DryRunMode:           false,
		AtomicUpdates:        true,
		FsyncWrites:          false,
		MaxFileSizeMB:        DefaultMaxFileSizeMB,
		InitialScanEnabled:   true,
		ScanProgressInterval: DefaultScanProgressInterval,
		ScanWorkers:          0,
		LogLevel:             DefaultLogLevel,
		CustomParsers:        map[string]string{},
		MoveDetectTimeoutMs:  DefaultMoveDetectTimeoutMs,
		DirMoveTimeoutMs:     DefaultDirMoveTimeoutMs,
		WriteDebounceMs:      DefaultWriteDebounceMs,
	}
}

// Load reads a config file, choosing the format from its extension, and overlays it
// on the defaults. A relative project_root is resolved against the file's directory.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	cfg.ProjectRoot = ""

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".kdl":
		err = applyKDL(cfg, string(content))
	case ".toml":
		err = applyTOML(cfg, content)
	case ".yaml", ".yml":
		err = applyYAML(cfg, content)
	case ".json":
		err = applyJSON(cfg, content)
	default:
		err = fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	configDir, _ := filepath.Abs(filepath.Dir(path))
	switch {
	case cfg.ProjectRoot == "":
		cfg.ProjectRoot = configDir
	case !filepath.IsAbs(cfg.ProjectRoot):
		cfg.ProjectRoot = filepath.Clean(filepath.Join(configDir, cfg.ProjectRoot))
	}

	return cfg, nil
}

// Discover loads the first config file found in root, or returns the defaults
// rooted at root when there is none.
func Discover(root string) (*Config, error) {
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(root, name)
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
	}

	cfg := Default()
	if abs, err := filepath.Abs(root); err == nil {
		cfg.ProjectRoot = abs
	} else {
		cfg.ProjectRoot = root
	}
	return cfg, nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.MonitoredExtensions = append([]string(nil), c.MonitoredExtensions...)
	out.IgnoredDirectories = append([]string(nil), c.IgnoredDirectories...)
	out.ExcludePatterns = append([]string(nil), c.ExcludePatterns...)
	out.CustomParsers = make(map[string]string, len(c.CustomParsers))
	for k, v := range c.CustomParsers {
		out.CustomParsers[k] = v
	}
	return &out
}

// MaxFileSizeBytes is the parse limit in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// MoveDetectTimeout is how long a delete waits for a matching create.
func (c *Config) MoveDetectTimeout() time.Duration {
	return time.Duration(c.MoveDetectTimeoutMs) * time.Millisecond
}

// DirMoveTimeout bounds how long a directory batch waits for its children.
func (c *Config) DirMoveTimeout() time.Duration {
	return time.Duration(c.DirMoveTimeoutMs) * time.Millisecond
}

// WriteDebounce is the quiet period before a modified file is rescanned.
func (c *Config) WriteDebounce() time.Duration {
	return time.Duration(c.WriteDebounceMs) * time.Millisecond
}

// Workers returns the effective scan parallelism.
func (c *Config) Workers() int {
	if c.ScanWorkers > 0 {
		return c.ScanWorkers
	}
	return max(1, runtime.NumCPU()-1)
}
