package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	lwerrors "github.com/standardbeagle/linkwatcher/internal/errors"
	"github.com/standardbeagle/linkwatcher/internal/logging"
)

// ParserIDs are the identities accepted in custom_parsers.
var ParserIDs = []string{"markdown", "yaml", "json", "python", "dart", "generic"}

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults.
// Every failure is a *errors.ConfigError matching errors.ErrConfigInvalid.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	for _, ext := range cfg.MonitoredExtensions {
		if err := validateExtension(ext); err != nil {
			return lwerrors.NewConfigError("monitored_extensions", ext, err)
		}
	}

	for _, dir := range cfg.IgnoredDirectories {
		if dir == "" || strings.ContainsAny(dir, `/\`) {
			return lwerrors.NewConfigError("ignored_directories", dir, errors.New("must be a directory name, not a path"))
		}
	}

	for _, pattern := range cfg.ExcludePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return lwerrors.NewConfigError("exclude_patterns", pattern, errors.New("invalid glob pattern"))
		}
	}

	if cfg.MaxFileSizeMB <= 0 {
		return lwerrors.NewConfigError("max_file_size_mb", fmt.Sprint(cfg.MaxFileSizeMB), errors.New("must be positive"))
	}

	if cfg.ScanProgressInterval <= 0 {
		return lwerrors.NewConfigError("scan_progress_interval", fmt.Sprint(cfg.ScanProgressInterval), errors.New("must be positive"))
	}

	if cfg.ScanWorkers < 0 {
		return lwerrors.NewConfigError("scan_workers", fmt.Sprint(cfg.ScanWorkers), errors.New("must not be negative"))
	}

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return lwerrors.NewConfigError("log_level", cfg.LogLevel, err)
	}

	for field, ms := range map[string]int{
		"move_detect_timeout_ms": cfg.MoveDetectTimeoutMs,
		"dir_move_timeout_ms":    cfg.DirMoveTimeoutMs,
		"write_debounce_ms":      cfg.WriteDebounceMs,
	} {
		if ms < 0 {
			return lwerrors.NewConfigError(field, fmt.Sprint(ms), errors.New("must not be negative"))
		}
	}

	for ext, id := range cfg.CustomParsers {
		if err := validateExtension(ext); err != nil {
			return lwerrors.NewConfigError("custom_parsers", ext, err)
		}
		if strings.TrimSpace(id) == "" {
			return lwerrors.NewConfigError("custom_parsers", ext, errors.New("parser id cannot be empty"))
		}
		if !slices.Contains(ParserIDs, strings.ToLower(strings.TrimSpace(id))) {
			return lwerrors.NewConfigError("custom_parsers", ext, fmt.Errorf("unknown parser id %q", id))
		}
	}

	v.setSmartDefaults(cfg)
	return nil
}

// ValidateRoot checks that root exists and is a directory. The returned error
// matches errors.ErrRootInvalid.
func (v *Validator) ValidateRoot(root string) (string, error) {
	if root == "" {
		return "", lwerrors.NewRootError(root, errors.New("project root cannot be empty"))
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", lwerrors.NewRootError(root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", lwerrors.NewRootError(abs, err)
	}
	if !info.IsDir() {
		return "", lwerrors.NewRootError(abs, errors.New("not a directory"))
	}
	return abs, nil
}

func validateExtension(ext string) error {
	if len(ext) < 2 || ext[0] != '.' {
		return errors.New("extension must start with '.' and be non-empty")
	}
	if strings.ContainsAny(ext, `/\ `) {
		return errors.New("extension must not contain separators or spaces")
	}
	return nil
}

// setSmartDefaults fills zero values and lowercases extensions.
func (v *Validator) setSmartDefaults(cfg *Config) {
	for i, ext := range cfg.MonitoredExtensions {
		cfg.MonitoredExtensions[i] = strings.ToLower(ext)
	}

	if len(cfg.CustomParsers) > 0 {
		lowered := make(map[string]string, len(cfg.CustomParsers))
		for ext, id := range cfg.CustomParsers {
			lowered[strings.ToLower(ext)] = strings.ToLower(strings.TrimSpace(id))
		}
		cfg.CustomParsers = lowered
	}

	if cfg.BackupTag == "" {
		cfg.BackupTag = DefaultBackupTag
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.MoveDetectTimeoutMs == 0 {
		cfg.MoveDetectTimeoutMs = DefaultMoveDetectTimeoutMs
	}
	if cfg.DirMoveTimeoutMs == 0 {
		cfg.DirMoveTimeoutMs = DefaultDirMoveTimeoutMs
	}
	if cfg.WriteDebounceMs == 0 {
		cfg.WriteDebounceMs = DefaultWriteDebounceMs
	}
	if cfg.ScanWorkers == 0 {
		cfg.ScanWorkers = cfg.Workers()
	}
}
