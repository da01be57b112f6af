package config

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for the key/value formats. Pointer and nil-slice fields
// distinguish "absent" from "set to zero" so that only present keys override defaults.
type fileConfig struct {
	ProjectRoot          *string           `toml:"project_root" yaml:"project_root" json:"project_root"`
	MonitoredExtensions  []string          `toml:"monitored_extensions" yaml:"monitored_extensions" json:"monitored_extensions"`
	IgnoredDirectories   []string          `toml:"ignored_directories" yaml:"ignored_directories" json:"ignored_directories"`
	ExcludePatterns      []string          `toml:"exclude_patterns" yaml:"exclude_patterns" json:"exclude_patterns"`
	CreateBackups        *bool             `toml:"create_backups" yaml:"create_backups" json:"create_backups"`
	BackupTag            *string           `toml:"backup_tag" yaml:"backup_tag" json:"backup_tag"`
	DryRunMode           *bool             `toml:"dry_run_mode" yaml:"dry_run_mode" json:"dry_run_mode"`
	AtomicUpdates        *bool             `toml:"atomic_updates" yaml:"atomic_updates" json:"atomic_updates"`
	FsyncWrites          *bool             `toml:"fsync_writes" yaml:"fsync_writes" json:"fsync_writes"`
	MaxFileSizeMB        *int              `toml:"max_file_size_mb" yaml:"max_file_size_mb" json:"max_file_size_mb"`
	InitialScanEnabled   *bool             `toml:"initial_scan_enabled" yaml:"initial_scan_enabled" json:"initial_scan_enabled"`
	ScanProgressInterval *int              `toml:"scan_progress_interval" yaml:"scan_progress_interval" json:"scan_progress_interval"`
	ScanWorkers          *int              `toml:"scan_workers" yaml:"scan_workers" json:"scan_workers"`
	LogLevel             *string           `toml:"log_level" yaml:"log_level" json:"log_level"`
	CustomParsers        map[string]string `toml:"custom_parsers" yaml:"custom_parsers" json:"custom_parsers"`
	MoveDetectTimeoutMs  *int              `toml:"move_detect_timeout_ms" yaml:"move_detect_timeout_ms" json:"move_detect_timeout_ms"`
	DirMoveTimeoutMs     *int              `toml:"dir_move_timeout_ms" yaml:"dir_move_timeout_ms" json:"dir_move_timeout_ms"`
	WriteDebounceMs      *int              `toml:"write_debounce_ms" yaml:"write_debounce_ms" json:"write_debounce_ms"`
}

func applyTOML(cfg *Config, content []byte) error {
	var fc fileConfig
	if err := toml.Unmarshal(content, &fc); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}
	fc.apply(cfg)
	return nil
}

func applyYAML(cfg *Config, content []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(content, &fc); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	fc.apply(cfg)
	return nil
}

func applyJSON(cfg *Config, content []byte) error {
	var fc fileConfig
	if err := json.Unmarshal(content, &fc); err != nil {
		return fmt.Errorf("failed to parse JSON config: %w", err)
	}
	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	setIf(&cfg.ProjectRoot, fc.ProjectRoot)
	if fc.MonitoredExtensions != nil {
		cfg.MonitoredExtensions = fc.MonitoredExtensions
	}
	if fc.IgnoredDirectories != nil {
		cfg.IgnoredDirectories = fc.IgnoredDirectories
	}
	if fc.ExcludePatterns != nil {
		cfg.ExcludePatterns = fc.ExcludePatterns
	}
	setIf(&cfg.CreateBackups, fc.CreateBackups)
	setIf(&cfg.BackupTag, fc.BackupTag)
	setIf(&cfg.DryRunMode, fc.DryRunMode)
	setIf(&cfg.AtomicUpdates, fc.AtomicUpdates)
	setIf(&cfg.FsyncWrites, fc.FsyncWrites)
	setIf(&cfg.MaxFileSizeMB, fc.MaxFileSizeMB)
	setIf(&cfg.InitialScanEnabled, fc.InitialScanEnabled)
	setIf(&cfg.ScanProgressInterval, fc.ScanProgressInterval)
	setIf(&cfg.ScanWorkers, fc.ScanWorkers)
	setIf(&cfg.LogLevel, fc.LogLevel)
	if fc.CustomParsers != nil {
		cfg.CustomParsers = fc.CustomParsers
	}
	setIf(&cfg.MoveDetectTimeoutMs, fc.MoveDetectTimeoutMs)
	setIf(&cfg.DirMoveTimeoutMs, fc.DirMoveTimeoutMs)
	setIf(&cfg.WriteDebounceMs, fc.WriteDebounceMs)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// toFileConfig is the inverse of apply, used by `config show` and `config init`.
func toFileConfig(cfg *Config) fileConfig {
	return fileConfig{
		ProjectRoot:          &cfg.ProjectRoot,
		MonitoredExtensions:  cfg.MonitoredExtensions,
		IgnoredDirectories:   cfg.IgnoredDirectories,
		ExcludePatterns:      cfg.ExcludePatterns,
		CreateBackups:        &cfg.CreateBackups,
		BackupTag:            &cfg.BackupTag,
		DryRunMode:           &cfg.DryRunMode,
		AtomicUpdates:        &cfg.AtomicUpdates,
		FsyncWrites:          &cfg.FsyncWrites,
		MaxFileSizeMB:        &cfg.MaxFileSizeMB,
		InitialScanEnabled:   &cfg.InitialScanEnabled,
		ScanProgressInterval: &cfg.ScanProgressInterval,
		ScanWorkers:          &cfg.ScanWorkers,
		LogLevel:             &cfg.LogLevel,
		CustomParsers:        cfg.CustomParsers,
		MoveDetectTimeoutMs:  &cfg.MoveDetectTimeoutMs,
		DirMoveTimeoutMs:     &cfg.DirMoveTimeoutMs,
		WriteDebounceMs:      &cfg.WriteDebounceMs,
	}
}

// Marshal renders cfg in the given format ("kdl", "toml", "yaml" or "json").
func Marshal(cfg *Config, format string) ([]byte, error) {
	fc := toFileConfig(cfg)
	switch format {
	case "kdl":
		return marshalKDL(cfg), nil
	case "toml":
		return toml.Marshal(fc)
	case "yaml", "yml":
		return yaml.Marshal(fc)
	case "json":
		return json.MarshalIndent(fc, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
}
