// Package testhelpers provides shared utilities for testing linkwatcher
package testhelpers

import (
	"github.com/standardbeagle/linkwatcher/internal/config"
)

// ConfigBuilder provides a fluent API for building test configs with safe defaults.
// Usage:
//
//	cfg := testhelpers.NewConfigBuilder(project.Root).
//		WithExtensions(".mdd").
//		WithCustomParser(".mdd", "markdown").
//		DryRun().
//		Build()
type ConfigBuilder struct {
	cfg *config.Config
}

// NewConfigBuilder creates a config builder for a project root. Timeouts are
// shortened and the write debounce is small so tests settle quickly.
func NewConfigBuilder(projectRoot string) *ConfigBuilder {
	cfg := config.Default()
	cfg.ProjectRoot = projectRoot
	cfg.ScanWorkers = 2
	cfg.MoveDetectTimeoutMs = 500
	cfg.DirMoveTimeoutMs = 1000
	cfg.WriteDebounceMs = 10
	cfg.LogLevel = "ERROR"
	return &ConfigBuilder{cfg: cfg}
}

// WithExtensions adds monitored extensions.
func (b *ConfigBuilder) WithExtensions(exts ...string) *ConfigBuilder {
	b.cfg.MonitoredExtensions = append(b.cfg.MonitoredExtensions, exts...)
	return b
}

// WithIgnoredDirectories adds ignored directory names.
func (b *ConfigBuilder) WithIgnoredDirectories(dirs ...string) *ConfigBuilder {
	b.cfg.IgnoredDirectories = append(b.cfg.IgnoredDirectories, dirs...)
	return b
}

// WithExclusions adds exclude patterns.
func (b *ConfigBuilder) WithExclusions(patterns ...string) *ConfigBuilder {
	b.cfg.ExcludePatterns = append(b.cfg.ExcludePatterns, patterns...)
	return b
}

// WithCustomParser maps ext to a parser id.
func (b *ConfigBuilder) WithCustomParser(ext, id string) *ConfigBuilder {
	if b.cfg.CustomParsers == nil {
		b.cfg.CustomParsers = make(map[string]string)
	}
	b.cfg.CustomParsers[ext] = id
	return b
}

// WithTimeouts sets the move detection and directory move windows in milliseconds.
func (b *ConfigBuilder) WithTimeouts(moveMs, dirMs int) *ConfigBuilder {
	b.cfg.MoveDetectTimeoutMs = moveMs
	b.cfg.DirMoveTimeoutMs = dirMs
	return b
}

// WithBackups enables backups with the given tag.
func (b *ConfigBuilder) WithBackups(tag string) *ConfigBuilder {
	b.cfg.CreateBackups = true
	b.cfg.BackupTag = tag
	return b
}

// DryRun enables dry-run mode.
func (b *ConfigBuilder) DryRun() *ConfigBuilder {
	b.cfg.DryRunMode = true
	return b
}

// WithoutInitialScan disables the initial scan.
func (b *ConfigBuilder) WithoutInitialScan() *ConfigBuilder {
	b.cfg.InitialScanEnabled = false
	return b
}

// Build returns the config. Each call returns an independent copy.
func (b *ConfigBuilder) Build() *config.Config {
	return b.cfg.Clone()
}
