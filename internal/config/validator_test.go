package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	lwerrors "github.com/standardbeagle/linkwatcher/internal/errors"
)

func TestValidateAndSetDefaults(t *testing.T) {
	cfg := Default()
	cfg.MonitoredExtensions = []string{".MD", ".Yaml"}
	cfg.BackupTag = ""
	cfg.MoveDetectTimeoutMs = 0
	cfg.ScanWorkers = 0

	validator := NewValidator()
	if err := validator.ValidateAndSetDefaults(cfg); err != nil {
		t.Fatalf("ValidateAndSetDefaults failed: %v", err)
	}

	if cfg.MonitoredExtensions[0] != ".md" || cfg.MonitoredExtensions[1] != ".yaml" {
		t.Errorf("extensions should be lowercased, got %v", cfg.MonitoredExtensions)
	}
	if cfg.BackupTag != DefaultBackupTag {
		t.Errorf("BackupTag should default to %q, got %q", DefaultBackupTag, cfg.BackupTag)
	}
	if cfg.MoveDetectTimeoutMs != DefaultMoveDetectTimeoutMs {
		t.Errorf("MoveDetectTimeoutMs should default to %d, got %d", DefaultMoveDetectTimeoutMs, cfg.MoveDetectTimeoutMs)
	}
	if cfg.ScanWorkers == 0 {
		t.Errorf("ScanWorkers should have been set from CPU count")
	}
}

func TestValidateInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"extension without dot", func(c *Config) { c.MonitoredExtensions = []string{"md"} }},
		{"empty extension", func(c *Config) { c.MonitoredExtensions = []string{"."} }},
		{"zero file size", func(c *Config) { c.MaxFileSizeMB = 0 }},
		{"negative file size", func(c *Config) { c.MaxFileSizeMB = -1 }},
		{"zero progress interval", func(c *Config) { c.ScanProgressInterval = 0 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "VERBOSE" }},
		{"ignored dir path", func(c *Config) { c.IgnoredDirectories = []string{"a/b"} }},
		{"bad glob", func(c *Config) { c.ExcludePatterns = []string{"[abc"} }},
		{"negative timeout", func(c *Config) { c.DirMoveTimeoutMs = -5 }},
		{"negative workers", func(c *Config) { c.ScanWorkers = -2 }},
		{"custom parser bad ext", func(c *Config) { c.CustomParsers = map[string]string{"mdx": "markdown"} }},
		{"custom parser unknown id", func(c *Config) { c.CustomParsers = map[string]string{".mdx": "asciidoc"} }},
		{"custom parser empty id", func(c *Config) { c.CustomParsers = map[string]string{".mdx": " "} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := NewValidator().ValidateAndSetDefaults(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, lwerrors.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
			var cfgErr *lwerrors.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected *ConfigError, got %T", err)
			}
		})
	}
}

func TestValidateRoot(t *testing.T) {
	dir := t.TempDir()
	validator := NewValidator()

	abs, err := validator.ValidateRoot(dir)
	if err != nil {
		t.Fatalf("ValidateRoot failed: %v", err)
	}
	if !filepath.IsAbs(abs) {
		t.Errorf("expected absolute root, got %s", abs)
	}

	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	for _, root := range []string{"", filepath.Join(dir, "missing"), file} {
		if _, err := validator.ValidateRoot(root); !errors.Is(err, lwerrors.ErrRootInvalid) {
			t.Errorf("ValidateRoot(%q) = %v, want ErrRootInvalid", root, err)
		}
	}
}
