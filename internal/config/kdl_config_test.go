package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseKDL(t *testing.T, content string) *Config {
	t.Helper()
	cfg := Default()
	require.NoError(t, applyKDL(cfg, content))
	return cfg
}

func TestApplyKDL_Empty(t *testing.T) {
	cfg := parseKDL(t, "")
	def := Default()

	assert.Equal(t, def.MonitoredExtensions, cfg.MonitoredExtensions)
	assert.Equal(t, def.MaxFileSizeMB, cfg.MaxFileSizeMB)
	assert.True(t, cfg.AtomicUpdates)
	assert.True(t, cfg.InitialScanEnabled)
}

func TestApplyKDL_InlineLists(t *testing.T) {
	cfg := parseKDL(t, `
monitored_extensions ".md" ".yaml"
ignored_directories ".git" "vendor"
exclude_patterns "**/generated/**"
`)

	assert.Equal(t, []string{".md", ".yaml"}, cfg.MonitoredExtensions)
	assert.Equal(t, []string{".git", "vendor"}, cfg.IgnoredDirectories)
	assert.Equal(t, []string{"**/generated/**"}, cfg.ExcludePatterns)
}

func TestApplyKDL_BlockList(t *testing.T) {
	cfg := parseKDL(t, `
ignored_directories {
    "node_modules"
    ".venv"
}
`)
	assert.Equal(t, []string{"node_modules", ".venv"}, cfg.IgnoredDirectories)
}

func TestApplyKDL_Scalars(t *testing.T) {
	cfg := parseKDL(t, `
create_backups true
backup_tag "lw"
dry_run_mode true
atomic_updates false
fsync_writes true
max_file_size_mb 2
initial_scan_enabled false
scan_progress_interval 25
scan_workers 3
log_level "DEBUG"
move_detect_timeout_ms 150
dir_move_timeout_ms 400
write_debounce_ms 50
`)

	assert.True(t, cfg.CreateBackups)
	assert.Equal(t, "lw", cfg.BackupTag)
	assert.True(t, cfg.DryRunMode)
	assert.False(t, cfg.AtomicUpdates)
	assert.True(t, cfg.FsyncWrites)
	assert.Equal(t, 2, cfg.MaxFileSizeMB)
	assert.False(t, cfg.InitialScanEnabled)
	assert.Equal(t, 25, cfg.ScanProgressInterval)
	assert.Equal(t, 3, cfg.ScanWorkers)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 150, cfg.MoveDetectTimeoutMs)
	assert.Equal(t, 400, cfg.DirMoveTimeoutMs)
	assert.Equal(t, 50, cfg.WriteDebounceMs)
}

func TestApplyKDL_CustomParsers(t *testing.T) {
	cfg := parseKDL(t, `
custom_parsers {
    ".mdx" "markdown"
    ".cfg" "yaml"
}
`)
	assert.Equal(t, map[string]string{".mdx": "markdown", ".cfg": "yaml"}, cfg.CustomParsers)
}

func TestApplyKDL_Invalid(t *testing.T) {
	err := applyKDL(Default(), `monitored_extensions ".md`)
	assert.Error(t, err)
}
