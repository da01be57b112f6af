package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", ".linkwatcher.toml", "max_file_size_mb = 3\ndry_run_mode = true\nmonitored_extensions = [\".md\"]\n"},
		{"yaml", ".linkwatcher.yaml", "max_file_size_mb: 3\ndry_run_mode: true\nmonitored_extensions: [\".md\"]\n"},
		{"json", ".linkwatcher.json", `{"max_file_size_mb": 3, "dry_run_mode": true, "monitored_extensions": [".md"]}`},
		{"kdl", ".linkwatcher.kdl", "max_file_size_mb 3\ndry_run_mode true\nmonitored_extensions \".md\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg, err := Load(writeFile(t, dir, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, 3, cfg.MaxFileSizeMB)
			assert.True(t, cfg.DryRunMode)
			assert.Equal(t, []string{".md"}, cfg.MonitoredExtensions)
			// untouched keys keep defaults
			assert.True(t, cfg.AtomicUpdates)
			assert.Equal(t, DefaultIgnoredDirectories(), cfg.IgnoredDirectories)

			abs, _ := filepath.Abs(dir)
			assert.Equal(t, abs, cfg.ProjectRoot)
		})
	}
}

func TestLoad_RelativeProjectRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "docs"), 0o755))

	cfg, err := Load(writeFile(t, dir, "lw.yaml", "project_root: docs\n"))
	require.NoError(t, err)

	abs, _ := filepath.Abs(filepath.Join(dir, "docs"))
	assert.Equal(t, abs, cfg.ProjectRoot)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "cfg.ini", "x=1"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "bad.json", "{"))
	assert.Error(t, err)
}

func TestDiscover(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := Discover(dir)
		require.NoError(t, err)

		abs, _ := filepath.Abs(dir)
		assert.Equal(t, abs, cfg.ProjectRoot)
		assert.Equal(t, DefaultMaxFileSizeMB, cfg.MaxFileSizeMB)
	})

	t.Run("kdl wins over json", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ".linkwatcher.json", `{"max_file_size_mb": 7}`)
		writeFile(t, dir, ".linkwatcher.kdl", "max_file_size_mb 5\n")

		cfg, err := Discover(dir)
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.MaxFileSizeMB)
	})
}

func TestMarshal_RoundTripsThroughLoad(t *testing.T) {
	cfg := Default()
	cfg.MaxFileSizeMB = 4
	cfg.CustomParsers = map[string]string{".mdx": "markdown"}

	for _, format := range []string{"kdl", "toml", "yaml", "json"} {
		t.Run(format, func(t *testing.T) {
			data, err := Marshal(cfg, format)
			require.NoError(t, err)

			dir := t.TempDir()
			loaded, err := Load(writeFile(t, dir, "cfg."+format, string(data)))
			require.NoError(t, err)
			assert.Equal(t, 4, loaded.MaxFileSizeMB)
			assert.Equal(t, "markdown", loaded.CustomParsers[".mdx"])
		})
	}

	_, err := Marshal(cfg, "ini")
	assert.Error(t, err)
}

func TestClone_IsDeep(t *testing.T) {
	cfg := Default()
	cfg.CustomParsers[".x"] = "generic"
	clone := cfg.Clone()

	clone.MonitoredExtensions[0] = ".changed"
	clone.CustomParsers[".x"] = "markdown"

	assert.NotEqual(t, ".changed", cfg.MonitoredExtensions[0])
	assert.Equal(t, "generic", cfg.CustomParsers[".x"])
}

func TestDurations(t *testing.T) {
	cfg := Default()
	assert.Equal(t, int64(10*1024*1024), cfg.MaxFileSizeBytes())
	assert.Equal(t, "2s", cfg.MoveDetectTimeout().String())
	assert.Equal(t, "5s", cfg.DirMoveTimeout().String())
	assert.Equal(t, "300ms", cfg.WriteDebounce().String())
	assert.GreaterOrEqual(t, cfg.Workers(), 1)
}
