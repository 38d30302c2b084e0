package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderDefaults(t *testing.T) {
	loader := NewIsolatedLoader()

	cfg, err := loader.Load()
	require.NoError(t, err)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.Pipeline.Strategy, cfg.Pipeline.Strategy)
	assert.Equal(t, defaults.Pipeline.Cache.TTLMinutes, cfg.Pipeline.Cache.TTLMinutes)
	assert.Equal(t, defaults.Server.Port, cfg.Server.Port)
}

func TestLoaderWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lootlens.yaml")
	content := `
log_level: debug
catalog_path: /data/catalog.json
pipeline:
  strategy: accurate
  ocr:
    timeout_sec: 30
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	loader := NewIsolatedLoader()
	cfg, err := loader.LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/data/catalog.json", cfg.CatalogPath)
	assert.Equal(t, "accurate", cfg.Pipeline.Strategy)
	assert.Equal(t, 30, cfg.Pipeline.OCR.TimeoutSec)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Untouched keys keep defaults.
	assert.Equal(t, DefaultConfig().Pipeline.Cache.TTLMinutes, cfg.Pipeline.Cache.TTLMinutes)
}

func TestLoaderWithMissingFile(t *testing.T) {
	loader := NewIsolatedLoader()
	_, err := loader.LoadWithFile("/nonexistent/lootlens.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoaderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lootlens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: trace\n"), 0o600))

	loader := NewIsolatedLoader()
	_, err := loader.LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoaderEnvOverride(t *testing.T) {
	t.Setenv("LOOTLENS_PIPELINE_STRATEGY", "fast")
	t.Setenv("LOOTLENS_SERVER_PORT", "9999")

	loader := NewIsolatedLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "fast", cfg.Pipeline.Strategy)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "generated.yaml")

	require.NoError(t, GenerateDefaultConfigFile(path))

	loader := NewIsolatedLoader()
	cfg, err := loader.LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Pipeline.Strategy, cfg.Pipeline.Strategy)
}

func TestGetConfigSearchPaths(t *testing.T) {
	paths := GetConfigSearchPaths()
	require.NotEmpty(t, paths)
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, "/etc/lootlens")
}
