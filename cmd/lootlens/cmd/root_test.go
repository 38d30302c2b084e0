package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lootlens/lootlens/internal/config"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "lootlens", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommandHelp(t *testing.T) {
	output, err := executeCommand(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, output, "inventory screenshots")
	assert.Contains(t, output, "Available Commands:")
	assert.Contains(t, output, "detect")
	assert.Contains(t, output, "serve")
}

func TestRootCommandVersion(t *testing.T) {
	output, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, output, "lootlens version")
}

func TestDetectCommandNoArgs(t *testing.T) {
	_, err := executeCommand(t, "detect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input files")
}

func TestDetectCommandInvalidFormat(t *testing.T) {
	_, err := executeCommand(t, "detect", "cell.png", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestStrategyListCommand(t *testing.T) {
	output, err := executeCommand(t, "strategy", "list")
	require.NoError(t, err)

	assert.Contains(t, output, "current")
	assert.Contains(t, output, "accurate")
	assert.Contains(t, output, "fast")
}

func TestStrategyShowCommand(t *testing.T) {
	output, err := executeCommand(t, "strategy", "show", "balanced")
	require.NoError(t, err)
	assert.Contains(t, output, `"name": "balanced"`)
}

func TestStrategyShowUnknown(t *testing.T) {
	_, err := executeCommand(t, "strategy", "show", "quantum")
	require.Error(t, err)
}

func TestStrategySetUnknown(t *testing.T) {
	_, err := executeCommand(t, "strategy", "set", "quantum")
	require.Error(t, err)
}

func TestCorrectionsExportCommand(t *testing.T) {
	dir := t.TempDir()
	ledger := filepath.Join(dir, "ledger.json")
	file := filepath.Join(dir, "export.json")

	// a ledger file that does not exist yet exports as empty
	_, err := executeCommand(t, "corrections", "export", "--ledger", ledger, "--file", file)
	require.NoError(t, err)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestCorrectionsRecordPersists(t *testing.T) {
	dir := t.TempDir()
	ledger := filepath.Join(dir, "ledger.json")

	_, err := executeCommand(t, "corrections", "record", "garlic", "crown", "--ledger", ledger, "--confidence", "0.9")
	require.NoError(t, err)
	output, err := executeCommand(t, "corrections", "record", "garlic", "crown", "--ledger", ledger)
	require.NoError(t, err)
	assert.Contains(t, output, "2 corrections")

	// the recorded state survives into a fresh export
	output, err = executeCommand(t, "corrections", "export", "--ledger", ledger, "--file", "")
	require.NoError(t, err)
	assert.Contains(t, output, `"detected":"garlic"`)
	assert.Contains(t, output, `"actual":"crown"`)
}

func TestCorrectionsImportCommand(t *testing.T) {
	dir := t.TempDir()
	ledger := filepath.Join(dir, "ledger.json")
	file := filepath.Join(dir, "incoming.json")
	blob := `[{"detected":"garlic","actual":"garlic_bread","confidence":0.7,"timestamp":"2026-08-01T10:00:00Z","imageHash":"abc"}]`
	require.NoError(t, os.WriteFile(file, []byte(blob), 0o600))

	output, err := executeCommand(t, "corrections", "import", file, "--ledger", ledger)
	require.NoError(t, err)
	assert.Contains(t, output, "1 corrections")
	assert.Contains(t, output, "garlic -> garlic_bread")

	// import replaces the persisted ledger
	data, err := os.ReadFile(ledger)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"garlic_bread"`)
}

func TestCorrectionsImportMalformed(t *testing.T) {
	dir := t.TempDir()
	ledger := filepath.Join(dir, "ledger.json")
	file := filepath.Join(dir, "incoming.json")
	require.NoError(t, os.WriteFile(file, []byte("{broken"), 0o600))

	_, err := executeCommand(t, "corrections", "import", file, "--ledger", ledger)
	require.Error(t, err)
	// nothing was persisted
	_, err = os.Stat(ledger)
	assert.True(t, os.IsNotExist(err))
}

func TestConfigInitCommand(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "lootlens.yaml")

	_, err := executeCommand(t, "config", "init", "--file", file)
	require.NoError(t, err)

	data, err := os.ReadFile(file)
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, "current", cfg.Pipeline.Strategy)

	// A second init without --force refuses to overwrite.
	_, err = executeCommand(t, "config", "init", "--file", file)
	require.Error(t, err)

	_, err = executeCommand(t, "config", "init", "--file", file, "--force")
	require.NoError(t, err)
}
