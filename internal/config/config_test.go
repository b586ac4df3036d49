package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigHasSaneDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "goja", cfg.RuntimeBackend)
	assert.Equal(t, "data/hull.db", cfg.DatabasePath)
	assert.False(t, cfg.Logging.DebugMode)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().DatabasePath, cfg.DatabasePath)
}

func TestLoadParsesYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hull.yaml")
	cfg := DefaultConfig()
	cfg.DatabasePath = "custom/app.db"
	cfg.Addr = "0.0.0.0:9090"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom/app.db", loaded.DatabasePath)
	assert.Equal(t, "0.0.0.0:9090", loaded.Addr)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("HULL_PORT", "9999")
	t.Setenv("HULL_DB", "/tmp/override.db")
	t.Setenv("HULL_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Addr)
	assert.Equal(t, "/tmp/override.db", cfg.DatabasePath)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.DebugMode)
}

func TestInstructionBudgetOrDefault(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, uint64(10_000_000), cfg.InstructionBudgetOrDefault(10_000_000))

	cfg.InstructionBudget = 42
	assert.Equal(t, uint64(42), cfg.InstructionBudgetOrDefault(10_000_000))
}
