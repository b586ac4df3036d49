package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeNoOpWhenDebugDisabled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, false, LevelInfo))
	defer CloseAll()

	_, err := os.Stat(filepath.Join(dir, ".hull", "logs"))
	assert.True(t, os.IsNotExist(err), "logs directory should not be created when debug is disabled")

	Get(CategoryBoot).Info("should not write anywhere")
}

func TestInitializeCreatesLogFileWhenDebugEnabled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, true, LevelDebug))
	defer CloseAll()

	Get(CategoryCapability).Info("fs.read: path=%s", "data/a.txt")

	path := filepath.Join(dir, ".hull", "logs", "capability.log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fs.read: path=data/a.txt")
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, true, LevelWarn))
	defer CloseAll()

	Get(CategoryBoot).Debug("dropped")
	Get(CategoryBoot).Info("dropped")
	Get(CategoryBoot).Warn("kept")

	path := filepath.Join(dir, ".hull", "logs", "boot.log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestNextRequestIDMonotonic(t *testing.T) {
	a := NextRequestID()
	b := NextRequestID()
	assert.Greater(t, b, a)
}
