package capability

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolSpawnDeniesNonAllowlistedExecutable(t *testing.T) {
	tool := NewTool()
	_, err := tool.Spawn(context.Background(), []string{"rm", "-rf", "/"}, nil, t.TempDir())
	assert.ErrorIs(t, err, ErrDenied)
}

func TestToolSpawnRejectsEmptyArgv(t *testing.T) {
	tool := NewTool()
	_, err := tool.Spawn(context.Background(), nil, nil, t.TempDir())
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestToolSpawnAllowlistedExecutableRuns(t *testing.T) {
	if _, err := lookPathAny("cc", "gcc", "clang"); err != nil {
		t.Skip("no allowlisted compiler present in test environment")
	}
	tool := NewTool()
	compiler, _ := lookPathAny("cc", "gcc", "clang")
	result, err := tool.Spawn(context.Background(), []string{compiler, "--version"}, nil, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
}

func lookPathAny(names ...string) (string, error) {
	for _, n := range names {
		if p, err := exec.LookPath(n); err == nil {
			return p, nil
		}
	}
	return "", assert.AnError
}
