package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hull/internal/manifest"
	"hull/internal/runtime"
)

func TestExtractManifestDeclarationReadsDeclaredManifest(t *testing.T) {
	dir := t.TempDir()
	source := `
		hull.manifest({fs: {read: ["data/"], write: []}, env: [], hosts: ["api.example.com"]});
		hull.route("GET", "/ping", "pingHandler");
		function pingHandler(req) { return {status: 200, headers: {}, body: null, context: {}}; }
	`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.kl"), []byte(source), 0o644))

	opts := Options{
		SourceDir:  dir,
		NewRuntime: func() (runtime.Runtime, error) { return runtime.NewGojaBackend(), nil },
	}

	decl, present, err := extractManifestDeclaration(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, []string{"api.example.com"}, decl.Hosts)
}

func TestExtractManifestDeclarationAbsentWhenAppNeverDeclares(t *testing.T) {
	dir := t.TempDir()
	source := `
		hull.route("GET", "/ping", "pingHandler");
		function pingHandler(req) { return {status: 200, headers: {}, body: null, context: {}}; }
	`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.kl"), []byte(source), 0o644))

	opts := Options{
		SourceDir:  dir,
		NewRuntime: func() (runtime.Runtime, error) { return runtime.NewGojaBackend(), nil },
	}

	_, present, err := extractManifestDeclaration(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestManifestToAnyNilIsNull(t *testing.T) {
	assert.Nil(t, manifestToAny(nil))
}

func TestManifestToAnyPreservesArrays(t *testing.T) {
	m := &manifest.Manifest{FSRead: []string{"data/"}, Hosts: []string{"api.example.com"}}
	out := manifestToAny(m).(map[string]any)
	assert.Equal(t, []any{"data/"}, out["fs_read"])
	assert.Equal(t, []any{"api.example.com"}, out["hosts"])
}
