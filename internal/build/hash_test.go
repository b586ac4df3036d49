package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hull/internal/signature"
)

func TestHashAssetsMatchesPerFileSHA256(t *testing.T) {
	assets := []Asset{
		{LogicalName: "a.kl", Data: []byte("hello")},
		{LogicalName: "b.kl", Data: []byte("world")},
	}
	hashes, err := HashAssets(assets)
	require.NoError(t, err)
	require.Len(t, hashes, 2)

	assert.Equal(t, "a.kl", hashes[0].Path)
	assert.Equal(t, signature.SHA256Hex([]byte("hello")), hashes[0].SHA256)
	assert.Equal(t, "b.kl", hashes[1].Path)
	assert.Equal(t, signature.SHA256Hex([]byte("world")), hashes[1].SHA256)
}

func TestHashAssetsEmptyInputReturnsEmptySlice(t *testing.T) {
	hashes, err := HashAssets(nil)
	require.NoError(t, err)
	assert.Empty(t, hashes)
}

func TestHashBinaryMatchesFileContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "binary")
	require.NoError(t, os.WriteFile(path, []byte("compiled-output"), 0o755))

	hash, err := HashBinary(path)
	require.NoError(t, err)
	assert.Equal(t, signature.SHA256Hex([]byte("compiled-output")), hash)
}

func TestHashBinaryMissingFileFails(t *testing.T) {
	_, err := HashBinary(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
