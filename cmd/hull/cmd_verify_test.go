package main

import (
	"crypto/ed25519"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hull/internal/codec"
	"hull/internal/signature"
)

func writePublicKeyPEM(t *testing.T, pub ed25519.PublicKey) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "key.pub")
	block := pem.EncodeToMemory(&pem.Block{Type: "ED25519 PUBLIC KEY", Bytes: pub})
	require.NoError(t, os.WriteFile(path, block, 0o644))
	return path
}

func TestLoadPinnedKeysDefaultsPlatformKey(t *testing.T) {
	platformKey, developerKey, err := loadPinnedKeys("", "")
	require.NoError(t, err)
	assert.Equal(t, signature.DefaultPlatformPublicKey, platformKey)
	assert.Nil(t, developerKey)
}

func TestLoadPinnedKeysReadsOverridesFromPEM(t *testing.T) {
	platformPub, _, err := codec.GenerateKey()
	require.NoError(t, err)
	developerPub, _, err := codec.GenerateKey()
	require.NoError(t, err)

	platformPath := writePublicKeyPEM(t, platformPub)
	developerPath := writePublicKeyPEM(t, developerPub)

	platformKey, developerKey, err := loadPinnedKeys(platformPath, developerPath)
	require.NoError(t, err)
	assert.Equal(t, platformPub, platformKey)
	assert.Equal(t, developerPub, developerKey)
}

func TestLoadPinnedKeysRejectsMissingFile(t *testing.T) {
	_, _, err := loadPinnedKeys(filepath.Join(t.TempDir(), "missing.pub"), "")
	assert.Error(t, err)
}
