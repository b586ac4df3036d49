package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hull/internal/codec"
)

func TestMarshalUnmarshalCanonicalRoundTrip(t *testing.T) {
	platPub, platPriv, err := codec.GenerateKey()
	require.NoError(t, err)
	att, err := SignPlatform("1.0.0", map[string]string{"linux/amd64": "deadbeef"}, platPriv)
	require.NoError(t, err)

	appPub, appPriv, err := codec.GenerateKey()
	require.NoError(t, err)

	fileData := []byte("package main")
	b := Bundle{
		BinaryHash:     "abc123",
		Platform:       att,
		Files:          []FileHash{{Path: "main.kl", SHA256: SHA256Hex(fileData)}},
		Manifest:       map[string]any{"fs_read": []any{"data/"}},
		Build:          BuildInfo{CCVersion: "cc", Flags: []string{"-O2", "-static"}, Timestamp: ""},
		TrampolineHash: "tramp-hash",
	}
	signed, err := SignBundle(b, appPriv)
	require.NoError(t, err)

	canon, err := MarshalCanonical(signed)
	require.NoError(t, err)

	decoded, err := UnmarshalCanonical(canon)
	require.NoError(t, err)

	assert.Equal(t, signed.BinaryHash, decoded.BinaryHash)
	assert.Equal(t, signed.TrampolineHash, decoded.TrampolineHash)
	assert.Equal(t, signed.Build.Flags, decoded.Build.Flags)
	assert.Equal(t, signed.Files, decoded.Files)
	assert.Equal(t, []byte(appPub), decoded.PublicKey)
	assert.Equal(t, []byte(platPub), decoded.Platform.PublicKey)
	assert.Equal(t, signed.Platform.Hashes, decoded.Platform.Hashes)

	require.NoError(t, VerifyBundle(decoded, map[string][]byte{"main.kl": fileData}, nil))
}
