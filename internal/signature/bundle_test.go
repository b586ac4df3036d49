package signature

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hull/internal/codec"
)

func TestSignVerifyPlatformRoundTrip(t *testing.T) {
	_, priv, err := codec.GenerateKey()
	require.NoError(t, err)

	att, err := SignPlatform("1.0.0", map[string]string{"linux-amd64": "abc123"}, priv)
	require.NoError(t, err)

	err = VerifyPlatform(att, "linux-amd64", "abc123", nil)
	assert.NoError(t, err)
}

func TestVerifyPlatformRejectsUnknownArch(t *testing.T) {
	_, priv, err := codec.GenerateKey()
	require.NoError(t, err)
	att, err := SignPlatform("1.0.0", map[string]string{"linux-amd64": "abc123"}, priv)
	require.NoError(t, err)

	err = VerifyPlatform(att, "darwin-arm64", "xyz", nil)
	assert.ErrorIs(t, err, ErrUnknownArch)
}

func TestVerifyPlatformRejectsHashMismatch(t *testing.T) {
	_, priv, err := codec.GenerateKey()
	require.NoError(t, err)
	att, err := SignPlatform("1.0.0", map[string]string{"linux-amd64": "abc123"}, priv)
	require.NoError(t, err)

	err = VerifyPlatform(att, "linux-amd64", "tampered", nil)
	assert.ErrorIs(t, err, ErrPlatformSigMismatch)
}

func buildTestBundle(t *testing.T, platformPriv, appPriv []byte) (Bundle, map[string][]byte) {
	t.Helper()
	att, err := SignPlatform("1.0.0", map[string]string{"linux-amd64": "plat-hash"}, platformPriv)
	require.NoError(t, err)

	contents := map[string][]byte{"main.js": []byte("console.log(1)")}
	b := Bundle{
		BinaryHash:     "binhash",
		Platform:       att,
		Files:          []FileHash{{Path: "main.js", SHA256: SHA256Hex(contents["main.js"])}},
		Manifest:       nil,
		Build:          BuildInfo{CCVersion: "clang 17", Flags: []string{"-O2"}, Timestamp: "0"},
		TrampolineHash: "tramp-hash",
	}
	signed, err := SignBundle(b, appPriv)
	require.NoError(t, err)
	return signed, contents
}

func TestSignVerifyBundleRoundTrip(t *testing.T) {
	_, platformPriv, err := codec.GenerateKey()
	require.NoError(t, err)
	_, appPriv, err := codec.GenerateKey()
	require.NoError(t, err)

	bundle, contents := buildTestBundle(t, platformPriv, appPriv)
	assert.NoError(t, VerifyBundle(bundle, contents, nil))
}

func TestVerifyBundleRejectsTamperedFile(t *testing.T) {
	_, platformPriv, err := codec.GenerateKey()
	require.NoError(t, err)
	_, appPriv, err := codec.GenerateKey()
	require.NoError(t, err)

	bundle, contents := buildTestBundle(t, platformPriv, appPriv)
	contents["main.js"] = []byte("console.log(2) // tampered")

	var mismatch *HashMismatch
	err = VerifyBundle(bundle, contents, nil)
	assert.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "main.js", mismatch.Path)
}

func TestVerifyBundleRejectsMissingFile(t *testing.T) {
	_, platformPriv, err := codec.GenerateKey()
	require.NoError(t, err)
	_, appPriv, err := codec.GenerateKey()
	require.NoError(t, err)

	bundle, _ := buildTestBundle(t, platformPriv, appPriv)
	err = VerifyBundle(bundle, map[string][]byte{}, nil)
	var mismatch *HashMismatch
	assert.ErrorAs(t, err, &mismatch)
}

func TestVerifyBundleRejectsWrongSigningKey(t *testing.T) {
	_, platformPriv, err := codec.GenerateKey()
	require.NoError(t, err)
	_, appPriv, err := codec.GenerateKey()
	require.NoError(t, err)

	bundle, contents := buildTestBundle(t, platformPriv, appPriv)
	otherPub, _, err := codec.GenerateKey()
	require.NoError(t, err)
	bundle.PublicKey = otherPub

	err = VerifyBundle(bundle, contents, nil)
	assert.ErrorIs(t, err, ErrAppSigMismatch)
}

func TestVerifyChainVerifiesPlatformBeforeApp(t *testing.T) {
	_, platformPriv, err := codec.GenerateKey()
	require.NoError(t, err)
	_, appPriv, err := codec.GenerateKey()
	require.NoError(t, err)

	bundle, contents := buildTestBundle(t, platformPriv, appPriv)
	err = VerifyChain(bundle, "linux-amd64", "plat-hash", contents, nil, nil)
	assert.NoError(t, err)

	err = VerifyChain(bundle, "linux-amd64", "wrong-hash", contents, nil, nil)
	assert.ErrorIs(t, err, ErrPlatformSigMismatch)
}

// TestVerifyChainRejectsReSignedTamperedBundle is §8 scenario 1: an
// attacker who tampers with a bundle and re-signs it with a fresh
// keypair of their own must still fail verification once a pinned
// developer key is supplied, even though the re-signed bundle is
// internally self-consistent (its embedded public key matches its own
// signature).
func TestVerifyChainRejectsReSignedTamperedBundle(t *testing.T) {
	_, platformPriv, err := codec.GenerateKey()
	require.NoError(t, err)
	developerPub, appPriv, err := codec.GenerateKey()
	require.NoError(t, err)

	bundle, contents := buildTestBundle(t, platformPriv, appPriv)

	attackerPub, attackerPriv, err := codec.GenerateKey()
	require.NoError(t, err)
	bundle.BinaryHash = "attacker-modified-hash"
	bundle, err = SignBundle(bundle, attackerPriv)
	require.NoError(t, err)
	require.Equal(t, attackerPub, ed25519.PublicKey(bundle.PublicKey))

	// Without a pinned key the re-signed bundle still passes: this is
	// exactly the gap a pinned developer key closes.
	require.NoError(t, VerifyBundle(bundle, contents, nil))

	err = VerifyChain(bundle, "linux-amd64", "plat-hash", contents, nil, developerPub)
	assert.ErrorIs(t, err, ErrDeveloperKeyMismatch)
}

func TestVerifyPlatformRejectsUnpinnedKey(t *testing.T) {
	_, platformPriv, err := codec.GenerateKey()
	require.NoError(t, err)
	att, err := SignPlatform("1.0.0", map[string]string{"linux-amd64": "abc123"}, platformPriv)
	require.NoError(t, err)

	pinnedPub, _, err := codec.GenerateKey()
	require.NoError(t, err)

	err = VerifyPlatform(att, "linux-amd64", "abc123", pinnedPub)
	assert.ErrorIs(t, err, ErrPlatformKeyMismatch)
}
