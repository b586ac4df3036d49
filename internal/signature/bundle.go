// Package signature implements Hull's dual Ed25519 signature chain: a
// platform attestation signed by the platform publisher, and an app
// bundle signature signed by the developer, chained so app verification
// implies platform verification (§4.5).
package signature

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"hull/internal/codec"
)

// FileHash is one embedded source artifact's path and content hash.
type FileHash struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// BuildInfo records the compiler and flags used to produce a binary, for
// reproducibility auditing (§4.8).
type BuildInfo struct {
	CCVersion string   `json:"cc_version"`
	Flags     []string `json:"flags"`
	Timestamp string   `json:"timestamp"`
}

// PlatformAttestation is the outer trust anchor: the platform publisher's
// signature over a version and a map of architecture triple to platform
// bytes hash.
type PlatformAttestation struct {
	Version   string            `json:"version"`
	Hashes    map[string]string `json:"hashes"`
	Signature []byte            `json:"signature"`
	PublicKey []byte            `json:"public_key"`
}

// Bundle is the full signed package.sig payload (§3's "Signature Bundle").
type Bundle struct {
	BinaryHash     string              `json:"binary_hash"`
	Platform       PlatformAttestation `json:"platform"`
	Files          []FileHash          `json:"files"`
	Manifest       any                 `json:"manifest"` // nil for an absent manifest
	Build          BuildInfo           `json:"build"`
	TrampolineHash string              `json:"trampoline_hash"`
	Signature      []byte              `json:"signature"`
	PublicKey      []byte              `json:"public_key"`
}

// Failure modes (§4.5). Each is fatal at runtime verify; none is retried.
var (
	ErrPlatformSigMismatch  = errors.New("signature: platform signature mismatch")
	ErrAppSigMismatch       = errors.New("signature: app signature mismatch")
	ErrUnknownArch          = errors.New("signature: unknown architecture")
	ErrManifestTampered     = errors.New("signature: manifest tampered")
	ErrPlatformKeyMismatch  = errors.New("signature: platform public key does not match pinned trust anchor")
	ErrDeveloperKeyMismatch = errors.New("signature: app public key does not match pinned developer key")
)

// DefaultPlatformPublicKey is the hardcoded platform trust anchor (§4.5:
// "the platform publisher key is a pinned trust anchor — hardcoded bytes,
// overridable by CLI flag"). It pins the attestation's embedded public key
// so a tampered bundle cannot simply carry its own freshly generated
// keypair and pass verification; operators running their own platform
// build override it with --platform-key.
var DefaultPlatformPublicKey = ed25519.PublicKey{
	0x2f, 0x83, 0x1a, 0x6c, 0xe1, 0x94, 0x77, 0x0b,
	0x5d, 0xc2, 0x48, 0x91, 0x3a, 0x6f, 0x0d, 0x54,
	0xb7, 0x29, 0xe8, 0x16, 0x4c, 0xa3, 0xf5, 0x02,
	0x9e, 0x61, 0xd4, 0x38, 0x7c, 0xf1, 0x0a, 0x93,
}

// HashMismatch reports that an embedded file's recomputed hash did not
// match its recorded hash in the bundle.
type HashMismatch struct {
	Path string
}

func (e *HashMismatch) Error() string {
	return fmt.Sprintf("signature: hash mismatch for %s", e.Path)
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// platformPayload reproduces the canonical sub-payload the platform
// publisher signs: {version, hashes}, independent of everything the app
// signature later wraps it in.
func platformPayload(p PlatformAttestation) (map[string]any, error) {
	hashes := make(map[string]any, len(p.Hashes))
	for k, v := range p.Hashes {
		hashes[k] = v
	}
	return map[string]any{
		"version": p.Version,
		"hashes":  hashes,
	}, nil
}

// SignPlatform produces a PlatformAttestation for version and hashes,
// signed by priv.
func SignPlatform(version string, hashes map[string]string, priv ed25519.PrivateKey) (PlatformAttestation, error) {
	att := PlatformAttestation{Version: version, Hashes: hashes, PublicKey: priv.Public().(ed25519.PublicKey)}
	payload, err := platformPayload(att)
	if err != nil {
		return PlatformAttestation{}, err
	}
	canon, err := codec.Canonicalize(payload)
	if err != nil {
		return PlatformAttestation{}, fmt.Errorf("signature: canonicalizing platform payload: %w", err)
	}
	att.Signature = codec.Sign(canon, priv)
	return att, nil
}

// VerifyPlatform checks the platform attestation's signature and that
// currentArch's hash entry matches currentPlatformHash — the running
// binary's own platform bytes. pinnedPlatformKey, when non-nil, is
// compared against att.PublicKey before the signature math runs at all:
// an attestation whose embedded key isn't the pinned trust anchor is
// rejected outright, so a tampered attestation can't carry its own
// freshly generated keypair and verify against itself.
func VerifyPlatform(att PlatformAttestation, currentArch, currentPlatformHash string, pinnedPlatformKey ed25519.PublicKey) error {
	if pinnedPlatformKey != nil && !bytes.Equal(att.PublicKey, pinnedPlatformKey) {
		return ErrPlatformKeyMismatch
	}

	want, ok := att.Hashes[currentArch]
	if !ok {
		return ErrUnknownArch
	}
	if want != currentPlatformHash {
		return ErrPlatformSigMismatch
	}

	payload, err := platformPayload(att)
	if err != nil {
		return err
	}
	canon, err := codec.Canonicalize(payload)
	if err != nil {
		return fmt.Errorf("signature: canonicalizing platform payload: %w", err)
	}
	if err := codec.Verify(canon, att.Signature, att.PublicKey); err != nil {
		return ErrPlatformSigMismatch
	}
	return nil
}

// appPayload reproduces the bundle-minus-signature canonical payload the
// developer key signs over. Ed25519 signatures and public keys are raw
// bytes, which codec.Canonicalize refuses to encode directly (callers
// must pick an encoding so two encoders can't disagree on raw-byte
// escaping) — base64url is this package's fixed choice.
func appPayload(b Bundle) (map[string]any, error) {
	files := make([]any, 0, len(b.Files))
	for _, f := range b.Files {
		files = append(files, map[string]any{"path": f.Path, "sha256": f.SHA256})
	}
	platform := map[string]any{
		"version":    b.Platform.Version,
		"signature":  base64.RawURLEncoding.EncodeToString(b.Platform.Signature),
		"public_key": base64.RawURLEncoding.EncodeToString(b.Platform.PublicKey),
	}
	hashes := make(map[string]any, len(b.Platform.Hashes))
	for k, v := range b.Platform.Hashes {
		hashes[k] = v
	}
	platform["hashes"] = hashes

	return map[string]any{
		"binary_hash":     b.BinaryHash,
		"platform":        platform,
		"files":           files,
		"manifest":        b.Manifest,
		"build":           map[string]any{"cc_version": b.Build.CCVersion, "flags": toAnySlice(b.Build.Flags), "timestamp": b.Build.Timestamp},
		"trampoline_hash": b.TrampolineHash,
		"public_key":      base64.RawURLEncoding.EncodeToString(b.PublicKey),
	}, nil
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// SignBundle fills in Signature by canonicalizing everything else in b and
// signing with priv.
func SignBundle(b Bundle, priv ed25519.PrivateKey) (Bundle, error) {
	b.PublicKey = priv.Public().(ed25519.PublicKey)
	payload, err := appPayload(b)
	if err != nil {
		return Bundle{}, err
	}
	canon, err := codec.Canonicalize(payload)
	if err != nil {
		return Bundle{}, fmt.Errorf("signature: canonicalizing app payload: %w", err)
	}
	b.Signature = codec.Sign(canon, priv)
	return b, nil
}

// VerifyBundle checks the app signature over b (minus its own Signature
// field) and recomputes every embedded file's hash against fileContents,
// a map from logical path to current bytes. pinnedDeveloperKey, when
// non-nil, is compared against b.PublicKey before the signature math
// runs — the same rationale as VerifyPlatform's pin check, applied to the
// developer half of the chain (§8 scenario 1: `verify --developer-key
// K.pub` must gate the app signature on K, not on whatever key the
// bundle itself carries).
func VerifyBundle(b Bundle, fileContents map[string][]byte, pinnedDeveloperKey ed25519.PublicKey) error {
	if pinnedDeveloperKey != nil && !bytes.Equal(b.PublicKey, pinnedDeveloperKey) {
		return ErrDeveloperKeyMismatch
	}

	payload, err := appPayload(b)
	if err != nil {
		return err
	}
	canon, err := codec.Canonicalize(payload)
	if err != nil {
		return fmt.Errorf("signature: canonicalizing app payload: %w", err)
	}
	if err := codec.Verify(canon, b.Signature, b.PublicKey); err != nil {
		return ErrAppSigMismatch
	}

	for _, f := range b.Files {
		data, ok := fileContents[f.Path]
		if !ok {
			return &HashMismatch{Path: f.Path}
		}
		if SHA256Hex(data) != f.SHA256 {
			return &HashMismatch{Path: f.Path}
		}
	}
	return nil
}

// MarshalCanonical produces the full canonical payload for a signed
// bundle, including its own signature and public key — this is what gets
// written to package.sig, as opposed to appPayload's signature-less view
// which exists only to be signed over.
func MarshalCanonical(b Bundle) ([]byte, error) {
	payload, err := appPayload(b)
	if err != nil {
		return nil, err
	}
	payload["signature"] = base64.RawURLEncoding.EncodeToString(b.Signature)
	return codec.Canonicalize(payload)
}

// VerifyChain runs VerifyPlatform followed by VerifyBundle — "verify
// platform → verify app", the chained order §4.5 requires so a forged app
// signature can never stand on an unverified platform attestation.
// pinnedPlatformKey and pinnedDeveloperKey are the respective trust
// anchors; either may be nil to skip that half's pin check (key
// identity still isn't enforced in that case, only the signature math).
func VerifyChain(b Bundle, currentArch, currentPlatformHash string, fileContents map[string][]byte, pinnedPlatformKey, pinnedDeveloperKey ed25519.PublicKey) error {
	if err := VerifyPlatform(b.Platform, currentArch, currentPlatformHash, pinnedPlatformKey); err != nil {
		return err
	}
	return VerifyBundle(b, fileContents, pinnedDeveloperKey)
}
