package signature

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"hull/internal/codec"
)

// UnmarshalCanonical parses a canonical payload written by MarshalCanonical
// back into a Bundle. It is a plain decoder, not a verifier — callers must
// still run VerifyChain on the result before trusting anything in it.
func UnmarshalCanonical(data []byte) (Bundle, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Bundle{}, fmt.Errorf("signature: parsing canonical payload: %w", err)
	}

	var b Bundle
	var err error

	if b.BinaryHash, err = str(raw, "binary_hash"); err != nil {
		return Bundle{}, err
	}
	if b.TrampolineHash, err = str(raw, "trampoline_hash"); err != nil {
		return Bundle{}, err
	}
	if b.PublicKey, err = b64Field(raw, "public_key"); err != nil {
		return Bundle{}, err
	}
	if b.Signature, err = b64Field(raw, "signature"); err != nil {
		return Bundle{}, err
	}
	b.Manifest = raw["manifest"]

	platformRaw, ok := raw["platform"].(map[string]any)
	if !ok {
		return Bundle{}, fmt.Errorf("signature: canonical payload missing platform object")
	}
	if b.Platform, err = decodePlatform(platformRaw); err != nil {
		return Bundle{}, err
	}

	filesRaw, _ := raw["files"].([]any)
	for _, f := range filesRaw {
		fm, ok := f.(map[string]any)
		if !ok {
			return Bundle{}, fmt.Errorf("signature: malformed file entry in canonical payload")
		}
		path, err := str(fm, "path")
		if err != nil {
			return Bundle{}, err
		}
		sha, err := str(fm, "sha256")
		if err != nil {
			return Bundle{}, err
		}
		b.Files = append(b.Files, FileHash{Path: path, SHA256: sha})
	}

	buildRaw, ok := raw["build"].(map[string]any)
	if !ok {
		return Bundle{}, fmt.Errorf("signature: canonical payload missing build object")
	}
	if b.Build.CCVersion, err = str(buildRaw, "cc_version"); err != nil {
		return Bundle{}, err
	}
	b.Build.Timestamp, _ = buildRaw["timestamp"].(string)
	flagsRaw, _ := buildRaw["flags"].([]any)
	for _, f := range flagsRaw {
		s, ok := f.(string)
		if !ok {
			return Bundle{}, fmt.Errorf("signature: non-string build flag in canonical payload")
		}
		b.Build.Flags = append(b.Build.Flags, s)
	}

	return b, nil
}

// MarshalPlatformCanonical produces the canonical payload sign-platform
// writes out: the attestation's payload plus its own signature and public
// key, mirroring MarshalCanonical's shape for the outer Bundle.
func MarshalPlatformCanonical(att PlatformAttestation) ([]byte, error) {
	payload, err := platformPayload(att)
	if err != nil {
		return nil, err
	}
	payload["signature"] = base64.RawURLEncoding.EncodeToString(att.Signature)
	payload["public_key"] = base64.RawURLEncoding.EncodeToString(att.PublicKey)
	return codec.Canonicalize(payload)
}

// UnmarshalPlatformCanonical parses a payload written by
// MarshalPlatformCanonical back into a PlatformAttestation.
func UnmarshalPlatformCanonical(data []byte) (PlatformAttestation, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return PlatformAttestation{}, fmt.Errorf("signature: parsing canonical platform payload: %w", err)
	}
	return decodePlatform(raw)
}

func decodePlatform(raw map[string]any) (PlatformAttestation, error) {
	var p PlatformAttestation
	var err error
	if p.Version, err = str(raw, "version"); err != nil {
		return PlatformAttestation{}, err
	}
	if p.Signature, err = b64Field(raw, "signature"); err != nil {
		return PlatformAttestation{}, err
	}
	if p.PublicKey, err = b64Field(raw, "public_key"); err != nil {
		return PlatformAttestation{}, err
	}
	hashesRaw, ok := raw["hashes"].(map[string]any)
	if !ok {
		return PlatformAttestation{}, fmt.Errorf("signature: platform object missing hashes")
	}
	p.Hashes = make(map[string]string, len(hashesRaw))
	for k, v := range hashesRaw {
		s, ok := v.(string)
		if !ok {
			return PlatformAttestation{}, fmt.Errorf("signature: non-string hash for arch %s", k)
		}
		p.Hashes[k] = s
	}
	return p, nil
}

func str(m map[string]any, key string) (string, error) {
	v, ok := m[key].(string)
	if !ok {
		return "", fmt.Errorf("signature: canonical payload missing string field %q", key)
	}
	return v, nil
}

func b64Field(m map[string]any, key string) ([]byte, error) {
	s, err := str(m, key)
	if err != nil {
		return nil, err
	}
	decoded, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("signature: decoding %q: %w", key, err)
	}
	return decoded, nil
}
