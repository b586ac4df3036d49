package signature

import (
	"bytes"
	"fmt"

	"hull/internal/codec"
	"hull/internal/manifest"
)

// manifestAsAny converts a Manifest (or nil, for absent) into the same
// shape the bundle's Manifest field holds, so both sides canonicalize
// identically.
func manifestAsAny(m *manifest.Manifest) any {
	if manifest.IsAbsent(m) {
		return nil
	}
	return map[string]any{
		"fs": map[string]any{
			"read":  stringsToAny(m.FSRead),
			"write": stringsToAny(m.FSWrite),
		},
		"env":   stringsToAny(m.Env),
		"hosts": stringsToAny(m.Hosts),
	}
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// VerifyManifestMatches checks that the manifest extracted from the
// running app at this load is byte-identical, in canonical form, to the
// manifest recorded in the signed bundle — a mismatch means the app's
// declared capabilities were tampered with after signing.
func VerifyManifestMatches(bundleManifest any, extracted *manifest.Manifest) error {
	extractedAny := manifestAsAny(extracted)

	bundleCanon, err := codec.Canonicalize(bundleManifest)
	if err != nil {
		return fmt.Errorf("signature: canonicalizing bundle manifest: %w", err)
	}
	extractedCanon, err := codec.Canonicalize(extractedAny)
	if err != nil {
		return fmt.Errorf("signature: canonicalizing extracted manifest: %w", err)
	}

	if !bytes.Equal(bundleCanon, extractedCanon) {
		return ErrManifestTampered
	}
	return nil
}
