package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hull/internal/manifest"
)

func TestVerifyManifestMatchesAbsentBoth(t *testing.T) {
	err := VerifyManifestMatches(nil, nil)
	assert.NoError(t, err)
}

func TestVerifyManifestMatchesIdenticalDeclared(t *testing.T) {
	var d manifest.Declaration
	d.Hosts = []string{"api.example.com"}
	m, err := manifest.New(d)
	require.NoError(t, err)

	bundleManifest := manifestAsAny(m)
	assert.NoError(t, VerifyManifestMatches(bundleManifest, m))
}

func TestVerifyManifestMatchesRejectsTamperedHosts(t *testing.T) {
	var d manifest.Declaration
	d.Hosts = []string{"api.example.com"}
	m, err := manifest.New(d)
	require.NoError(t, err)
	bundleManifest := manifestAsAny(m)

	var tampered manifest.Declaration
	tampered.Hosts = []string{"evil.test"}
	m2, err := manifest.New(tampered)
	require.NoError(t, err)

	err = VerifyManifestMatches(bundleManifest, m2)
	assert.ErrorIs(t, err, ErrManifestTampered)
}

func TestVerifyManifestMatchesRejectsAbsentVsPresent(t *testing.T) {
	m, err := manifest.New(manifest.Declaration{})
	require.NoError(t, err)

	err = VerifyManifestMatches(nil, m)
	assert.ErrorIs(t, err, ErrManifestTampered)
}
