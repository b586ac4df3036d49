package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hull/internal/manifest"
)

func TestApplyNoOpForAbsentManifestPromises(t *testing.T) {
	tier, err := Apply(manifest.Promises{})
	assert.NoError(t, err)
	assert.Equal(t, currentTier, tier)
}

func TestTierConstantsAreDistinct(t *testing.T) {
	assert.NotEqual(t, TierKernel, TierPolyfill)
	assert.NotEqual(t, TierPolyfill, TierStub)
	assert.NotEqual(t, TierKernel, TierStub)
}
