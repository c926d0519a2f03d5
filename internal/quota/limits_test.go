package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitsFor(t *testing.T) {
	l, ok := LimitsFor(TierFree, "gemini-2.5-pro")
	require.True(t, ok)
	assert.Equal(t, 5, l.RPM)
	assert.Equal(t, 250_000, l.TPM)
	assert.Equal(t, 100, l.RPD)

	_, ok = LimitsFor(TierFree, "no-such-model")
	assert.False(t, ok)

	_, ok = LimitsFor(Tier("enterprise"), "gemini-2.5-pro")
	assert.False(t, ok)
}

func TestLimitsFor_NoDailyCapOnPaidFlashLite(t *testing.T) {
	l, ok := LimitsFor(TierOne, "gemini-2.5-flash-lite")
	require.True(t, ok)
	assert.Zero(t, l.RPD)
}

func TestModelsInTier(t *testing.T) {
	models := ModelsInTier(TierFree)
	assert.Len(t, models, 4)
	assert.Contains(t, models, "gemini-2.5-flash")

	assert.Empty(t, ModelsInTier(Tier("bogus")))
}
