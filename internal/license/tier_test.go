package license

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		in   string
		want Tier
	}{
		{"trial", TierTrial},
		{"basic", TierBasic},
		{"pro", TierPro},
		{"professional", TierPro},
		{"enterprise", TierEnterprise},
		{"  Professional ", TierPro},
		{"ENTERPRISE", TierEnterprise},
	}

	for _, tt := range tests {
		got, err := ParseTier(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseTier("platinum")
	assert.Error(t, err)
}

func TestTierStringRoundTrip(t *testing.T) {
	for _, tier := range []Tier{TierTrial, TierBasic, TierPro, TierEnterprise} {
		parsed, err := ParseTier(tier.String())
		require.NoError(t, err)
		assert.Equal(t, tier, parsed)
	}
}

func TestTierIncludes(t *testing.T) {
	assert.True(t, TierEnterprise.Includes(TierTrial))
	assert.True(t, TierPro.Includes(TierBasic))
	assert.True(t, TierBasic.Includes(TierBasic))
	assert.False(t, TierBasic.Includes(TierPro))
	assert.False(t, TierTrial.Includes(TierBasic))
}

func TestTierMaxFileSize(t *testing.T) {
	assert.Equal(t, int64(10<<20), TierTrial.MaxFileSize())
	assert.Equal(t, int64(100<<20), TierBasic.MaxFileSize())
	assert.Equal(t, int64(500<<20), TierPro.MaxFileSize())
	assert.Equal(t, int64(0), TierEnterprise.MaxFileSize(), "enterprise is unlimited")
}

func TestActivationLimit(t *testing.T) {
	assert.Equal(t, 1, ActivationLimit(TierTrial))
	assert.Equal(t, 1, ActivationLimit(TierBasic))
	assert.Equal(t, 3, ActivationLimit(TierPro))
	assert.Equal(t, 10, ActivationLimit(TierEnterprise))
}
