package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Tier
		wantErr  bool
	}{
		{name: "lowercase", input: "free", expected: TierFree},
		{name: "uppercase with trailing space", input: "FREE ", expected: TierFree},
		{name: "surrounding whitespace", input: "  starter\t", expected: TierStarter},
		{name: "professional", input: "Professional", expected: TierProfessional},
		{name: "pro alias", input: "PRO", expected: TierProfessional},
		{name: "enterprise", input: "enterprise", expected: TierEnterprise},
		{name: "unknown", input: "premium", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "only whitespace", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, err := ParseTier(tt.input)

			if tt.wantErr {
				var invalid *InvalidTierError
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, tt.input, invalid.Value)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, tier)
		})
	}
}

func TestTier_Next(t *testing.T) {
	next, ok := TierFree.Next()
	assert.True(t, ok)
	assert.Equal(t, TierStarter, next)

	next, ok = TierStarter.Next()
	assert.True(t, ok)
	assert.Equal(t, TierProfessional, next)

	next, ok = TierProfessional.Next()
	assert.True(t, ok)
	assert.Equal(t, TierEnterprise, next)

	_, ok = TierEnterprise.Next()
	assert.False(t, ok)

	_, ok = Tier("gold").Next()
	assert.False(t, ok)
}

func TestTier_Exceeds(t *testing.T) {
	assert.True(t, TierEnterprise.Exceeds(TierFree))
	assert.True(t, TierStarter.Exceeds(TierFree))
	assert.False(t, TierFree.Exceeds(TierFree))
	assert.False(t, TierFree.Exceeds(TierProfessional))
	assert.True(t, TierFree.Exceeds(Tier("gold")))
	assert.False(t, Tier("gold").Exceeds(TierFree))
}

func TestTierNames(t *testing.T) {
	assert.Equal(t, "free, starter, professional, enterprise", TierNames())
}
