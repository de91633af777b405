// AngelaMos | 2026
// plan_test.go

package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByTier(t *testing.T) {
	for _, tier := range Tiers() {
		p, ok := ByTier(tier)
		require.True(t, ok, "tier %s must exist", tier)
		assert.Equal(t, tier, p.Name)
	}

	_, ok := ByTier("enterprise")
	assert.False(t, ok)
}

func TestFreeTierGrantsNothing(t *testing.T) {
	free, ok := ByTier(TierFree)
	require.True(t, ok)

	for _, tool := range Tools() {
		grant, found := free.Grant(tool)
		require.True(t, found, "free plan must have an entry for %s", tool)
		assert.False(t, grant.HasAccess)
		assert.Equal(t, LimitNone, grant.Limit)
	}

	assert.Equal(t, DurationPerpetual, free.DurationInDays)
	assert.EqualValues(t, 0, free.Price)
}

func TestBasicTierGrantsPCBOnly(t *testing.T) {
	basic, ok := ByTier(TierBasic)
	require.True(t, ok)

	pcb, found := basic.Grant(ToolPCBDesign)
	require.True(t, found)
	assert.True(t, pcb.HasAccess)
	assert.Equal(t, 5, pcb.Limit)

	chip, found := basic.Grant(ToolChipSynthesis)
	require.True(t, found)
	assert.False(t, chip.HasAccess)

	sim, found := basic.Grant(ToolPlatformSimulation)
	require.True(t, found)
	assert.False(t, sim.HasAccess)
}

func TestPremiumTierGrantsEverythingUnlimited(t *testing.T) {
	premium, ok := ByTier(TierPremium)
	require.True(t, ok)

	for _, tool := range Tools() {
		grant, found := premium.Grant(tool)
		require.True(t, found)
		assert.True(t, grant.HasAccess)
		assert.Equal(t, LimitUnlimited, grant.Limit)
	}
}

func TestGrantUnknownTool(t *testing.T) {
	premium, ok := ByTier(TierPremium)
	require.True(t, ok)

	_, found := premium.Grant("quantumRouter")
	assert.False(t, found)
}

func TestIsTool(t *testing.T) {
	for _, tool := range Tools() {
		assert.True(t, IsTool(tool))
	}
	assert.False(t, IsTool(""))
	assert.False(t, IsTool("pcbdesigntool"))
}
