// AngelaMos | 2026
// resolver_test.go

package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siliconforge/eda-backend/internal/core"
	"github.com/siliconforge/eda-backend/internal/plan"
	"github.com/siliconforge/eda-backend/internal/product"
)

type fakeProductSource struct {
	products map[string]*product.Product
	err      error
	calls    int
}

func (f *fakeProductSource) GetByID(
	_ context.Context,
	id string,
) (*product.Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return p, nil
}

func newResolver(src *fakeProductSource, now time.Time) *Resolver {
	return NewResolver(src).WithClock(func() time.Time { return now })
}

func TestExpiredMembershipOverridesCache(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)

	sub := Subject{
		ID:                  "u1",
		Tier:                plan.TierPremium,
		MembershipExpiresAt: &expired,
		ActiveToolAccess: plan.ToolAccess{
			plan.ToolPCBDesign:          {HasAccess: true, Limit: plan.LimitUnlimited},
			plan.ToolChipSynthesis:      {HasAccess: true, Limit: plan.LimitUnlimited},
			plan.ToolPlatformSimulation: {HasAccess: true, Limit: plan.LimitUnlimited},
		},
	}

	r := newResolver(&fakeProductSource{}, now)

	for _, tool := range plan.Tools() {
		d, err := r.Resolve(context.Background(), sub, tool)
		require.NoError(t, err)
		assert.False(t, d.Granted, "tool %s", tool)
		assert.Equal(t, ReasonExpiredMembership, d.Reason)
		assert.Equal(t, SourceExpiry, d.Source)
	}
}

func TestFreeTierNeverExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	sub := Subject{
		ID:                  "u1",
		Tier:                plan.TierFree,
		MembershipExpiresAt: &past,
		ActiveToolAccess: plan.ToolAccess{
			plan.ToolPCBDesign: {HasAccess: true, Limit: 3},
		},
	}

	r := newResolver(&fakeProductSource{}, now)

	d, err := r.Resolve(context.Background(), sub, plan.ToolPCBDesign)
	require.NoError(t, err)
	assert.True(t, d.Granted)
	assert.Equal(t, SourceCache, d.Source)
}

func TestCacheEntryUsedVerbatim(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeProductSource{}

	sub := Subject{
		ID:              "u1",
		Tier:            plan.TierBasic,
		CustomProductID: "prod-x",
		ActiveToolAccess: plan.ToolAccess{
			plan.ToolPCBDesign: {HasAccess: true, Limit: 2},
		},
	}

	r := newResolver(src, now)

	d, err := r.Resolve(context.Background(), sub, plan.ToolPCBDesign)
	require.NoError(t, err)
	assert.True(t, d.Granted)
	assert.Equal(t, 2, d.Limit)
	assert.Equal(t, SourceCache, d.Source)
	assert.Zero(t, src.calls, "cache hit must not fetch the product")
}

func TestGrantedWithZeroLimit(t *testing.T) {
	// The cache says access is allowed but the remaining count is spent.
	// Resolution still reports granted with limit 0; metering callers
	// must refuse execution on their own.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sub := Subject{
		ID:   "u1",
		Tier: plan.TierBasic,
		ActiveToolAccess: plan.ToolAccess{
			plan.ToolPCBDesign: {HasAccess: true, Limit: 0},
		},
	}

	r := newResolver(&fakeProductSource{}, now)

	d, err := r.Resolve(context.Background(), sub, plan.ToolPCBDesign)
	require.NoError(t, err)
	assert.True(t, d.Granted)
	assert.Equal(t, 0, d.Limit)
}

func TestProductMissingToolDeniesWithoutFallback(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeProductSource{
		products: map[string]*product.Product{
			"prod-x": {
				ID:       "prod-x",
				IsActive: true,
				ToolAccess: plan.ToolAccess{
					plan.ToolChipSynthesis: {HasAccess: true, Limit: 10},
				},
			},
		},
	}

	// Premium base tier would grant pcbDesignTool, but the custom product
	// omits it, and the product decision is final.
	sub := Subject{
		ID:              "u1",
		Tier:            plan.TierPremium,
		CustomProductID: "prod-x",
	}

	r := newResolver(src, now)

	d, err := r.Resolve(context.Background(), sub, plan.ToolPCBDesign)
	require.NoError(t, err)
	assert.False(t, d.Granted)
	assert.Equal(t, ReasonToolNotInPlan, d.Reason)
	assert.Equal(t, SourceProduct, d.Source)
}

func TestProductGrant(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeProductSource{
		products: map[string]*product.Product{
			"prod-x": {
				ID:       "prod-x",
				IsActive: true,
				ToolAccess: plan.ToolAccess{
					plan.ToolChipSynthesis: {HasAccess: true, Limit: 10},
				},
			},
		},
	}

	sub := Subject{
		ID:              "u1",
		Tier:            plan.TierFree,
		CustomProductID: "prod-x",
	}

	r := newResolver(src, now)

	d, err := r.Resolve(context.Background(), sub, plan.ToolChipSynthesis)
	require.NoError(t, err)
	assert.True(t, d.Granted)
	assert.Equal(t, 10, d.Limit)
	assert.Equal(t, SourceProduct, d.Source)
}

func TestDeletedProductFallsThroughToTier(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeProductSource{}

	sub := Subject{
		ID:              "u1",
		Tier:            plan.TierBasic,
		CustomProductID: "prod-gone",
	}

	r := newResolver(src, now)

	d, err := r.Resolve(context.Background(), sub, plan.ToolPCBDesign)
	require.NoError(t, err)
	assert.True(t, d.Granted, "must fall back to basic tier, not error")
	assert.Equal(t, 5, d.Limit)
	assert.Equal(t, SourcePlan, d.Source)
}

func TestInactiveProductFallsThroughToTier(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeProductSource{
		products: map[string]*product.Product{
			"prod-x": {
				ID:       "prod-x",
				IsActive: false,
				ToolAccess: plan.ToolAccess{
					plan.ToolPCBDesign: {HasAccess: true, Limit: 99},
				},
			},
		},
	}

	sub := Subject{
		ID:              "u1",
		Tier:            plan.TierFree,
		CustomProductID: "prod-x",
	}

	r := newResolver(src, now)

	d, err := r.Resolve(context.Background(), sub, plan.ToolPCBDesign)
	require.NoError(t, err)
	assert.False(t, d.Granted)
	assert.Equal(t, SourcePlan, d.Source)
}

func TestProductStoreFailurePropagates(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeProductSource{err: errors.New("connection refused")}

	sub := Subject{
		ID:              "u1",
		Tier:            plan.TierBasic,
		CustomProductID: "prod-x",
	}

	r := newResolver(src, now)

	_, err := r.Resolve(context.Background(), sub, plan.ToolPCBDesign)
	require.Error(t, err)
}

func TestBarePlanResolutionMatchesCatalog(t *testing.T) {
	// Empty cache, no product: resolution must equal a direct catalog
	// lookup for every tier/tool pair.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newResolver(&fakeProductSource{}, now)

	for _, tier := range plan.Tiers() {
		basePlan, ok := plan.ByTier(tier)
		require.True(t, ok)

		for _, tool := range plan.Tools() {
			sub := Subject{ID: "u1", Tier: tier}

			d, err := r.Resolve(context.Background(), sub, tool)
			require.NoError(t, err)

			grant, found := basePlan.Grant(tool)
			require.True(t, found)

			assert.Equal(t, grant.HasAccess, d.Granted,
				"tier=%s tool=%s", tier, tool)
			if grant.HasAccess {
				assert.Equal(t, grant.Limit, d.Limit,
					"tier=%s tool=%s", tier, tool)
			}
			assert.Equal(t, SourcePlan, d.Source)
		}
	}
}

func TestFreeTierDeniesPCBDesign(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newResolver(&fakeProductSource{}, now)

	sub := Subject{ID: "u1", Tier: plan.TierFree}

	d, err := r.Resolve(context.Background(), sub, plan.ToolPCBDesign)
	require.NoError(t, err)
	assert.False(t, d.Granted)
	assert.Equal(t, ReasonToolNotInPlan, d.Reason)
}

func TestUnknownTierDeniesNoValidMembership(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newResolver(&fakeProductSource{}, now)

	sub := Subject{ID: "u1", Tier: "legacy-gold"}

	d, err := r.Resolve(context.Background(), sub, plan.ToolPCBDesign)
	require.NoError(t, err)
	assert.False(t, d.Granted)
	assert.Equal(t, ReasonNoValidMembership, d.Reason)
	assert.Equal(t, SourceNone, d.Source)
}

func TestDenialMessageNamesToolAndTier(t *testing.T) {
	d := Decision{Reason: ReasonToolNotInPlan}

	msg := d.Message(plan.ToolPCBDesign)
	assert.Contains(t, msg, plan.ToolPCBDesign)
	assert.Contains(t, msg, plan.TierBasic)

	msg = d.Message(plan.ToolChipSynthesis)
	assert.Contains(t, msg, plan.TierPremium)
}

func TestSelector(t *testing.T) {
	s, err := TierSelector(plan.TierBasic)
	require.NoError(t, err)
	assert.True(t, s.IsTier())
	assert.Equal(t, plan.TierBasic, s.Tier())
	assert.Empty(t, s.ProductID())

	_, err = TierSelector("gold")
	require.Error(t, err)

	s, err = ProductSelector("prod-x")
	require.NoError(t, err)
	assert.True(t, s.IsProduct())
	assert.Equal(t, "prod-x", s.ProductID())
	assert.Empty(t, s.Tier())

	_, err = ProductSelector("")
	require.Error(t, err)

	assert.True(t, Selector{}.IsZero())
}
