// AngelaMos | 2026
// plan.go

package plan

// Tool names form the stable vocabulary shared by plans, products, and
// the per-user entitlement cache.
const (
	ToolPCBDesign          = "pcbDesignTool"
	ToolChipSynthesis      = "chipSynthesisTool"
	ToolPlatformSimulation = "platformSimulationTool"
)

const (
	TierFree    = "free"
	TierBasic   = "basic"
	TierPremium = "premium"
)

// LimitUnlimited and LimitNone are the sentinel values of a grant limit.
// Any positive value is a remaining-use count.
const (
	LimitUnlimited = -1
	LimitNone      = 0
)

// DurationPerpetual marks a plan or product that never expires.
const DurationPerpetual = -1

// ToolGrant is one entry of a tool-access mapping: whether the tool is
// reachable at all, and how many uses remain (-1 unlimited, 0 none).
type ToolGrant struct {
	HasAccess bool `json:"hasAccess" db:"hasAccess"`
	Limit     int  `json:"limit" db:"limit"`
}

// ToolAccess maps tool name to its grant.
type ToolAccess map[string]ToolGrant

// Plan is a compiled-in base membership tier.
type Plan struct {
	Name           string
	Price          int64
	DurationInDays int
	ToolAccess     ToolAccess
	AIUses         int
}

// Grant reports the plan's grant for a tool. The second return is false
// when the plan has no entry for the tool at all.
func (p Plan) Grant(tool string) (ToolGrant, bool) {
	grant, ok := p.ToolAccess[tool]
	return grant, ok
}

var catalog = map[string]Plan{
	TierFree: {
		Name:           TierFree,
		Price:          0,
		DurationInDays: DurationPerpetual,
		ToolAccess: ToolAccess{
			ToolPCBDesign:          {HasAccess: false, Limit: LimitNone},
			ToolChipSynthesis:      {HasAccess: false, Limit: LimitNone},
			ToolPlatformSimulation: {HasAccess: false, Limit: LimitNone},
		},
		AIUses: 25,
	},
	TierBasic: {
		Name:           TierBasic,
		Price:          999,
		DurationInDays: 30,
		ToolAccess: ToolAccess{
			ToolPCBDesign:          {HasAccess: true, Limit: 5},
			ToolChipSynthesis:      {HasAccess: false, Limit: LimitNone},
			ToolPlatformSimulation: {HasAccess: false, Limit: LimitNone},
		},
		AIUses: 100,
	},
	TierPremium: {
		Name:           TierPremium,
		Price:          1999,
		DurationInDays: 30,
		ToolAccess: ToolAccess{
			ToolPCBDesign:          {HasAccess: true, Limit: LimitUnlimited},
			ToolChipSynthesis:      {HasAccess: true, Limit: LimitUnlimited},
			ToolPlatformSimulation: {HasAccess: true, Limit: LimitUnlimited},
		},
		AIUses: LimitUnlimited,
	},
}

// ByTier looks up a base plan by tier name.
func ByTier(tier string) (Plan, bool) {
	p, ok := catalog[tier]
	return p, ok
}

// Tiers returns the known tier names.
func Tiers() []string {
	return []string{TierFree, TierBasic, TierPremium}
}

// IsTier reports whether name is a known base tier.
func IsTier(name string) bool {
	_, ok := catalog[name]
	return ok
}

// Tools returns every tool name the platform knows about.
func Tools() []string {
	return []string{ToolPCBDesign, ToolChipSynthesis, ToolPlatformSimulation}
}

// IsTool reports whether name is a known tool.
func IsTool(name string) bool {
	switch name {
	case ToolPCBDesign, ToolChipSynthesis, ToolPlatformSimulation:
		return true
	}
	return false
}
