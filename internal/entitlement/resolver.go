// AngelaMos | 2026
// resolver.go

package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/siliconforge/eda-backend/internal/core"
	"github.com/siliconforge/eda-backend/internal/plan"
	"github.com/siliconforge/eda-backend/internal/product"
)

// Reason classifies a resolution outcome.
type Reason string

const (
	ReasonGranted           Reason = "Granted"
	ReasonExpiredMembership Reason = "ExpiredMembership"
	ReasonToolNotInPlan     Reason = "ToolNotInPlan"
	ReasonNoValidMembership Reason = "NoValidMembership"
)

// Source records which rule produced the decision, for logging and tests.
type Source string

const (
	SourceExpiry  Source = "expiry"
	SourceCache   Source = "cache"
	SourceProduct Source = "product"
	SourcePlan    Source = "plan"
	SourceNone    Source = "none"
)

// Decision is the outcome of resolving one (subject, tool) pair.
// Limit carries the remaining-use count (-1 unlimited, 0 none); a
// granted decision with Limit 0 must still be refused by metering
// callers, so Granted alone is never sufficient for metered tools.
type Decision struct {
	Granted bool   `json:"granted"`
	Limit   int    `json:"limit"`
	Reason  Reason `json:"reason"`
	Source  Source `json:"-"`
}

// Message renders the denial for API consumers, naming the tool and the
// plan that would unlock it.
func (d Decision) Message(tool string) string {
	switch d.Reason {
	case ReasonGranted:
		return fmt.Sprintf("access to %s granted", tool)
	case ReasonExpiredMembership:
		return fmt.Sprintf(
			"membership has expired; renew to use %s", tool)
	case ReasonToolNotInPlan:
		return fmt.Sprintf(
			"%s is not included in your current plan; upgrade to %s",
			tool, requiredTier(tool))
	default:
		return fmt.Sprintf(
			"no valid membership grants access to %s; upgrade to %s",
			tool, requiredTier(tool))
	}
}

func requiredTier(tool string) string {
	if basic, ok := plan.ByTier(plan.TierBasic); ok {
		if grant, found := basic.Grant(tool); found && grant.HasAccess {
			return plan.TierBasic
		}
	}
	return plan.TierPremium
}

// ProductSource is the catalog-store boundary the resolver reads from.
type ProductSource interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

// Resolver decides tool access from a subject's membership state. It is
// read-only: recomputing the cached snapshot on tier or product changes
// belongs to the account service, never to the resolver.
type Resolver struct {
	products ProductSource
	now      func() time.Time
}

func NewResolver(products ProductSource) *Resolver {
	return &Resolver{
		products: products,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Subject is the slice of a principal's record the resolver consults.
type Subject struct {
	ID                  string
	Tier                string
	CustomProductID     string
	MembershipExpiresAt *time.Time
	ActiveToolAccess    plan.ToolAccess
}

// Resolve applies the precedence rules in order; the first matching rule
// wins and later rules are never consulted:
//
//  1. A set, past membershipExpiresAt on a paid tier denies everything,
//     overriding the cache.
//  2. A cache entry for the tool is used verbatim.
//  3. A set customProductId is looked up; a missing tool entry in a
//     found, active product is a denial with no base-tier fallback. A
//     product that cannot be found logs a warning and falls through.
//  4. The base plan for the subject's tier is consulted.
//  5. Otherwise the subject has no valid membership.
//
// The only returned errors are infrastructure failures from the product
// store; a missing product is not an error.
func (r *Resolver) Resolve(
	ctx context.Context,
	sub Subject,
	tool string,
) (Decision, error) {
	if sub.Tier != plan.TierFree && sub.MembershipExpiresAt != nil &&
		sub.MembershipExpiresAt.Before(r.now()) {
		return Decision{
			Granted: false,
			Limit:   plan.LimitNone,
			Reason:  ReasonExpiredMembership,
			Source:  SourceExpiry,
		}, nil
	}

	if grant, ok := sub.ActiveToolAccess[tool]; ok {
		return decisionFromGrant(grant, SourceCache), nil
	}

	if sub.CustomProductID != "" {
		decision, ok, err := r.resolveProduct(ctx, sub, tool)
		if err != nil {
			return Decision{}, err
		}
		if ok {
			return decision, nil
		}
	}

	if basePlan, ok := plan.ByTier(sub.Tier); ok {
		if grant, found := basePlan.Grant(tool); found {
			return decisionFromGrant(grant, SourcePlan), nil
		}
		return Decision{
			Granted: false,
			Limit:   plan.LimitNone,
			Reason:  ReasonToolNotInPlan,
			Source:  SourcePlan,
		}, nil
	}

	return Decision{
		Granted: false,
		Limit:   plan.LimitNone,
		Reason:  ReasonNoValidMembership,
		Source:  SourceNone,
	}, nil
}

// resolveProduct returns ok=false when resolution should fall through to
// the base plan (product deleted or deactivated).
func (r *Resolver) resolveProduct(
	ctx context.Context,
	sub Subject,
	tool string,
) (Decision, bool, error) {
	p, err := r.products.GetByID(ctx, sub.CustomProductID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			slog.Warn("custom product missing, falling back to base tier",
				"user_id", sub.ID,
				"product_id", sub.CustomProductID,
				"tier", sub.Tier,
			)
			return Decision{}, false, nil
		}
		return Decision{}, false, fmt.Errorf(
			"fetch custom product %s: %w", sub.CustomProductID, err)
	}

	if !p.IsActive {
		slog.Warn("custom product inactive, falling back to base tier",
			"user_id", sub.ID,
			"product_id", sub.CustomProductID,
		)
		return Decision{}, false, nil
	}

	grant, found := p.Grant(tool)
	if !found {
		return Decision{
			Granted: false,
			Limit:   plan.LimitNone,
			Reason:  ReasonToolNotInPlan,
			Source:  SourceProduct,
		}, true, nil
	}

	return decisionFromGrant(grant, SourceProduct), true, nil
}

func decisionFromGrant(grant plan.ToolGrant, src Source) Decision {
	if !grant.HasAccess {
		return Decision{
			Granted: false,
			Limit:   plan.LimitNone,
			Reason:  ReasonToolNotInPlan,
			Source:  src,
		}
	}

	return Decision{
		Granted: true,
		Limit:   grant.Limit,
		Reason:  ReasonGranted,
		Source:  src,
	}
}
