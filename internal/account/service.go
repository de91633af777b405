// AngelaMos | 2026
// service.go

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/siliconforge/eda-backend/internal/core"
	"github.com/siliconforge/eda-backend/internal/plan"
	"github.com/siliconforge/eda-backend/internal/product"
)

// Store is the account persistence boundary the service drives.
type Store interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]User, int, error)
	UpdateProfile(ctx context.Context, id, name string) error
	UpdateMembership(
		ctx context.Context,
		id string,
		tier string,
		customProductID *string,
		expiresAt *time.Time,
		access plan.ToolAccess,
		aiUses int,
	) error
	SeedToolGrant(
		ctx context.Context,
		id, tool string,
		grant plan.ToolGrant,
	) error
	ConsumeToolUse(ctx context.Context, id, tool string) (bool, error)
	ConsumeAIUse(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// ProductSource resolves custom product references during membership
// changes. Unlike the resolver's lenient read path, a missing product
// here rejects the whole change.
type ProductSource interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

func ProductNotFoundError(id string) *core.AppError {
	return core.NewAppError(
		http.StatusUnprocessableEntity,
		"PRODUCT_NOT_FOUND",
		fmt.Sprintf("membership product %s does not exist", id),
	)
}

type Service struct {
	store    Store
	products ProductSource
	validate *validator.Validate
	now      func() time.Time
}

func NewService(store Store, products ProductSource) *Service {
	return &Service{
		store:    store,
		products: products,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) List(
	ctx context.Context,
	limit, offset int,
) ([]User, int, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, limit, offset)
}

func (s *Service) UpdateProfile(
	ctx context.Context,
	id string,
	req UpdateProfileRequest,
) (*User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	if err := s.store.UpdateProfile(ctx, id, req.Name); err != nil {
		return nil, err
	}

	return s.store.GetByID(ctx, id)
}

// ApplyMembershipChange recomputes the derived membership state and
// persists it as one document write. The cached tool access always comes
// from the effective source (custom product preferred over base plan),
// the expiry is recomputed from the effective duration, and the whole
// operation is deterministic: identical inputs at the same instant yield
// identical state, with no accumulation.
func (s *Service) ApplyMembershipChange(
	ctx context.Context,
	userID string,
	req MembershipChangeRequest,
) (*User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	tier := u.Tier
	if req.Tier != nil {
		tier = *req.Tier
	}

	productID := u.CustomProductID
	if req.CustomProductID != nil {
		if *req.CustomProductID == "" {
			productID = nil
		} else {
			productID = req.CustomProductID
		}
	}

	basePlan, ok := plan.ByTier(tier)
	if !ok {
		return nil, core.ValidationError("unknown tier: " + tier)
	}

	access := basePlan.ToolAccess
	duration := basePlan.DurationInDays

	if productID != nil {
		p, perr := s.products.GetByID(ctx, *productID)
		if perr != nil {
			if errors.Is(perr, core.ErrNotFound) {
				// Strict by design: an explicit admin or payment action
				// must not silently downgrade to the base tier.
				return nil, ProductNotFoundError(*productID)
			}
			return nil, perr
		}
		if !p.IsActive {
			return nil, core.ValidationError(
				"membership product " + *productID + " is not active")
		}

		access = p.ToolAccess
		duration = p.DurationInDays
	}

	var expiresAt *time.Time
	if duration != plan.DurationPerpetual {
		t := s.now().UTC().Add(time.Duration(duration) * 24 * time.Hour)
		expiresAt = &t
	}

	snapshot := make(plan.ToolAccess, len(access))
	for tool, grant := range access {
		snapshot[tool] = grant
	}

	err = s.store.UpdateMembership(
		ctx, userID, tier, productID, expiresAt, snapshot, basePlan.AIUses)
	if err != nil {
		return nil, err
	}

	slog.Info("membership changed",
		"user_id", userID,
		"tier", tier,
		"custom_product_id", productID,
		"expires_at", expiresAt,
	)

	return s.store.GetByID(ctx, userID)
}

// SeedToolGrant materializes a cache entry for a grant that resolution
// produced outside the cache (base plan after a deleted product, or a
// product edited since the last recompute), so the metered decrement
// has a counter to spend. An existing entry always wins; concurrent
// seeds are harmless.
func (s *Service) SeedToolGrant(
	ctx context.Context,
	userID, tool string,
	grant plan.ToolGrant,
) error {
	return s.store.SeedToolGrant(ctx, userID, tool, grant)
}

// ConsumeToolUse spends one metered use. Unlimited grants are never
// decremented; an exhausted counter denies even though the cached
// hasAccess flag still reads true.
func (s *Service) ConsumeToolUse(
	ctx context.Context,
	userID, tool string,
	limit int,
) error {
	if limit == plan.LimitUnlimited {
		return nil
	}

	consumed, err := s.store.ConsumeToolUse(ctx, userID, tool)
	if err != nil {
		return err
	}
	if !consumed {
		return core.ErrUsageExhausted
	}

	return nil
}

// ConsumeAIUse spends one AI chat use. Only the free tier is metered;
// a paid membership chats without limit regardless of what the stored
// counter happens to say.
func (s *Service) ConsumeAIUse(ctx context.Context, userID string) error {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if u.Tier != plan.TierFree {
		return nil
	}
	if u.AIUsesRemaining == plan.LimitUnlimited {
		return nil
	}

	consumed, err := s.store.ConsumeAIUse(ctx, userID)
	if err != nil {
		return err
	}
	if !consumed {
		return core.ErrUsageExhausted
	}

	return nil
}

// Delete removes an account permanently. Admins cannot delete their own
// account through the admin surface.
func (s *Service) Delete(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return core.ForbiddenError("cannot delete your own account here")
	}

	return s.store.Delete(ctx, targetID)
}

// DeleteSelf removes the caller's own account.
func (s *Service) DeleteSelf(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}
