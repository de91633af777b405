// AngelaMos | 2026
// service.go

package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/siliconforge/eda-backend/internal/account"
	"github.com/siliconforge/eda-backend/internal/core"
	"github.com/siliconforge/eda-backend/internal/entitlement"
	"github.com/siliconforge/eda-backend/internal/plan"
	"github.com/siliconforge/eda-backend/internal/product"
)

const defaultCurrency = "INR"

// A purchased custom product records the premium base tier; only an
// explicit admin assignment keeps a lower tier alongside a product.
const purchasedProductTier = plan.TierPremium

type OrderStore interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// MembershipApplier is the slice of the account service the verified
// payment drives.
type MembershipApplier interface {
	ApplyMembershipChange(
		ctx context.Context,
		userID string,
		req account.MembershipChangeRequest,
	) (*account.User, error)
}

type ProductSource interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

func InvalidSignatureError() *core.AppError {
	return core.NewAppError(
		http.StatusBadRequest,
		"INVALID_SIGNATURE",
		"payment signature verification failed",
	)
}

type Service struct {
	orders    OrderStore
	gateway   OrderClient
	accounts  MembershipApplier
	products  ProductSource
	keyID     string
	keySecret string
	validate  *validator.Validate
	now       func() time.Time
}

func NewService(
	orders OrderStore,
	gateway OrderClient,
	accounts MembershipApplier,
	products ProductSource,
	keyID, keySecret string,
) *Service {
	return &Service{
		orders:    orders,
		gateway:   gateway,
		accounts:  accounts,
		products:  products,
		keyID:     keyID,
		keySecret: keySecret,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateOrder resolves what is being bought exactly once, prices it,
// and opens a gateway order pinned to that selector.
func (s *Service) CreateOrder(
	ctx context.Context,
	userID string,
	req CreateOrderRequest,
) (*CreateOrderResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	selector, err := s.selectorFromRequest(req)
	if err != nil {
		return nil, err
	}

	amount, err := s.price(ctx, selector)
	if err != nil {
		return nil, err
	}

	receipt := fmt.Sprintf("rcpt_%d", s.now().UnixMilli())
	gatewayOrder, err := s.gateway.CreateOrder(
		ctx, amount, defaultCurrency, receipt)
	if err != nil {
		return nil, core.UpstreamError("could not create payment order").
			WithCause(err)
	}

	now := s.now().UTC()
	order := &Order{
		ID:        gatewayOrder.ID,
		UserID:    userID,
		Amount:    amount,
		Currency:  defaultCurrency,
		PlanRef:   refFromSelector(selector),
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	slog.Info("payment order created",
		"order_id", order.ID,
		"user_id", userID,
		"plan_ref", order.PlanRef,
		"amount", amount,
	)

	return &CreateOrderResponse{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		KeyID:    s.keyID,
		PlanRef:  order.PlanRef,
	}, nil
}

// Verify checks the callback signature before anything else; a mismatch
// changes no state at all. On a valid signature the pinned membership
// change is applied and the order is closed out as paid.
func (s *Service) Verify(
	ctx context.Context,
	userID string,
	req VerifyRequest,
) (*VerifyResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	if !VerifySignature(
		s.keySecret, req.OrderID, req.PaymentID, req.Signature) {
		return nil, InvalidSignatureError()
	}

	order, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, core.ErrNotFound
	}
	if order.Status != StatusCreated {
		return nil, core.ValidationError(
			"order " + order.ID + " is already " + order.Status)
	}

	selector, err := selectorFromRef(order.PlanRef)
	if err != nil {
		return nil, err
	}
	if selectorValue(selector) != req.PlanOrProductID {
		return nil, core.ValidationError(
			"planOrProductId does not match the order")
	}

	change := membershipChange(selector)
	u, err := s.accounts.ApplyMembershipChange(ctx, userID, change)
	if err != nil {
		return nil, err
	}

	if err := s.orders.UpdateStatus(ctx, order.ID, StatusPaid); err != nil {
		// Membership already applied; surface the inconsistency loudly
		// rather than failing the caller's successful purchase.
		slog.Error("could not mark order paid",
			"order_id", order.ID, "error", err)
	}

	slog.Info("payment verified",
		"order_id", order.ID,
		"payment_id", req.PaymentID,
		"user_id", userID,
		"tier", u.Tier,
	)

	return &VerifyResponse{
		OrderID: order.ID,
		Status:  StatusPaid,
		Tier:    u.Tier,
	}, nil
}

func (s *Service) History(
	ctx context.Context,
	userID string,
	limit int,
) ([]Order, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.orders.ListByUser(ctx, userID, limit)
}

func (s *Service) selectorFromRequest(
	req CreateOrderRequest,
) (entitlement.Selector, error) {
	switch {
	case req.Tier != "" && req.ProductID != "":
		return entitlement.Selector{}, core.ValidationError(
			"provide either tier or productId, not both")
	case req.Tier != "":
		return entitlement.TierSelector(req.Tier)
	case req.ProductID != "":
		return entitlement.ProductSelector(req.ProductID)
	default:
		return entitlement.Selector{}, core.ValidationError(
			"either tier or productId is required")
	}
}

func (s *Service) price(
	ctx context.Context,
	selector entitlement.Selector,
) (int64, error) {
	if selector.IsTier() {
		p, ok := plan.ByTier(selector.Tier())
		if !ok || p.Price <= 0 {
			return 0, core.ValidationError(
				"tier " + selector.Tier() + " cannot be purchased")
		}
		// Gateway amounts are in the smallest currency unit.
		return p.Price * 100, nil
	}

	prod, err := s.products.GetByID(ctx, selector.ProductID())
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return 0, account.ProductNotFoundError(selector.ProductID())
		}
		return 0, err
	}
	if !prod.IsActive || prod.Price <= 0 {
		return 0, core.ValidationError(
			"membership product " + prod.ID + " cannot be purchased")
	}

	return prod.Price * 100, nil
}

func membershipChange(
	selector entitlement.Selector,
) account.MembershipChangeRequest {
	if selector.IsTier() {
		tier := selector.Tier()
		clear := ""
		return account.MembershipChangeRequest{
			Tier:            &tier,
			CustomProductID: &clear,
		}
	}

	tier := purchasedProductTier
	productID := selector.ProductID()
	return account.MembershipChangeRequest{
		Tier:            &tier,
		CustomProductID: &productID,
	}
}

func refFromSelector(selector entitlement.Selector) string {
	if selector.IsTier() {
		return "tier:" + selector.Tier()
	}
	return "product:" + selector.ProductID()
}

func selectorFromRef(ref string) (entitlement.Selector, error) {
	kind, value, ok := strings.Cut(ref, ":")
	if !ok {
		return entitlement.Selector{}, core.ValidationError(
			"malformed plan reference: " + ref)
	}

	switch kind {
	case "tier":
		return entitlement.TierSelector(value)
	case "product":
		return entitlement.ProductSelector(value)
	default:
		return entitlement.Selector{}, core.ValidationError(
			"malformed plan reference: " + ref)
	}
}

func selectorValue(selector entitlement.Selector) string {
	if selector.IsTier() {
		return selector.Tier()
	}
	return selector.ProductID()
}
