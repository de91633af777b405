// AngelaMos | 2026
// service_test.go

package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siliconforge/eda-backend/internal/account"
	"github.com/siliconforge/eda-backend/internal/core"
	"github.com/siliconforge/eda-backend/internal/plan"
	"github.com/siliconforge/eda-backend/internal/product"
)

const (
	testSecret = "secret-key"
	testUserID = "11111111-1111-4111-8111-111111111111"
)

type fakeOrders struct {
	orders map[string]*Order
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: map[string]*Order{}}
}

func (f *fakeOrders) Create(_ context.Context, order *Order) error {
	clone := *order
	f.orders[order.ID] = &clone
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (*Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	clone := *order
	return &clone, nil
}

func (f *fakeOrders) ListByUser(
	_ context.Context,
	userID string,
	limit int,
) ([]Order, error) {
	out := []Order{}
	for _, order := range f.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (f *fakeOrders) UpdateStatus(
	_ context.Context,
	id, status string,
) error {
	order, ok := f.orders[id]
	if !ok || order.Status != StatusCreated {
		return core.ErrNotFound
	}
	order.Status = status
	return nil
}

type fakeGateway struct {
	nextID string
	calls  int
}

func (f *fakeGateway) CreateOrder(
	_ context.Context,
	amount int64,
	currency, receipt string,
) (*GatewayOrder, error) {
	f.calls++
	return &GatewayOrder{
		ID:       f.nextID,
		Amount:   amount,
		Currency: currency,
		Status:   "created",
	}, nil
}

type fakeApplier struct {
	applied []account.MembershipChangeRequest
	tier    string
}

func (f *fakeApplier) ApplyMembershipChange(
	_ context.Context,
	userID string,
	req account.MembershipChangeRequest,
) (*account.User, error) {
	f.applied = append(f.applied, req)
	tier := f.tier
	if req.Tier != nil {
		tier = *req.Tier
	}
	return &account.User{ID: userID, Tier: tier}, nil
}

type fakeCatalog struct {
	products map[string]*product.Product
}

func (f *fakeCatalog) GetByID(
	_ context.Context,
	id string,
) (*product.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return p, nil
}

type paymentFixture struct {
	svc     *Service
	orders  *fakeOrders
	gateway *fakeGateway
	applier *fakeApplier
	catalog *fakeCatalog
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		orders:  newFakeOrders(),
		gateway: &fakeGateway{nextID: "order_abc"},
		applier: &fakeApplier{tier: plan.TierFree},
		catalog: &fakeCatalog{products: map[string]*product.Product{}},
	}
	f.svc = NewService(
		f.orders, f.gateway, f.applier, f.catalog, "key_test", testSecret)
	return f
}

func TestCreateOrderForTier(t *testing.T) {
	f := newPaymentFixture()

	resp, err := f.svc.CreateOrder(context.Background(), testUserID,
		CreateOrderRequest{Tier: plan.TierBasic})
	require.NoError(t, err)

	assert.Equal(t, "order_abc", resp.OrderID)
	assert.Equal(t, int64(999*100), resp.Amount, "amount in paise")
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, "key_test", resp.KeyID)
	assert.Equal(t, "tier:basic", resp.PlanRef)

	stored, err := f.orders.GetByID(context.Background(), "order_abc")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, stored.Status)
	assert.Equal(t, testUserID, stored.UserID)
}

func TestCreateOrderForProduct(t *testing.T) {
	f := newPaymentFixture()
	f.catalog.products["prod-X"] = &product.Product{
		ID: "prod-X", Price: 2500, IsActive: true,
	}

	resp, err := f.svc.CreateOrder(context.Background(), testUserID,
		CreateOrderRequest{ProductID: "prod-X"})
	require.NoError(t, err)

	assert.Equal(t, int64(2500*100), resp.Amount)
	assert.Equal(t, "product:prod-X", resp.PlanRef)
}

func TestCreateOrderRejectsFreeTier(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.svc.CreateOrder(context.Background(), testUserID,
		CreateOrderRequest{Tier: plan.TierFree})
	require.Error(t, err)
	assert.Equal(t, 0, f.gateway.calls)
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.svc.CreateOrder(context.Background(), testUserID,
		CreateOrderRequest{ProductID: "ghost"})
	require.Error(t, err)

	var appErr *core.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PRODUCT_NOT_FOUND", appErr.Code)
	assert.Equal(t, 0, f.gateway.calls)
}

func TestCreateOrderRejectsBothSelectors(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.svc.CreateOrder(context.Background(), testUserID,
		CreateOrderRequest{Tier: plan.TierBasic, ProductID: "prod-X"})
	require.Error(t, err)
	assert.Equal(t, 0, f.gateway.calls)
}

func verifiedOrder(t *testing.T, f *paymentFixture, planRef string) *Order {
	t.Helper()
	order := &Order{
		ID:        "order_abc",
		UserID:    testUserID,
		Amount:    99900,
		Currency:  "INR",
		PlanRef:   planRef,
		Status:    StatusCreated,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, f.orders.Create(context.Background(), order))
	return order
}

func TestVerifyAppliesTierPurchase(t *testing.T) {
	f := newPaymentFixture()
	verifiedOrder(t, f, "tier:basic")

	resp, err := f.svc.Verify(context.Background(), testUserID, VerifyRequest{
		OrderID:         "order_abc",
		PaymentID:       "pay_1",
		Signature:       Sign(testSecret, "order_abc", "pay_1"),
		PlanOrProductID: "basic",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPaid, resp.Status)
	assert.Equal(t, plan.TierBasic, resp.Tier)

	require.Len(t, f.applier.applied, 1)
	change := f.applier.applied[0]
	require.NotNil(t, change.Tier)
	assert.Equal(t, plan.TierBasic, *change.Tier)
	require.NotNil(t, change.CustomProductID)
	assert.Empty(t, *change.CustomProductID, "tier purchase clears any product")

	stored, _ := f.orders.GetByID(context.Background(), "order_abc")
	assert.Equal(t, StatusPaid, stored.Status)
}

func TestVerifyProductPurchaseRecordsPremiumTier(t *testing.T) {
	f := newPaymentFixture()
	verifiedOrder(t, f, "product:prod-X")

	_, err := f.svc.Verify(context.Background(), testUserID, VerifyRequest{
		OrderID:         "order_abc",
		PaymentID:       "pay_1",
		Signature:       Sign(testSecret, "order_abc", "pay_1"),
		PlanOrProductID: "prod-X",
	})
	require.NoError(t, err)

	require.Len(t, f.applier.applied, 1)
	change := f.applier.applied[0]
	require.NotNil(t, change.Tier)
	assert.Equal(t, plan.TierPremium, *change.Tier)
	require.NotNil(t, change.CustomProductID)
	assert.Equal(t, "prod-X", *change.CustomProductID)
}

func TestVerifyBadSignatureChangesNothing(t *testing.T) {
	f := newPaymentFixture()
	verifiedOrder(t, f, "tier:basic")

	_, err := f.svc.Verify(context.Background(), testUserID, VerifyRequest{
		OrderID:         "order_abc",
		PaymentID:       "pay_1",
		Signature:       Sign("wrong-secret", "order_abc", "pay_1"),
		PlanOrProductID: "basic",
	})
	require.Error(t, err)

	var appErr *core.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_SIGNATURE", appErr.Code)

	assert.Empty(t, f.applier.applied, "no membership mutation")
	stored, _ := f.orders.GetByID(context.Background(), "order_abc")
	assert.Equal(t, StatusCreated, stored.Status, "order untouched")
}

func TestVerifyMismatchedPlanRef(t *testing.T) {
	f := newPaymentFixture()
	verifiedOrder(t, f, "tier:basic")

	_, err := f.svc.Verify(context.Background(), testUserID, VerifyRequest{
		OrderID:         "order_abc",
		PaymentID:       "pay_1",
		Signature:       Sign(testSecret, "order_abc", "pay_1"),
		PlanOrProductID: "premium",
	})
	require.Error(t, err)
	assert.Empty(t, f.applier.applied)
}

func TestVerifyForeignOrderReadsNotFound(t *testing.T) {
	f := newPaymentFixture()
	order := verifiedOrder(t, f, "tier:basic")
	order.UserID = "someone-else"
	f.orders.orders[order.ID].UserID = "someone-else"

	_, err := f.svc.Verify(context.Background(), testUserID, VerifyRequest{
		OrderID:         "order_abc",
		PaymentID:       "pay_1",
		Signature:       Sign(testSecret, "order_abc", "pay_1"),
		PlanOrProductID: "basic",
	})
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestVerifyTwiceRejectsSecondAttempt(t *testing.T) {
	f := newPaymentFixture()
	verifiedOrder(t, f, "tier:basic")

	req := VerifyRequest{
		OrderID:         "order_abc",
		PaymentID:       "pay_1",
		Signature:       Sign(testSecret, "order_abc", "pay_1"),
		PlanOrProductID: "basic",
	}

	_, err := f.svc.Verify(context.Background(), testUserID, req)
	require.NoError(t, err)

	_, err = f.svc.Verify(context.Background(), testUserID, req)
	require.Error(t, err)
	assert.Len(t, f.applier.applied, 1, "membership applied exactly once")
}
