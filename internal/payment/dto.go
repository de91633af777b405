// AngelaMos | 2026
// dto.go

package payment

// CreateOrderRequest buys either a base tier or a custom membership
// product. Exactly one of the two fields must be set.
type CreateOrderRequest struct {
	Tier      string `json:"tier" validate:"omitempty,oneof=basic premium"`
	ProductID string `json:"productId" validate:"omitempty,min=1"`
}

type CreateOrderResponse struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"keyId"`
	PlanRef  string `json:"planRef"`
}

// VerifyRequest is the gateway checkout callback. PlanOrProductID is
// what the client believes it bought; it must agree with the order's
// recorded plan_ref.
type VerifyRequest struct {
	OrderID         string `json:"orderId" validate:"required"`
	PaymentID       string `json:"paymentId" validate:"required"`
	Signature       string `json:"signature" validate:"required"`
	PlanOrProductID string `json:"planOrProductId" validate:"required"`
}

type VerifyResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Tier    string `json:"tier"`
}
