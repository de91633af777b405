// AngelaMos | 2026
// client.go

package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/siliconforge/eda-backend/internal/config"
	"github.com/siliconforge/eda-backend/internal/core"
)

// OrderClient is the payment-gateway boundary. Only order creation
// crosses it; signature verification happens in-process.
type OrderClient interface {
	CreateOrder(
		ctx context.Context,
		amount int64,
		currency, receipt string,
	) (*GatewayOrder, error)
}

// GatewayOrder is the gateway's view of a created order.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// RazorpayClient talks to the Razorpay orders API with basic auth.
type RazorpayClient struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
}

func NewRazorpayClient(cfg config.PaymentConfig) *RazorpayClient {
	return &RazorpayClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    cfg.BaseURL,
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
	}
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

func (c *RazorpayClient) CreateOrder(
	ctx context.Context,
	amount int64,
	currency, receipt string,
) (*GatewayOrder, error) {
	payload, err := json.Marshal(createOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf(
			"call payment gateway: %w: %w", core.ErrUpstream, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only response body

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"payment gateway returned %d: %w", resp.StatusCode, core.ErrUpstream)
	}

	var order GatewayOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}

	if order.ID == "" {
		return nil, fmt.Errorf("gateway order has no id: %w", core.ErrUpstream)
	}

	return &order, nil
}
