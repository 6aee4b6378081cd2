package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aravindkp/shopsphere-backend/pkg/config"
	pkgerrors "github.com/aravindkp/shopsphere-backend/pkg/errors"
)

// Gateway is the payment-provider surface the checkout flow depends on.
// The production implementation talks to Razorpay; tests swap in stubs.
type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	VerifySignature(orderRef, paymentRef, signature string) bool
}

// CreateOrderRequest asks the provider to open a payment intent for the
// given amount in minor units.
type CreateOrderRequest struct {
	AmountPaise int
	Currency    string
	Receipt     string
}

// Order is the provider-side order handle the client app pays against.
type Order struct {
	ID          string `json:"id"`
	AmountPaise int    `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

type Client struct {
	http      *http.Client
	baseURL   string
	keyID     string
	keySecret string
}

func NewClient(cfg config.GatewayConfig) (*Client, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("gateway: key id and secret are required")
	}
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		baseURL:   cfg.BaseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
	}, nil
}

// CreateOrder opens a provider order. Amounts are minor units (paise);
// the currency defaults to INR.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.Currency == "" {
		req.Currency = "INR"
	}
	payload, err := json.Marshal(map[string]any{
		"amount":   req.AmountPaise,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway order")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("payment gateway returned %d", resp.StatusCode)).
			WithDetails(map[string]any{"body": string(body)})
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway order")
	}
	if order.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway order missing id")
	}
	return &order, nil
}

// VerifySignature checks the callback signature the provider computes as
// HMAC-SHA256(orderRef + "|" + paymentRef) with the key secret.
func (c *Client) VerifySignature(orderRef, paymentRef, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
