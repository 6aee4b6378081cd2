package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aravindkp/shopsphere-backend/pkg/config"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(config.GatewayConfig{
		KeyID:     "rzp_test_key",
		KeySecret: "rzp_test_secret",
		BaseURL:   baseURL,
		Timeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test_key" || pass != "rzp_test_secret" {
			t.Error("missing or wrong basic auth")
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["amount"].(float64) != 250000 {
			t.Errorf("expected amount 250000, got %v", body["amount"])
		}
		if body["currency"].(string) != "INR" {
			t.Errorf("expected currency INR, got %v", body["currency"])
		}

		json.NewEncoder(w).Encode(Order{
			ID:          "order_Nxq1",
			AmountPaise: 250000,
			Currency:    "INR",
			Status:      "created",
		})
	}))
	defer srv.Close()

	order, err := testClient(t, srv.URL).CreateOrder(context.Background(), CreateOrderRequest{
		AmountPaise: 250000,
		Receipt:     "ORD-1001",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != "order_Nxq1" {
		t.Fatalf("expected order_Nxq1, got %s", order.ID)
	}
}

func TestCreateOrderProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).CreateOrder(context.Background(), CreateOrderRequest{AmountPaise: 100})
	if err == nil {
		t.Fatal("expected error from provider")
	}
}

func TestVerifySignature(t *testing.T) {
	client := testClient(t, "http://unused")

	mac := hmac.New(sha256.New, []byte("rzp_test_secret"))
	mac.Write([]byte("order_Nxq1|pay_Nxq2"))
	good := hex.EncodeToString(mac.Sum(nil))

	if !client.VerifySignature("order_Nxq1", "pay_Nxq2", good) {
		t.Fatal("expected valid signature to verify")
	}
	if client.VerifySignature("order_Nxq1", "pay_Nxq2", "deadbeef") {
		t.Fatal("expected tampered signature to fail")
	}
	if client.VerifySignature("order_other", "pay_Nxq2", good) {
		t.Fatal("expected signature for another order to fail")
	}
}
