package razorpay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{KeyID: "rzp_test"}, zerolog.New(io.Discard))
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestCreateOrderPostsWithBasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "rzp_test", user)
		require.Equal(t, "secret", pass)

		var req OrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, int64(89910), req.Amount)
		require.Equal(t, "INR", req.Currency)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_123","amount":89910,"currency":"INR","status":"created"}`))
	}))
	defer server.Close()

	client, err := New(Config{KeyID: "rzp_test", KeySecret: "secret", BaseURL: server.URL}, zerolog.New(io.Discard))
	require.NoError(t, err)

	order, err := client.CreateOrder(context.Background(), OrderRequest{Amount: ToMinorUnits(899.1), Currency: "INR"})
	require.NoError(t, err)
	require.Equal(t, "order_123", order.ID)
	require.Equal(t, "created", order.Status)
}

func TestCreateOrderSurfacesGatewayErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	}))
	defer server.Close()

	client, err := New(Config{KeyID: "rzp_test", KeySecret: "secret", BaseURL: server.URL}, zerolog.New(io.Discard))
	require.NoError(t, err)

	_, err = client.CreateOrder(context.Background(), OrderRequest{Amount: 1, Currency: "INR"})
	require.ErrorIs(t, err, ErrGateway)
	require.Contains(t, err.Error(), "amount too small")
}

func TestVerifySignature(t *testing.T) {
	client, err := New(Config{KeyID: "rzp_test", KeySecret: "secret"}, zerolog.New(io.Discard))
	require.NoError(t, err)

	signature := client.Sign("order_123", "pay_456")
	require.Len(t, signature, 64)
	require.True(t, client.VerifySignature("order_123", "pay_456", signature))
	require.False(t, client.VerifySignature("order_123", "pay_789", signature))
	require.False(t, client.VerifySignature("order_123", "pay_456", "not-hex"))
}

func TestToMinorUnits(t *testing.T) {
	require.Equal(t, int64(89910), ToMinorUnits(899.1))
	require.Equal(t, int64(0), ToMinorUnits(0))
}
