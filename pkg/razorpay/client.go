package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public Razorpay API endpoint.
const DefaultBaseURL = "https://api.razorpay.com"

var (
	// ErrNotConfigured indicates missing API credentials.
	ErrNotConfigured = errors.New("razorpay credentials not configured")
	// ErrGateway indicates the gateway rejected or failed a request.
	ErrGateway = errors.New("razorpay request failed")
)

// Config holds the gateway credentials.
type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

// OrderRequest is the payload for creating an order. Amount is in minor units.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is a gateway order.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// Client talks to the Razorpay orders API.
type Client struct {
	http      *resty.Client
	keyID     string
	keySecret string
	logger    zerolog.Logger
}

// New builds a client authenticated with the key pair.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, ErrNotConfigured
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:      httpClient,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		logger:    logger.With().Str("component", "razorpay").Logger(),
	}, nil
}

// KeyID returns the public key id clients need for checkout.
func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrder registers an order with the gateway.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	var order Order
	var failure apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&order).
		SetError(&failure).
		Post("/v1/orders")
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if resp.IsError() {
		c.logger.Warn().
			Int("status", resp.StatusCode()).
			Str("code", failure.Error.Code).
			Str("description", failure.Error.Description).
			Msg("order creation rejected")
		return Order{}, fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode(), failure.Error.Description)
	}
	if order.ID == "" {
		return Order{}, fmt.Errorf("%w: empty order id", ErrGateway)
	}

	c.logger.Debug().Str("order_id", order.ID).Int64("amount", order.Amount).Str("currency", order.Currency).Msg("order created")
	return order, nil
}

// Sign computes the checkout signature for an order and payment pair.
func (c *Client) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the checkout signature in constant time.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	expected, err := hex.DecodeString(c.Sign(orderID, paymentID))
	if err != nil {
		return false
	}
	provided, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signature)))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, provided)
}

// ToMinorUnits converts an amount to paise, cents and the like.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
