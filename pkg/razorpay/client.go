package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rzpsdk "github.com/razorpay/razorpay-go"
	rzputils "github.com/razorpay/razorpay-go/utils"
	"github.com/shopspring/decimal"

	"github.com/vendorahq/vendora-backend/pkg/config"
)

// Client wraps the Razorpay SDK behind an injectable object so services and
// tests never touch package-level state.
type Client struct {
	api           *rzpsdk.Client
	keySecret     string
	webhookSecret string
	currency      string
}

// Order is the subset of the gateway order we keep.
type Order struct {
	ID       string
	Amount   int64
	Currency string
}

// RefundResult is the subset of the gateway refund response we keep.
type RefundResult struct {
	ID     string
	Status string
	Raw    map[string]interface{}
}

// New builds the gateway client from configuration.
func New(cfg config.RazorpayConfig) (*Client, error) {
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, errors.New("razorpay key id and secret are required")
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "INR"
	}
	return &Client{
		api:           rzpsdk.NewClient(cfg.KeyID, cfg.KeySecret),
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
	}, nil
}

// ToMinorUnits converts a rupee amount to paise. Amounts are stored with two
// decimal places so the conversion is exact.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

// CreateOrder registers a gateway order for the given amount.
func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string, notes map[string]interface{}) (*Order, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("order amount must be positive, got %s", amount)
	}

	data := map[string]interface{}{
		"amount":   ToMinorUnits(amount),
		"currency": c.currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	body, err := c.api.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, errors.New("razorpay create order: response missing id")
	}
	return &Order{
		ID:       id,
		Amount:   ToMinorUnits(amount),
		Currency: c.currency,
	}, nil
}

// VerifyPaymentSignature checks the checkout callback HMAC.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}
	return rzputils.VerifyPaymentSignature(params, signature, c.keySecret)
}

// VerifyWebhookSignature checks the webhook HMAC over the raw body.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c.webhookSecret == "" || signature == "" {
		return false
	}
	return rzputils.VerifyWebhookSignature(string(body), signature, c.webhookSecret)
}

// Refund issues a full or partial refund against a captured payment.
func (c *Client) Refund(ctx context.Context, paymentID string, amount decimal.Decimal, notes map[string]interface{}) (*RefundResult, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if paymentID == "" {
		return nil, errors.New("payment id is required")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("refund amount must be positive, got %s", amount)
	}

	data := map[string]interface{}{}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	body, err := c.api.Payment.Refund(paymentID, int(ToMinorUnits(amount)), data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay refund: %w", err)
	}

	id, _ := body["id"].(string)
	status, _ := body["status"].(string)
	return &RefundResult{
		ID:     id,
		Status: status,
		Raw:    body,
	}, nil
}
