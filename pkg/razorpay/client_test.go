package razorpay

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vendorahq/vendora-backend/pkg/config"
)

func TestToMinorUnits(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0.00", 0},
		{"1.00", 100},
		{"499.50", 49950},
		{"100000.99", 10000099},
	}
	for _, tc := range cases {
		got := ToMinorUnits(decimal.RequireFromString(tc.in))
		if got != tc.want {
			t.Errorf("ToMinorUnits(%s) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(config.RazorpayConfig{}); err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if _, err := New(config.RazorpayConfig{KeyID: "rzp_test", KeySecret: "secret"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyPaymentSignatureRejectsEmptyInputs(t *testing.T) {
	client, err := New(config.RazorpayConfig{KeyID: "rzp_test", KeySecret: "secret"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if client.VerifyPaymentSignature("", "pay_1", "sig") {
		t.Fatal("expected empty order id to fail verification")
	}
	if client.VerifyPaymentSignature("order_1", "pay_1", "") {
		t.Fatal("expected empty signature to fail verification")
	}
}
