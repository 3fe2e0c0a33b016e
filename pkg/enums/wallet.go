package enums

import "fmt"

// WalletEntryDirection marks a ledger entry as a credit or a debit.
type WalletEntryDirection string

const (
	WalletEntryCredit WalletEntryDirection = "credit"
	WalletEntryDebit  WalletEntryDirection = "debit"
)

// IsValid reports whether the direction is recognized.
func (d WalletEntryDirection) IsValid() bool {
	return d == WalletEntryCredit || d == WalletEntryDebit
}

// String implements fmt.Stringer.
func (d WalletEntryDirection) String() string {
	return string(d)
}

// WalletEntrySource records why money moved.
type WalletEntrySource string

const (
	WalletSourceOrderRefund   WalletEntrySource = "order_refund"
	WalletSourceReturnCredit  WalletEntrySource = "return_credit"
	WalletSourceSellerEarning WalletEntrySource = "seller_earning"
	WalletSourceCommission    WalletEntrySource = "commission"
	WalletSourceAdjustment    WalletEntrySource = "adjustment"
)

var validWalletEntrySources = []WalletEntrySource{
	WalletSourceOrderRefund,
	WalletSourceReturnCredit,
	WalletSourceSellerEarning,
	WalletSourceCommission,
	WalletSourceAdjustment,
}

// IsValid reports whether the source is recognized.
func (s WalletEntrySource) IsValid() bool {
	for _, candidate := range validWalletEntrySources {
		if candidate == s {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (s WalletEntrySource) String() string {
	return string(s)
}

// ParseWalletEntrySource converts raw input into a WalletEntrySource.
func ParseWalletEntrySource(value string) (WalletEntrySource, error) {
	for _, candidate := range validWalletEntrySources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet entry source %q", value)
}
