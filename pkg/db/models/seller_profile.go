package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SellerProfile holds seller approval state and settlement bank details.
type SellerProfile struct {
	UserID            uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	BusinessName      string    `gorm:"column:business_name;not null"`
	IsApproved        bool      `gorm:"column:is_approved;not null;default:false"`
	NeedsAdminReview  bool      `gorm:"column:needs_admin_review;not null;default:false"`
	AccountHolderName *string   `gorm:"column:account_holder_name"`
	AccountNumber     *string   `gorm:"column:account_number"`
	IFSCCode          *string   `gorm:"column:ifsc_code"`
	BankName          *string   `gorm:"column:bank_name"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HasBankDetails reports whether every settlement field is present.
func (p SellerProfile) HasBankDetails() bool {
	for _, field := range []*string{p.AccountHolderName, p.AccountNumber, p.IFSCCode, p.BankName} {
		if field == nil || strings.TrimSpace(*field) == "" {
			return false
		}
	}
	return true
}

// BankSnapshot renders the pipe-delimited settlement snapshot stored on
// payouts.
func (p SellerProfile) BankSnapshot() string {
	if !p.HasBankDetails() {
		return ""
	}
	return fmt.Sprintf("%s|%s|%s", *p.AccountHolderName, *p.IFSCCode, *p.BankName)
}
