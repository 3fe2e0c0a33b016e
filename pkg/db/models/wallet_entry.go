package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// WalletEntry is one append-only line of the wallet ledger.
type WalletEntry struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	WalletID      uuid.UUID                  `gorm:"column:wallet_id;type:uuid;not null;index"`
	Direction     enums.WalletEntryDirection `gorm:"column:direction;type:wallet_entry_direction;not null"`
	Source        enums.WalletEntrySource    `gorm:"column:source;type:wallet_entry_source;not null"`
	Amount        decimal.Decimal            `gorm:"column:amount;type:numeric(12,2);not null"`
	BalanceBefore decimal.Decimal            `gorm:"column:balance_before;type:numeric(12,2);not null"`
	BalanceAfter  decimal.Decimal            `gorm:"column:balance_after;type:numeric(12,2);not null"`
	OrderID       *uuid.UUID                 `gorm:"column:order_id;type:uuid"`
	Description   string                     `gorm:"column:description;not null"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

// Delta returns the signed balance contribution of the entry.
func (e WalletEntry) Delta() decimal.Decimal {
	if e.Direction == enums.WalletEntryDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}
