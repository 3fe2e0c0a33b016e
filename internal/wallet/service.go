package wallet

import (
	"context"
	"fmt"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service mutates wallet balances. Every mutation appends a ledger entry
// carrying the balance before and after, so the cached balance is always
// re-derivable as the sum of entry deltas.
type Service interface {
	Credit(ctx context.Context, tx *gorm.DB, input MutationInput) (*models.WalletEntry, error)
	Debit(ctx context.Context, tx *gorm.DB, input MutationInput) (*models.WalletEntry, error)
	Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	Reconcile(ctx context.Context, accountID uuid.UUID) error
}

// MutationInput captures one wallet movement.
type MutationInput struct {
	AccountID   uuid.UUID
	Amount      decimal.Decimal
	Source      enums.WalletEntrySource
	OrderID     *uuid.UUID
	Description string
}

type service struct {
	repo Repository
}

// NewService wires a wallet service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, input MutationInput) (*models.WalletEntry, error) {
	return s.mutate(ctx, tx, enums.WalletEntryCredit, input)
}

func (s *service) Debit(ctx context.Context, tx *gorm.DB, input MutationInput) (*models.WalletEntry, error) {
	return s.mutate(ctx, tx, enums.WalletEntryDebit, input)
}

func (s *service) mutate(ctx context.Context, tx *gorm.DB, direction enums.WalletEntryDirection, input MutationInput) (*models.WalletEntry, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for wallet mutation")
	}
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid wallet entry source %q", input.Source))
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindByAccountIDForUpdate(ctx, input.AccountID)
	if err == gorm.ErrRecordNotFound {
		wallet = &models.Wallet{
			ID:        uuid.New(),
			AccountID: input.AccountID,
			Balance:   decimal.Zero,
			IsActive:  true,
		}
		if err := repo.Create(ctx, wallet); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
		}
	} else if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
	}

	if direction == enums.WalletEntryDebit && wallet.IsLocked {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "wallet is locked")
	}

	before := wallet.Balance
	after := before.Add(input.Amount)
	if direction == enums.WalletEntryDebit {
		after = before.Sub(input.Amount)
	}

	updates := map[string]any{"balance": after}
	// A debit is allowed to push the balance negative (the books must stay
	// balanced even when the account cannot cover it), but the account is
	// locked against further debits until an operator intervenes.
	if direction == enums.WalletEntryDebit && after.IsNegative() {
		updates["is_locked"] = true
	}
	if err := repo.UpdateBalance(ctx, wallet.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet balance")
	}

	entry := &models.WalletEntry{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		Direction:     direction,
		Source:        input.Source,
		Amount:        input.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		OrderID:       input.OrderID,
		Description:   input.Description,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append wallet entry")
	}
	return entry, nil
}

func (s *service) Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	if accountID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	wallet, err := s.repo.FindByAccountID(ctx, accountID)
	if err == gorm.ErrRecordNotFound {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet.Balance, nil
}

// Reconcile verifies the cached balance equals the sum of entry deltas.
// A divergence means an entry was written without its balance update (or
// vice versa), which is a correctness bug and is surfaced loudly.
func (s *service) Reconcile(ctx context.Context, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	wallet, err := s.repo.FindByAccountID(ctx, accountID)
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	sum, err := s.repo.SumEntryDeltas(ctx, wallet.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum wallet entries")
	}
	if !wallet.Balance.Equal(sum) {
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf(
			"wallet %s balance %s diverges from entry sum %s",
			wallet.ID, wallet.Balance, sum,
		))
	}
	return nil
}
