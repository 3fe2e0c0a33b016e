package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/internal/wallet"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/vendorahq/vendora-backend/pkg/outbox/payloads"
)

const defaultDelayDays = 7

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Report summarizes one scheduler run.
type Report struct {
	OrdersScanned  int
	PayoutsCreated int
	Skipped        int
	Failed         int
}

// Params configures the payout scheduler.
type Params struct {
	Logger            *logger.Logger
	Tx                txRunner
	Repo              Repository
	Wallet            wallet.Service
	Outbox            outboxEmitter
	CommissionRate    decimal.Decimal
	MinimumAmount     decimal.Decimal
	DelayDays         int
	PlatformAccountID uuid.UUID
}

// Service settles delivered orders into per-seller payouts.
type Service struct {
	logg       *logger.Logger
	tx         txRunner
	repo       Repository
	wallet     wallet.Service
	outbox     outboxEmitter
	rate       decimal.Decimal
	minimum    decimal.Decimal
	delay      time.Duration
	platformID uuid.UUID
	now        func() time.Time
}

// NewService validates params and builds the scheduler.
func NewService(params Params) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if params.Wallet == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.PlatformAccountID == uuid.Nil {
		return nil, fmt.Errorf("platform account id required")
	}
	if params.CommissionRate.IsNegative() || params.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("commission rate must be in [0, 1)")
	}
	if params.DelayDays <= 0 {
		params.DelayDays = defaultDelayDays
	}
	return &Service{
		logg:       params.Logger,
		tx:         params.Tx,
		repo:       params.Repo,
		wallet:     params.Wallet,
		outbox:     params.Outbox,
		rate:       params.CommissionRate,
		minimum:    params.MinimumAmount,
		delay:      time.Duration(params.DelayDays) * 24 * time.Hour,
		platformID: params.PlatformAccountID,
		now:        time.Now,
	}, nil
}

// Run settles every order whose payout window has elapsed. Per-seller
// failures are collected, not fatal; the returned error aggregates them.
func (s *Service) Run(ctx context.Context) (Report, error) {
	report := Report{}
	cutoff := s.now().UTC().Add(-s.delay)

	orders, err := s.repo.ListSettleableOrders(ctx, cutoff)
	if err != nil {
		return report, fmt.Errorf("list settleable orders: %w", err)
	}

	var errs error
	for _, order := range orders {
		report.OrdersScanned++
		if err := s.settleOrder(ctx, order, &report); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return report, errs
}

func (s *Service) settleOrder(ctx context.Context, order models.Order, report *Report) error {
	items, err := s.repo.FindDeliveredItems(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("load items for order %s: %w", order.ID, err)
	}

	grossBySeller := map[uuid.UUID]decimal.Decimal{}
	var sellers []uuid.UUID
	for _, item := range items {
		if _, ok := grossBySeller[item.SellerID]; !ok {
			sellers = append(sellers, item.SellerID)
		}
		grossBySeller[item.SellerID] = grossBySeller[item.SellerID].Add(item.LineTotal())
	}

	var errs error
	for _, sellerID := range sellers {
		err := s.settleSeller(ctx, order, sellerID, grossBySeller[sellerID], report)
		if err != nil {
			report.Failed++
			logCtx := s.logg.WithSellerID(s.logg.WithOrderID(ctx, order.ID.String()), sellerID.String())
			s.logg.Error(logCtx, "seller payout failed", err)
			if alertErr := s.raiseAdminAlert(ctx, order.ID, sellerID, report.Failed, err); alertErr != nil {
				s.logg.Error(logCtx, "raise payout admin alert", alertErr)
			}
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// settleSeller runs the full gate sequence for one seller inside one
// transaction, so a payout row and its wallet movements land together.
func (s *Service) settleSeller(ctx context.Context, order models.Order, sellerID uuid.UUID, gross decimal.Decimal, report *Report) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		profile, err := repo.FindSellerProfile(ctx, sellerID)
		if err == gorm.ErrRecordNotFound {
			report.Skipped++
			return nil
		}
		if err != nil {
			return fmt.Errorf("load seller profile %s: %w", sellerID, err)
		}
		if !profile.IsApproved {
			report.Skipped++
			return nil
		}

		active, err := repo.HasActivePayout(ctx, sellerID, order.ID)
		if err != nil {
			return fmt.Errorf("check active payout: %w", err)
		}
		if active {
			return nil
		}

		commission := gross.Mul(s.rate).Round(2)
		net := gross.Sub(commission)

		if net.LessThan(s.minimum) {
			report.Skipped++
			return s.emitSkip(ctx, tx, order.ID, sellerID, net, "below minimum payout amount")
		}
		if !profile.HasBankDetails() {
			report.Skipped++
			if err := repo.FlagSellerForReview(ctx, sellerID); err != nil {
				return fmt.Errorf("flag seller for review: %w", err)
			}
			return s.emitSkip(ctx, tx, order.ID, sellerID, net, "bank details missing")
		}

		snapshot := profile.BankSnapshot()
		payout := &models.Payout{
			ID:                  uuid.New(),
			SellerID:            sellerID,
			OrderID:             order.ID,
			Amount:              net,
			CommissionAmount:    commission,
			Status:              enums.PayoutStatusApproved,
			BankDetailsSnapshot: &snapshot,
		}
		if err := repo.CreatePayout(ctx, payout); err != nil {
			return fmt.Errorf("create payout: %w", err)
		}

		orderID := order.ID
		_, err = s.wallet.Credit(ctx, tx, wallet.MutationInput{
			AccountID:   sellerID,
			Amount:      net,
			Source:      enums.WalletSourceSellerEarning,
			OrderID:     &orderID,
			Description: "earnings for order " + order.OrderNumber,
		})
		if err != nil {
			return err
		}
		_, err = s.wallet.Credit(ctx, tx, wallet.MutationInput{
			AccountID:   s.platformID,
			Amount:      commission,
			Source:      enums.WalletSourceCommission,
			OrderID:     &orderID,
			Description: "commission for order " + order.OrderNumber,
		})
		if err != nil {
			return err
		}

		report.PayoutsCreated++
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutApproved,
			AggregateType: enums.AggregatePayout,
			AggregateID:   payout.ID,
			Version:       1,
			Data: payloads.PayoutApprovedEvent{
				PayoutID:   payout.ID,
				SellerID:   sellerID,
				OrderID:    order.ID,
				Gross:      gross,
				Commission: commission,
				Net:        net,
			},
		})
	})
}

// emitSkip raises the skip event at most once per (seller, order): the
// deterministic aggregate id makes reruns of the same skip a no-op.
func (s *Service) emitSkip(ctx context.Context, tx *gorm.DB, orderID, sellerID uuid.UUID, net decimal.Decimal, reason string) error {
	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPayoutSkipped,
		AggregateType: enums.AggregatePayout,
		AggregateID:   uuid.NewSHA1(orderID, sellerID[:]),
		Version:       1,
		Data: payloads.PayoutSkippedEvent{
			SellerID: sellerID,
			OrderID:  orderID,
			Net:      net,
			Reason:   reason,
		},
	})
}

func (s *Service) raiseAdminAlert(ctx context.Context, orderID, sellerID uuid.UUID, failedCount int, cause error) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutFailedAdminAlert,
			AggregateType: enums.AggregatePayout,
			AggregateID:   uuid.NewSHA1(orderID, sellerID[:]),
			Version:       1,
			Data: payloads.PayoutFailedAdminAlertEvent{
				SellerID:    sellerID,
				OrderID:     orderID,
				FailedCount: failedCount,
				Reason:      cause.Error(),
			},
		})
	})
}
