package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vendorahq/vendora-backend/internal/cart"
	"github.com/vendorahq/vendora-backend/internal/coupons"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/vendorahq/vendora-backend/pkg/outbox/payloads"
	"github.com/vendorahq/vendora-backend/pkg/razorpay"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrAlreadyPaid signals that the order already has a successful payment;
// callers treat it as success, not failure.
var ErrAlreadyPaid = pkgerrors.New(pkgerrors.CodeIdempotency, "order already paid")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type gateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string, notes map[string]interface{}) (*razorpay.Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
}

// Service creates gateway intents and settles verified payments.
type Service interface {
	CreateIntent(ctx context.Context, orderID, customerID uuid.UUID) (*Intent, error)
	VerifyPayment(ctx context.Context, input VerifyPaymentInput) error
	SettleCaptured(ctx context.Context, gatewayOrderID, gatewayPaymentID string, raw json.RawMessage) error
}

// Intent is the client-facing gateway order.
type Intent struct {
	GatewayOrderID string          `json:"gateway_order_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       enums.Currency  `json:"currency"`
}

// VerifyPaymentInput carries the gateway callback fields.
type VerifyPaymentInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	RawPayload       json.RawMessage
}

type service struct {
	logg       *logger.Logger
	tx         txRunner
	repo       Repository
	cartRepo   cart.Repository
	couponRepo coupons.Repository
	gateway    gateway
	outbox     outboxPublisher
}

// NewService builds the payments service.
func NewService(
	logg *logger.Logger,
	tx txRunner,
	repo Repository,
	cartRepo cart.Repository,
	couponRepo coupons.Repository,
	gw gateway,
	publisher outboxPublisher,
) (Service, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if couponRepo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		logg:       logg,
		tx:         tx,
		repo:       repo,
		cartRepo:   cartRepo,
		couponRepo: couponRepo,
		gateway:    gw,
		outbox:     publisher,
	}, nil
}

func (s *service) CreateIntent(ctx context.Context, orderID, customerID uuid.UUID) (*Intent, error) {
	if orderID == uuid.Nil || customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order and customer ids required")
	}

	order, err := s.repo.FindOrderByID(ctx, orderID)
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
	}
	if order.PaymentStatus {
		return nil, ErrAlreadyPaid
	}

	gatewayOrder, err := s.gateway.CreateOrder(ctx, order.TotalAmount, order.OrderNumber, map[string]interface{}{
		"order_id": order.ID.String(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create gateway order")
	}

	txn := &models.Transaction{
		ID:         uuid.New(),
		OrderID:    order.ID,
		CustomerID: customerID,
		PaymentID:  gatewayOrder.ID,
		Provider:   enums.PaymentProviderRazorpay,
		Amount:     order.TotalAmount,
		Currency:   order.Currency,
		Status:     enums.TransactionStatusPending,
	}
	if err := s.repo.CreateTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist transaction")
	}

	return &Intent{
		GatewayOrderID: gatewayOrder.ID,
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
	}, nil
}

// VerifyPayment settles a gateway confirmation exactly once. The signature
// check happens before any state is touched; replays of an already
// successful payment return nil.
func (s *service) VerifyPayment(ctx context.Context, input VerifyPaymentInput) error {
	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" || input.Signature == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway order id, payment id and signature required")
	}
	if !s.gateway.VerifyPaymentSignature(input.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment signature")
	}
	return s.settle(ctx, input)
}

// SettleCaptured settles a payment reported by the gateway's webhook. The
// webhook body carries its own HMAC, which the transport layer has already
// verified, so no per-payment signature exists here.
func (s *service) SettleCaptured(ctx context.Context, gatewayOrderID, gatewayPaymentID string, raw json.RawMessage) error {
	if gatewayOrderID == "" || gatewayPaymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway order id and payment id required")
	}
	return s.settle(ctx, VerifyPaymentInput{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: gatewayPaymentID,
		RawPayload:       raw,
	})
}

func (s *service) settle(ctx context.Context, input VerifyPaymentInput) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		txn, err := repo.FindTransactionByPaymentIDForUpdate(ctx, input.GatewayOrderID)
		if err == gorm.ErrRecordNotFound {
			// A callback for an intent we never created is terminal, never
			// retried.
			return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock transaction")
		}
		if txn.Status == enums.TransactionStatusSuccess {
			return nil
		}

		// Lock order: transaction row first, then the order row. Cancel
		// takes the same order lock, so a settle racing a cancel observes
		// the cancelled status instead of resurrecting the order.
		order, err := repo.FindOrderByIDForUpdate(ctx, txn.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
		}

		orderUpdates := map[string]any{
			"payment_status": true,
			"status":         enums.OrderStatusProcessing,
		}
		// A COD order paid online is corrected to card.
		if order.PaymentMethod != enums.PaymentMethodCard {
			orderUpdates["payment_method"] = enums.PaymentMethodCard
		}
		if err := repo.UpdateOrder(ctx, order.ID, orderUpdates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}

		txnUpdates := map[string]any{"status": enums.TransactionStatusSuccess}
		if len(input.RawPayload) > 0 {
			txnUpdates["gateway_response"] = json.RawMessage(input.RawPayload)
		}
		if err := repo.UpdateTransaction(ctx, txn.ID, txnUpdates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update transaction")
		}

		if err := s.clearCart(ctx, tx, order); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentReceived,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txn.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: order.CustomerID, Role: string(enums.UserRoleCustomer)},
			Data: payloads.PaymentReceivedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				CustomerID:    order.CustomerID,
				TransactionID: txn.ID,
				PaymentID:     input.GatewayPaymentID,
				Amount:        txn.Amount,
			},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed == nil {
			// Anything untyped is unexpected; log the detail and surface a
			// retryable failure.
			s.logg.Error(ctx, "payment verification failed", err)
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment verification failed")
		}
		return err
	}
	return nil
}

// clearCart is the deferred card-checkout clear; the coupon burns its usage
// here because checkout left the cart intact.
func (s *service) clearCart(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	cartRepo := s.cartRepo.WithTx(tx)
	record, err := cartRepo.FindByCustomer(ctx, order.CustomerID)
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if order.CouponID != nil {
		if err := s.couponRepo.WithTx(tx).IncrementUsage(ctx, *order.CouponID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment coupon usage")
		}
	}
	if err := cartRepo.Clear(ctx, record.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}
