package refunds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/internal/wallet"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/vendorahq/vendora-backend/pkg/outbox/payloads"
	"github.com/vendorahq/vendora-backend/pkg/razorpay"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 2 * time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type gateway interface {
	Refund(ctx context.Context, paymentID string, amount decimal.Decimal, notes map[string]interface{}) (*razorpay.RefundResult, error)
}

type shippingGate interface {
	HasOutForDelivery(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
}

// Service accepts customer refund requests and hands them to the
// asynchronous processor through the outbox.
type Service interface {
	Request(ctx context.Context, orderID, customerID uuid.UUID) (*models.RefundRequest, error)
}

type service struct {
	tx       txRunner
	repo     Repository
	shipping shippingGate
	outbox   outboxEmitter
	now      func() time.Time
}

// NewService builds the refund intake service.
func NewService(tx txRunner, repo Repository, shipping shippingGate, publisher outboxEmitter) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	if shipping == nil {
		return nil, fmt.Errorf("shipping gate required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:       tx,
		repo:     repo,
		shipping: shipping,
		outbox:   publisher,
		now:      time.Now,
	}, nil
}

// Request records a PENDING refund for the full paid amount. Re-requesting
// while a refund is in flight or already succeeded returns the existing
// row instead of opening a second one.
func (s *service) Request(ctx context.Context, orderID, customerID uuid.UUID) (*models.RefundRequest, error) {
	if orderID == uuid.Nil || customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order and customer ids required")
	}

	var request *models.RefundRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrderByID(ctx, orderID)
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.CustomerID != customerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !order.PaymentStatus {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no settled payment to refund")
		}

		blocked, err := s.shipping.HasOutForDelivery(ctx, tx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check shipments")
		}
		if blocked {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				"shipment is out for delivery; request a return after delivery instead")
		}

		existing, err := repo.FindOpenByOrder(ctx, order.ID)
		if err == nil {
			request = existing
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing refunds")
		}

		row := &models.RefundRequest{
			ID:         uuid.New(),
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			Amount:     order.TotalAmount,
			Status:     enums.RefundRequestStatusPending,
		}
		if txn, err := repo.FindSuccessTransaction(ctx, order.ID); err == nil {
			row.TransactionID = &txn.ID
		} else if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
		}
		if err := repo.Create(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist refund request")
		}
		request = row

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundRequested,
			AggregateType: enums.AggregateRefund,
			AggregateID:   row.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: customerID, Role: string(enums.UserRoleCustomer)},
			Data: payloads.RefundRequestedEvent{
				RefundRequestID: row.ID,
				OrderID:         order.ID,
				CustomerID:      order.CustomerID,
				Amount:          row.Amount,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// ProcessorParams configures the async refund worker.
type ProcessorParams struct {
	Logger            *logger.Logger
	Tx                txRunner
	Repo              Repository
	Wallet            wallet.Service
	Gateway           gateway
	Outbox            outboxEmitter
	PlatformAccountID uuid.UUID
	MaxAttempts       int
	BackoffBase       time.Duration
}

// Processor executes queued refunds against the gateway with bounded
// exponential backoff.
type Processor struct {
	logg        *logger.Logger
	tx          txRunner
	repo        Repository
	wallet      wallet.Service
	gateway     gateway
	outbox      outboxEmitter
	platformID  uuid.UUID
	maxAttempts int
	backoffBase time.Duration
	now         func() time.Time
}

// NewProcessor validates params and builds the worker.
func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	if params.Wallet == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.PlatformAccountID == uuid.Nil {
		return nil, fmt.Errorf("platform account id required")
	}
	if params.MaxAttempts <= 0 {
		params.MaxAttempts = defaultMaxAttempts
	}
	if params.BackoffBase <= 0 {
		params.BackoffBase = defaultBackoffBase
	}
	return &Processor{
		logg:        params.Logger,
		tx:          params.Tx,
		repo:        params.Repo,
		wallet:      params.Wallet,
		gateway:     params.Gateway,
		outbox:      params.Outbox,
		platformID:  params.PlatformAccountID,
		maxAttempts: params.MaxAttempts,
		backoffBase: params.BackoffBase,
		now:         time.Now,
	}, nil
}

// Process runs one refund to completion or attempt exhaustion. Already
// successful refunds are a no-op, so webhook and queue replays are safe.
func (p *Processor) Process(ctx context.Context, refundRequestID uuid.UUID) error {
	if refundRequestID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund request id required")
	}

	backoff := retry.WithMaxRetries(uint64(p.maxAttempts-1), retry.NewExponential(p.backoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return p.attempt(ctx, refundRequestID)
	})
	if err == nil {
		return nil
	}

	if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeDependency {
		// Validation and state errors are terminal, never part of the
		// retry budget.
		return err
	}
	p.logg.Error(ctx, "refund attempts exhausted", err)
	if alertErr := p.markExhausted(ctx, refundRequestID, err); alertErr != nil {
		p.logg.Error(ctx, "record refund exhaustion", alertErr)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund processing failed")
}

// attempt performs a single pass: claim the row, call the gateway outside
// any held lock, then settle the outcome.
func (p *Processor) attempt(ctx context.Context, refundRequestID uuid.UUID) error {
	var (
		paymentID string
		amount    decimal.Decimal
		done      bool
	)
	err := p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := p.repo.WithTx(tx)

		request, err := repo.FindByIDForUpdate(ctx, refundRequestID)
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "refund request not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock refund request")
		}
		if request.Status == enums.RefundRequestStatusSuccess {
			done = true
			return nil
		}
		if request.AttemptCount >= p.maxAttempts {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund attempts exhausted").
				WithDetails(map[string]any{"attempt_count": request.AttemptCount})
		}

		txn, err := repo.FindSuccessTransaction(ctx, request.OrderID)
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no successful transaction")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
		}

		paymentID = txn.PaymentID
		amount = request.Amount
		return repo.Update(ctx, request.ID, map[string]any{
			"status":        enums.RefundRequestStatusProcessing,
			"attempt_count": request.AttemptCount + 1,
		})
	})
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	result, gatewayErr := p.gateway.Refund(ctx, paymentID, amount, map[string]interface{}{
		"refund_request_id": refundRequestID.String(),
	})
	if gatewayErr != nil {
		if markErr := p.markFailed(ctx, refundRequestID, gatewayErr); markErr != nil {
			p.logg.Error(ctx, "record refund failure", markErr)
		}
		return retry.RetryableError(
			pkgerrors.Wrap(pkgerrors.CodeDependency, gatewayErr, "gateway refund failed"))
	}
	return p.settle(ctx, refundRequestID, result)
}

func (p *Processor) settle(ctx context.Context, refundRequestID uuid.UUID, result *razorpay.RefundResult) error {
	return p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := p.repo.WithTx(tx)

		request, err := repo.FindByIDForUpdate(ctx, refundRequestID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock refund request")
		}
		if request.Status == enums.RefundRequestStatusSuccess {
			return nil
		}

		processedAt := p.now().UTC()
		updates := map[string]any{
			"status":       enums.RefundRequestStatusSuccess,
			"processed_at": processedAt,
		}
		if raw, marshalErr := json.Marshal(result.Raw); marshalErr == nil && len(result.Raw) > 0 {
			updates["gateway_response"] = json.RawMessage(raw)
		}
		if err := repo.Update(ctx, request.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update refund request")
		}
		if request.TransactionID != nil {
			err := repo.UpdateTransaction(ctx, *request.TransactionID, map[string]any{
				"status": enums.TransactionStatusRefunded,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update transaction")
			}
		}

		orderID := request.OrderID
		description := "refund for order " + orderID.String()
		_, err = p.wallet.Credit(ctx, tx, wallet.MutationInput{
			AccountID:   request.CustomerID,
			Amount:      request.Amount,
			Source:      enums.WalletSourceOrderRefund,
			OrderID:     &orderID,
			Description: description,
		})
		if err != nil {
			return err
		}
		// The platform still holds the funds pre-payout, so the debit
		// comes out of the platform book.
		_, err = p.wallet.Debit(ctx, tx, wallet.MutationInput{
			AccountID:   p.platformID,
			Amount:      request.Amount,
			Source:      enums.WalletSourceOrderRefund,
			OrderID:     &orderID,
			Description: description,
		})
		if err != nil {
			return err
		}

		return p.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundSucceeded,
			AggregateType: enums.AggregateRefund,
			AggregateID:   request.ID,
			Version:       1,
			Data: payloads.RefundSucceededEvent{
				RefundRequestID: request.ID,
				OrderID:         request.OrderID,
				CustomerID:      request.CustomerID,
				Amount:          request.Amount,
				ProcessedAt:     processedAt,
			},
		})
	})
}

func (p *Processor) markFailed(ctx context.Context, refundRequestID uuid.UUID, cause error) error {
	message := cause.Error()
	return p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return p.repo.WithTx(tx).Update(ctx, refundRequestID, map[string]any{
			"status":        enums.RefundRequestStatusFailed,
			"error_message": message,
		})
	})
}

// markExhausted leaves the FAILED row for operators and raises the alert
// event exactly once per refund request.
func (p *Processor) markExhausted(ctx context.Context, refundRequestID uuid.UUID, cause error) error {
	return p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		request, err := p.repo.WithTx(tx).FindByID(ctx, refundRequestID)
		if err != nil {
			return err
		}
		return p.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundFailed,
			AggregateType: enums.AggregateRefund,
			AggregateID:   request.ID,
			Version:       1,
			Data: payloads.RefundFailedEvent{
				RefundRequestID: request.ID,
				OrderID:         request.OrderID,
				CustomerID:      request.CustomerID,
				AttemptCount:    request.AttemptCount,
				Error:           cause.Error(),
			},
		})
	})
}
