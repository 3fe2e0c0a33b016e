package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/vendorahq/vendora-backend/internal/checkout/reservation"
	"github.com/vendorahq/vendora-backend/internal/orders"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/vendorahq/vendora-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const orderExpiryDays = 2

const orderExpiryReason = "payment was not completed in time"

type orderOutboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OrderExpiryJobParams configure the abandoned checkout cleanup.
type OrderExpiryJobParams struct {
	Logger *logger.Logger
	DB     txRunner
	Orders orders.Repository
	Stock  orders.StockReleaser
	Outbox orderOutboxEmitter
	TTL    int
}

// NewOrderExpiryJob builds the job that cancels pending unpaid orders and
// returns their reserved stock.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	stock := params.Stock
	if stock == nil {
		stock = orders.NewStockReleaser()
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = orderExpiryDays
	}
	return &orderExpiryJob{
		logg:   params.Logger,
		db:     params.DB,
		orders: params.Orders,
		stock:  stock,
		outbox: params.Outbox,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg   *logger.Logger
	db     txRunner
	orders orders.Repository
	stock  orders.StockReleaser
	outbox orderOutboxEmitter
	ttl    int
	now    func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.ttl) * 24 * time.Hour)
	stale, err := j.orders.ListPendingUnpaidBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	var errs error
	expired := 0
	for _, order := range stale {
		if err := j.expireOrder(ctx, order.ID); err != nil {
			logCtx := j.logg.WithOrderID(ctx, order.ID.String())
			j.logg.Error(logCtx, "order expiry failed", err)
			errs = multierr.Append(errs, err)
			continue
		}
		expired++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(stale),
		"expired":    expired,
	})
	j.logg.Info(logCtx, "order expiry loop complete")
	return errs
}

// expireOrder re-checks state under a row lock so a payment that verified
// between the scan and the lock wins the race.
func (j *orderExpiryJob) expireOrder(ctx context.Context, orderID uuid.UUID) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.orders.WithTx(tx)

		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending || order.PaymentStatus {
			return nil
		}

		items, err := repo.FindItemsByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		var requests []reservation.StockRequest
		for _, item := range items {
			if item.ProductID == nil || item.Status == enums.OrderItemStatusCancelled {
				continue
			}
			requests = append(requests, reservation.StockRequest{
				ProductID: *item.ProductID,
				Qty:       item.Quantity,
			})
		}
		if len(requests) > 0 {
			if err := j.stock.Release(ctx, tx, requests); err != nil {
				return err
			}
		}

		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status": enums.OrderStatusCancelled,
		}); err != nil {
			return err
		}
		if err := repo.SyncItemStatuses(ctx, order.ID, enums.OrderItemStatusCancelled); err != nil {
			return err
		}

		now := j.now().UTC()
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  order.CustomerID,
				CancelledAt: now,
				Reason:      orderExpiryReason,
			},
		})
	})
}
