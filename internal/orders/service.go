package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/vendorahq/vendora-backend/internal/checkout/reservation"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/vendorahq/vendora-backend/pkg/outbox/payloads"
	"github.com/vendorahq/vendora-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ShippingGate answers whether any shipment for the order has gone out for
// delivery, which blocks cancellation and refunds.
type ShippingGate interface {
	HasOutForDelivery(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
}

// StockReleaser restores reserved stock when an order is cancelled.
type StockReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, requests []reservation.StockRequest) error
}

type stockReleaserImpl struct{}

// NewStockReleaser exposes the default stock release implementation.
func NewStockReleaser() StockReleaser {
	return stockReleaserImpl{}
}

func (stockReleaserImpl) Release(ctx context.Context, tx *gorm.DB, requests []reservation.StockRequest) error {
	return reservation.ReleaseStock(ctx, tx, requests)
}

// Service drives order status transitions.
type Service interface {
	Get(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error)
	Cancel(ctx context.Context, input CancelInput) error
	MarkDelivered(ctx context.Context, orderID uuid.UUID) error
	UpdateStatus(ctx context.Context, input UpdateStatusInput) error
}

// CancelInput captures a customer-initiated cancellation.
type CancelInput struct {
	OrderID    uuid.UUID
	CustomerID uuid.UUID
	Reason     string
}

// UpdateStatusInput captures an operator-driven status override.
type UpdateStatusInput struct {
	OrderID     uuid.UUID
	Target      enums.OrderStatus
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	shipping ShippingGate
	stock    StockReleaser
	now      func() time.Time
}

// NewService builds the orders service.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, shipping ShippingGate, stock StockReleaser) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if shipping == nil {
		return nil, fmt.Errorf("shipping gate required")
	}
	if stock == nil {
		stock = stockReleaserImpl{}
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   publisher,
		shipping: shipping,
		stock:    stock,
		now:      time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if customerID != uuid.Nil && order.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	return s.repo.ListByCustomer(ctx, customerID, params)
}

func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order.CustomerID != input.CustomerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status == enums.OrderStatusCancelled {
			return nil
		}
		if !CanTransition(order.Status, enums.OrderStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order cannot be cancelled from %s", order.Status))
		}

		blocked, err := s.shipping.HasOutForDelivery(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if blocked {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is out for delivery; request a return after delivery instead")
		}

		items, err := repo.FindItemsByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		requests := make([]reservation.StockRequest, 0, len(items))
		for _, item := range items {
			if item.ProductID == nil || item.Status == enums.OrderItemStatusCancelled {
				continue
			}
			requests = append(requests, reservation.StockRequest{ProductID: *item.ProductID, Qty: item.Quantity})
		}
		if err := s.stock.Release(ctx, tx, requests); err != nil {
			return err
		}

		if err := s.applyTransition(ctx, repo, order.ID, enums.OrderStatusCancelled, nil); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.CustomerID, Role: string(enums.UserRoleCustomer)},
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  order.CustomerID,
				CancelledAt: s.now().UTC(),
				Reason:      input.Reason,
			},
		})
	})
}

func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order.Status == enums.OrderStatusDelivered {
			return nil
		}
		if !CanTransition(order.Status, enums.OrderStatusDelivered) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order cannot be delivered from %s", order.Status))
		}

		deliveredAt := s.now().UTC()
		if err := s.applyTransition(ctx, repo, order.ID, enums.OrderStatusDelivered, &deliveredAt); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderDeliveredEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  order.CustomerID,
				DeliveredAt: deliveredAt,
			},
		})
	})
}

// UpdateStatus is the operator override path. It honors the same transition
// table and reuses the cancel/deliver flows so their side effects are never
// skipped.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	switch input.Target {
	case enums.OrderStatusDelivered:
		return s.MarkDelivered(ctx, input.OrderID)
	case enums.OrderStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeValidation, "use the cancel operation for cancellations")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order.Status == input.Target {
			return nil
		}
		if !CanTransition(order.Status, input.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", order.Status, input.Target))
		}
		return s.applyTransition(ctx, repo, order.ID, input.Target, nil)
	})
}

func (s *service) applyTransition(ctx context.Context, repo Repository, orderID uuid.UUID, target enums.OrderStatus, deliveredAt *time.Time) error {
	updates := map[string]any{"status": target}
	if deliveredAt != nil {
		updates["delivered_at"] = *deliveredAt
	}
	if err := repo.UpdateOrder(ctx, orderID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if itemStatus, ok := itemStatusFor(target); ok {
		if err := repo.SyncItemStatuses(ctx, orderID, itemStatus); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync item statuses")
		}
	}
	return nil
}
