package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/vendorahq/vendora-backend/internal/cart"
	"github.com/vendorahq/vendora-backend/internal/checkout/helpers"
	"github.com/vendorahq/vendora-backend/internal/checkout/reservation"
	"github.com/vendorahq/vendora-backend/internal/coupons"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/vendorahq/vendora-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type reservationRunner interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.StockRequest) (map[uuid.UUID]*models.Product, error)
}

type reservationEngine struct{}

func (reservationEngine) Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.StockRequest) (map[uuid.UUID]*models.Product, error) {
	return reservation.ReserveStock(ctx, tx, requests)
}

// Service converts the customer's cart into an order.
type Service interface {
	CreateOrder(ctx context.Context, customerID uuid.UUID, input CreateOrderInput) (*models.Order, error)
}

// CreateOrderInput captures the checkout request.
type CreateOrderInput struct {
	AddressID     uuid.UUID
	PaymentMethod enums.PaymentMethod
}

type service struct {
	tx          txRunner
	repo        Repository
	cartRepo    cart.Repository
	coupons     coupons.Service
	couponRepo  coupons.Repository
	reservation reservationRunner
	outbox      outboxPublisher
	now         func() time.Time
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	repo Repository,
	cartRepo cart.Repository,
	couponSvc coupons.Service,
	couponRepo coupons.Repository,
	reservation reservationRunner,
	publisher outboxPublisher,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if couponSvc == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if couponRepo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if reservation == nil {
		reservation = reservationEngine{}
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:          tx,
		repo:        repo,
		cartRepo:    cartRepo,
		coupons:     couponSvc,
		couponRepo:  couponRepo,
		reservation: reservation,
		outbox:      publisher,
		now:         time.Now,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, customerID uuid.UUID, input CreateOrderInput) (*models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cartRepo := s.cartRepo.WithTx(tx)

		record, err := cartRepo.FindByCustomer(ctx, customerID)
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		address, err := repo.FindAddress(ctx, input.AddressID, customerID)
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
		}

		// Reserve before pricing: the price snapshot comes from the same
		// locked rows the availability check saw, so a concurrent price
		// edit can never produce a price/stock pair that never coexisted.
		requests := make([]reservation.StockRequest, len(record.Items))
		for i, item := range record.Items {
			requests[i] = reservation.StockRequest{
				ProductID: item.ProductID,
				Qty:       item.Quantity,
			}
		}
		products, err := s.reservation.Reserve(ctx, tx, requests)
		if err != nil {
			return err
		}

		lines, err := helpers.PriceCartItems(record.Items, products)
		if err != nil {
			return err
		}
		subtotal := helpers.Subtotal(lines)

		discount := decimal.Zero
		var couponID *uuid.UUID
		if record.CouponID != nil {
			coupon, amount, err := s.coupons.Validate(ctx, *record.CouponID, subtotal)
			if err != nil {
				return err
			}
			discount = amount
			id := coupon.ID
			couponID = &id
		}

		now := s.now()
		order := &models.Order{
			ID:              uuid.New(),
			OrderNumber:     helpers.NewOrderNumber(now),
			CustomerID:      customerID,
			TotalAmount:     subtotal.Sub(discount),
			DiscountAmount:  discount,
			CouponID:        couponID,
			Status:          enums.OrderStatusPending,
			PaymentMethod:   input.PaymentMethod,
			Currency:        enums.CurrencyINR,
			ShippingAddress: address.Snapshot(),
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		items := make([]models.OrderItem, 0, len(lines))
		sellerSeen := map[uuid.UUID]bool{}
		sellerIDs := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			productID := line.CartItem.ProductID
			items = append(items, models.OrderItem{
				ID:          uuid.New(),
				OrderID:     order.ID,
				ProductID:   &productID,
				SellerID:    line.Product.SellerID,
				ProductName: line.Product.Name,
				UnitPrice:   line.UnitPrice,
				Quantity:    line.CartItem.Quantity,
				Status:      enums.OrderItemStatusPending,
			})
			if !sellerSeen[line.Product.SellerID] {
				sellerSeen[line.Product.SellerID] = true
				sellerIDs = append(sellerIDs, line.Product.SellerID)
			}
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}

		// COD completes checkout here; CARD keeps the cart recoverable until
		// the payment verifies.
		if input.PaymentMethod == enums.PaymentMethodCOD {
			if couponID != nil {
				if err := s.couponRepo.WithTx(tx).IncrementUsage(ctx, *couponID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment coupon usage")
				}
			}
			if err := cartRepo.Clear(ctx, record.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: customerID, Role: string(enums.UserRoleCustomer)},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				CustomerID:    customerID,
				SellerIDs:     sellerIDs,
				TotalAmount:   order.TotalAmount,
				PaymentMethod: order.PaymentMethod,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		result, err = repo.FindOrderByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
