package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// Repository reads settlement candidates and persists payouts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListSettleableOrders(ctx context.Context, deliveredBefore time.Time) ([]models.Order, error)
	FindDeliveredItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	FindSellerProfile(ctx context.Context, sellerID uuid.UUID) (*models.SellerProfile, error)
	FlagSellerForReview(ctx context.Context, sellerID uuid.UUID) error
	HasActivePayout(ctx context.Context, sellerID, orderID uuid.UUID) (bool, error)
	CreatePayout(ctx context.Context, payout *models.Payout) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

// ListSettleableOrders returns delivered, paid orders whose settlement
// window has elapsed. Per-seller idempotence gates decide what still
// needs a payout, so reruns over the same orders are harmless.
func (r *repository) ListSettleableOrders(ctx context.Context, deliveredBefore time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_status = ? AND delivered_at IS NOT NULL AND delivered_at <= ?",
			enums.OrderStatusDelivered, true, deliveredBefore).
		Order("delivered_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) FindDeliveredItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.OrderItemStatusDelivered).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindSellerProfile(ctx context.Context, sellerID uuid.UUID) (*models.SellerProfile, error) {
	var profile models.SellerProfile
	err := r.db.WithContext(ctx).
		First(&profile, "user_id = ?", sellerID).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) FlagSellerForReview(ctx context.Context, sellerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.SellerProfile{}).
		Where("user_id = ?", sellerID).
		Update("needs_admin_review", true).Error
}

func (r *repository) HasActivePayout(ctx context.Context, sellerID, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("seller_id = ? AND order_id = ? AND status IN ?",
			sellerID, orderID, enums.ActivePayoutStatuses).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreatePayout(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}
