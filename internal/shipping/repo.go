package shipping

import (
	"context"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages shipment persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListNonTerminal(ctx context.Context) ([]models.Shipment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Shipment, error)
	Update(ctx context.Context, shipmentID uuid.UUID, updates map[string]any) error
	Create(ctx context.Context, shipment *models.Shipment) error
	CountByOrderAndStatus(ctx context.Context, orderID uuid.UUID, statuses []enums.ShipmentStatus) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a shipment repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListNonTerminal(ctx context.Context) ([]models.Shipment, error) {
	var shipments []models.Shipment
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", []enums.ShipmentStatus{enums.ShipmentStatusDelivered, enums.ShipmentStatusFailure}).
		Order("created_at ASC").
		Find(&shipments).Error
	if err != nil {
		return nil, err
	}
	return shipments, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Shipment, error) {
	var shipments []models.Shipment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&shipments).Error
	if err != nil {
		return nil, err
	}
	return shipments, nil
}

func (r *repository) Update(ctx context.Context, shipmentID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ?", shipmentID).
		Updates(updates).Error
}

func (r *repository) Create(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Create(shipment).Error
}

func (r *repository) CountByOrderAndStatus(ctx context.Context, orderID uuid.UUID, statuses []enums.ShipmentStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("order_id = ? AND status IN ?", orderID, statuses).
		Count(&count).Error
	return count, err
}
