package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
)

// Repository manages persistence for saved customer addresses.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.CustomerAddress, error)
	FindByID(ctx context.Context, id, customerID uuid.UUID) (*models.CustomerAddress, error)
	Create(ctx context.Context, addr *models.CustomerAddress) error
	Update(ctx context.Context, addr *models.CustomerAddress) error
	Delete(ctx context.Context, id, customerID uuid.UUID) error
	ClearDefault(ctx context.Context, customerID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an address repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.CustomerAddress, error) {
	var addrs []models.CustomerAddress
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("is_default DESC, created_at DESC").
		Find(&addrs).Error
	if err != nil {
		return nil, err
	}
	return addrs, nil
}

func (r *repository) FindByID(ctx context.Context, id, customerID uuid.UUID) (*models.CustomerAddress, error) {
	var addr models.CustomerAddress
	err := r.db.WithContext(ctx).
		Where("id = ? AND customer_id = ?", id, customerID).
		First(&addr).Error
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func (r *repository) Create(ctx context.Context, addr *models.CustomerAddress) error {
	return r.db.WithContext(ctx).Create(addr).Error
}

func (r *repository) Update(ctx context.Context, addr *models.CustomerAddress) error {
	return r.db.WithContext(ctx).Save(addr).Error
}

func (r *repository) Delete(ctx context.Context, id, customerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.CustomerAddress{}, "id = ? AND customer_id = ?", id, customerID).Error
}

func (r *repository) ClearDefault(ctx context.Context, customerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.CustomerAddress{}).
		Where("customer_id = ? AND is_default = ?", customerID, true).
		Update("is_default", false).Error
}
