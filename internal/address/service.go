package address

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages a customer's saved shipping addresses. Checkout snapshots
// one of these onto the order, so edits here never touch past orders.
type Service interface {
	List(ctx context.Context, customerID uuid.UUID) ([]models.CustomerAddress, error)
	Get(ctx context.Context, id, customerID uuid.UUID) (*models.CustomerAddress, error)
	Create(ctx context.Context, customerID uuid.UUID, input Input) (*models.CustomerAddress, error)
	Update(ctx context.Context, id, customerID uuid.UUID, input Input) (*models.CustomerAddress, error)
	Delete(ctx context.Context, id, customerID uuid.UUID) error
}

// Input carries the mutable address fields.
type Input struct {
	Name       string
	Phone      string
	Line1      string
	Line2      *string
	City       string
	State      string
	PostalCode string
	Country    string
	IsDefault  bool
}

func (in Input) validate() error {
	missing := []string{}
	for field, value := range map[string]string{
		"name":        in.Name,
		"phone":       in.Phone,
		"line1":       in.Line1,
		"city":        in.City,
		"state":       in.State,
		"postal_code": in.PostalCode,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "address fields missing").WithDetails(map[string]any{
			"fields": missing,
		})
	}
	return nil
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds the address service.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID) ([]models.CustomerAddress, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	addrs, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	return addrs, nil
}

func (s *service) Get(ctx context.Context, id, customerID uuid.UUID) (*models.CustomerAddress, error) {
	addr, err := s.repo.FindByID(ctx, id, customerID)
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	return addr, nil
}

func (s *service) Create(ctx context.Context, customerID uuid.UUID, input Input) (*models.CustomerAddress, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	addr := &models.CustomerAddress{
		ID:         uuid.New(),
		CustomerID: customerID,
		Name:       strings.TrimSpace(input.Name),
		Phone:      strings.TrimSpace(input.Phone),
		Line1:      strings.TrimSpace(input.Line1),
		Line2:      input.Line2,
		City:       strings.TrimSpace(input.City),
		State:      strings.TrimSpace(input.State),
		PostalCode: strings.TrimSpace(input.PostalCode),
		Country:    normalizeCountry(input.Country),
		IsDefault:  input.IsDefault,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if addr.IsDefault {
			if err := repo.ClearDefault(ctx, customerID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
			}
		}
		if err := repo.Create(ctx, addr); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return addr, nil
}

func (s *service) Update(ctx context.Context, id, customerID uuid.UUID, input Input) (*models.CustomerAddress, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var updated *models.CustomerAddress
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		addr, err := repo.FindByID(ctx, id, customerID)
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
		}

		if input.IsDefault && !addr.IsDefault {
			if err := repo.ClearDefault(ctx, customerID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
			}
		}

		addr.Name = strings.TrimSpace(input.Name)
		addr.Phone = strings.TrimSpace(input.Phone)
		addr.Line1 = strings.TrimSpace(input.Line1)
		addr.Line2 = input.Line2
		addr.City = strings.TrimSpace(input.City)
		addr.State = strings.TrimSpace(input.State)
		addr.PostalCode = strings.TrimSpace(input.PostalCode)
		addr.Country = normalizeCountry(input.Country)
		addr.IsDefault = input.IsDefault

		if err := repo.Update(ctx, addr); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update address")
		}
		updated = addr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id, customerID uuid.UUID) error {
	if _, err := s.Get(ctx, id, customerID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, customerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
	}
	return nil
}

func normalizeCountry(country string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(country))
	if trimmed == "" {
		return "IN"
	}
	return trimmed
}
