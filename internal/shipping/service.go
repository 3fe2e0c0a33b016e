package shipping

import (
	"context"
	"fmt"
	"time"

	"github.com/vendorahq/vendora-backend/pkg/carrier"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

type carrierClient interface {
	Track(ctx context.Context, trackingNumber string) (*carrier.TrackingStatus, error)
}

type orderDeliverer interface {
	MarkDelivered(ctx context.Context, orderID uuid.UUID) error
}

// Service keeps shipment rows in step with the carrier and flips orders to
// delivered once every consignment lands.
type Service interface {
	SyncTracking(ctx context.Context) (SyncReport, error)
	HasOutForDelivery(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
}

// SyncReport summarizes one tracking pass.
type SyncReport struct {
	Checked   int
	Updated   int
	Delivered int
	Failed    int
}

type service struct {
	logg    *logger.Logger
	repo    Repository
	carrier carrierClient
	orders  orderDeliverer
	now     func() time.Time
}

// NewService builds the shipping sync service.
func NewService(logg *logger.Logger, repo Repository, carrierClient carrierClient, orders orderDeliverer) (Service, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if repo == nil {
		return nil, fmt.Errorf("shipment repository required")
	}
	if carrierClient == nil {
		return nil, fmt.Errorf("carrier client required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order deliverer required")
	}
	return &service{
		logg:    logg,
		repo:    repo,
		carrier: carrierClient,
		orders:  orders,
		now:     time.Now,
	}, nil
}

func (s *service) SyncTracking(ctx context.Context) (SyncReport, error) {
	shipments, err := s.repo.ListNonTerminal(ctx)
	if err != nil {
		return SyncReport{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shipments")
	}

	report := SyncReport{Checked: len(shipments)}
	var errs error
	for _, shipment := range shipments {
		if err := s.syncOne(ctx, shipment, &report); err != nil {
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("shipment %s: %w", shipment.ID, err))
			logCtx := s.logg.WithOrderID(ctx, shipment.OrderID.String())
			s.logg.Error(logCtx, "tracking sync failed", err)
		}
	}
	return report, errs
}

func (s *service) syncOne(ctx context.Context, shipment models.Shipment, report *SyncReport) error {
	tracking, err := s.carrier.Track(ctx, shipment.TrackingNumber)
	if err != nil {
		return err
	}
	if tracking.Status == shipment.Status {
		return nil
	}

	updates := map[string]any{"status": tracking.Status}
	if tracking.EstimatedArrival != nil {
		updates["estimated_arrival"] = *tracking.EstimatedArrival
	}
	if shipment.ShippedAt == nil && tracking.Status != enums.ShipmentStatusPreTransit {
		now := s.now().UTC()
		updates["shipped_at"] = now
	}

	if tracking.Status != enums.ShipmentStatusDelivered {
		if err := s.repo.Update(ctx, shipment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipment")
		}
		report.Updated++
		return nil
	}

	// The order flips before the shipment row goes terminal. If
	// MarkDelivered refuses (order never marked shipped) or fails
	// transiently, the shipment stays visible to ListNonTerminal and the
	// next run retries the whole step; a replay after the order already
	// delivered is a no-op there.
	last, err := s.otherShipmentsDelivered(ctx, shipment)
	if err != nil {
		return err
	}
	if last {
		if err := s.orders.MarkDelivered(ctx, shipment.OrderID); err != nil {
			return err
		}
	}

	if err := s.repo.Update(ctx, shipment.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipment")
	}
	report.Updated++
	if last {
		report.Delivered++
	}
	return nil
}

func (s *service) otherShipmentsDelivered(ctx context.Context, shipment models.Shipment) (bool, error) {
	siblings, err := s.repo.ListByOrder(ctx, shipment.OrderID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order shipments")
	}
	for _, sibling := range siblings {
		if sibling.ID == shipment.ID {
			continue
		}
		if sibling.Status != enums.ShipmentStatusDelivered {
			return false, nil
		}
	}
	return true, nil
}

// HasOutForDelivery reports whether any shipment for the order has reached
// the last mile, which blocks cancellation and refunds.
func (s *service) HasOutForDelivery(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	return (&Gate{repo: s.repo}).HasOutForDelivery(ctx, tx, orderID)
}
