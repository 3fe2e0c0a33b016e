package shipping

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
)

// Gate answers whether an order has a shipment on the last mile. It only
// needs the repository, so callers that never sync tracking can use it
// without wiring the carrier client.
type Gate struct {
	repo Repository
}

// NewGate builds a repository-backed shipment gate.
func NewGate(repo Repository) (*Gate, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipment repository required")
	}
	return &Gate{repo: repo}, nil
}

// HasOutForDelivery reports whether any shipment for the order has reached
// the last mile, which blocks cancellation and refunds.
func (g *Gate) HasOutForDelivery(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	repo := g.repo
	if tx != nil {
		repo = g.repo.WithTx(tx)
	}
	count, err := repo.CountByOrderAndStatus(ctx, orderID, []enums.ShipmentStatus{
		enums.ShipmentStatusOutForDelivery,
		enums.ShipmentStatusDelivered,
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count shipments")
	}
	return count > 0, nil
}
