package reservation

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockRequest asks for a quantity of one product.
type StockRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// ReserveStock decrements stock for every request inside the caller's
// transaction and returns the locked product rows keyed by id, so callers
// snapshot prices from the same rows the availability check saw. Each row
// is locked before the check so two concurrent checkouts cannot both pass
// it; requests are locked in product-id order so two checkouts over the
// same products never wait on each other in a cycle. Any shortfall fails
// the whole call; the caller's transaction rollback restores earlier
// decrements.
func ReserveStock(ctx context.Context, tx *gorm.DB, requests []StockRequest) (map[uuid.UUID]*models.Product, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock reservation")
	}

	ordered := make([]StockRequest, len(requests))
	copy(ordered, requests)
	sort.SliceStable(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i].ProductID[:], ordered[j].ProductID[:]) < 0
	})

	locked := make(map[uuid.UUID]*models.Product, len(ordered))
	for _, req := range ordered {
		if req.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}

		var product models.Product
		err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", req.ProductID).
			First(&product).Error
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock product")
		}

		if product.StockQuantity < req.Qty {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").WithDetails(map[string]any{
				"product_id":   product.ID,
				"product_name": product.Name,
				"available":    product.StockQuantity,
				"requested":    req.Qty,
			})
		}

		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND stock_quantity >= ?", product.ID, req.Qty).
			Update("stock_quantity", gorm.Expr("stock_quantity - ?", req.Qty))
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
		}
		if res.RowsAffected == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("stock changed while reserving %s", product.Name))
		}

		if _, ok := locked[product.ID]; !ok {
			locked[product.ID] = &product
		}
	}
	return locked, nil
}

// ReleaseStock returns previously reserved quantities, used when an order
// is cancelled before shipping. Rows are touched in product-id order for
// the same deadlock-avoidance reason as ReserveStock.
func ReleaseStock(ctx context.Context, tx *gorm.DB, requests []StockRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock release")
	}
	ordered := make([]StockRequest, len(requests))
	copy(ordered, requests)
	sort.SliceStable(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i].ProductID[:], ordered[j].ProductID[:]) < 0
	})
	for _, req := range ordered {
		if req.ProductID == uuid.Nil || req.Qty <= 0 {
			continue
		}
		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", req.ProductID).
			Update("stock_quantity", gorm.Expr("stock_quantity + ?", req.Qty))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
		}
	}
	return nil
}
