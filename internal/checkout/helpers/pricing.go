package helpers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricedLine pairs a cart item with the product snapshot taken at checkout.
type PricedLine struct {
	CartItem  models.CartItem
	Product   *models.Product
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// PriceCartItems resolves each cart line against its product, freezing the
// effective unit price. Missing or inactive products fail the checkout.
func PriceCartItems(items []models.CartItem, products map[uuid.UUID]*models.Product) ([]PricedLine, error) {
	lines := make([]PricedLine, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok || product == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product no longer exists")
		}
		if !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("product %s is no longer available", product.Name))
		}
		unit := product.EffectivePrice()
		lines = append(lines, PricedLine{
			CartItem:  item,
			Product:   product,
			UnitPrice: unit,
			LineTotal: unit.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	return lines, nil
}

// Subtotal sums the line totals.
func Subtotal(lines []PricedLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.LineTotal)
	}
	return sum
}

// NewOrderNumber produces the human-facing order reference, e.g.
// ORD-20260831-4F2A9C.
func NewOrderNumber(now time.Time) string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read on a healthy system never fails; fall back to a uuid slice.
		return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(uuid.NewString()[:6]))
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(buf)))
}
