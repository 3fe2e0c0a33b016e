package orders

import (
	"context"
	"testing"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestCanTransitionTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to enums.OrderStatus
		want     bool
	}{
		{enums.OrderStatusPending, enums.OrderStatusProcessing, true},
		{enums.OrderStatusPending, enums.OrderStatusCancelled, true},
		{enums.OrderStatusPending, enums.OrderStatusShipped, false},
		{enums.OrderStatusProcessing, enums.OrderStatusShipped, true},
		{enums.OrderStatusProcessing, enums.OrderStatusCancelled, true},
		{enums.OrderStatusProcessing, enums.OrderStatusDelivered, false},
		{enums.OrderStatusShipped, enums.OrderStatusDelivered, true},
		{enums.OrderStatusShipped, enums.OrderStatusCancelled, false},
		{enums.OrderStatusShipped, enums.OrderStatusReturned, true},
		{enums.OrderStatusDelivered, enums.OrderStatusReturned, true},
		{enums.OrderStatusDelivered, enums.OrderStatusShipped, false},
		{enums.OrderStatusCancelled, enums.OrderStatusPending, false},
		{enums.OrderStatusReturned, enums.OrderStatusDelivered, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type capturingPublisher struct {
	events []outbox.DomainEvent
}

func (p *capturingPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	p.events = append(p.events, event)
	return nil
}

type stubShippingGate struct {
	outForDelivery bool
}

func (g stubShippingGate) HasOutForDelivery(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	return g.outForDelivery, nil
}

type ordersFixture struct {
	db        *gorm.DB
	publisher *capturingPublisher
}

func newFixture(t *testing.T, outForDelivery bool) (*ordersFixture, Service) {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.Product{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	publisher := &capturingPublisher{}
	svc, err := NewService(
		NewRepository(db),
		testTxRunner{db: db},
		publisher,
		stubShippingGate{outForDelivery: outForDelivery},
		NewStockReleaser(),
	)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return &ordersFixture{db: db, publisher: publisher}, svc
}

func (f *ordersFixture) seedOrder(t *testing.T, status enums.OrderStatus, itemCount int) models.Order {
	t.Helper()
	order := models.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-20260831-" + uuid.NewString()[:6],
		CustomerID:    uuid.New(),
		TotalAmount:   decimal.RequireFromString("300.00"),
		Status:        status,
		PaymentMethod: enums.PaymentMethodCOD,
		Currency:      enums.CurrencyINR,
	}
	if err := f.db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	for i := 0; i < itemCount; i++ {
		product := models.Product{
			ID:            uuid.New(),
			SellerID:      uuid.New(),
			Name:          "Widget",
			Price:         decimal.RequireFromString("100.00"),
			StockQuantity: 0,
			IsActive:      true,
		}
		if err := f.db.Create(&product).Error; err != nil {
			t.Fatalf("seed product: %v", err)
		}
		productID := product.ID
		item := models.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   &productID,
			SellerID:    product.SellerID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Quantity:    2,
			Status:      enums.OrderItemStatusPending,
		}
		if err := f.db.Create(&item).Error; err != nil {
			t.Fatalf("seed item: %v", err)
		}
	}
	return order
}

func TestCancelRestoresStockAndSyncsItems(t *testing.T) {
	t.Parallel()

	f, svc := newFixture(t, false)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderStatusPending, 2)

	err := svc.Cancel(ctx, CancelInput{OrderID: order.ID, CustomerID: order.CustomerID, Reason: "changed my mind"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	var reloaded models.Order
	if err := f.db.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusCancelled {
		t.Fatalf("status = %s", reloaded.Status)
	}

	var items []models.OrderItem
	if err := f.db.Find(&items, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load items: %v", err)
	}
	for _, item := range items {
		if item.Status != enums.OrderItemStatusCancelled {
			t.Fatalf("item %s status = %s", item.ID, item.Status)
		}
		var product models.Product
		if err := f.db.First(&product, "id = ?", *item.ProductID).Error; err != nil {
			t.Fatalf("reload product: %v", err)
		}
		if product.StockQuantity != item.Quantity {
			t.Fatalf("stock not restored: %d", product.StockQuantity)
		}
	}

	if len(f.publisher.events) != 1 || f.publisher.events[0].EventType != enums.EventOrderCancelled {
		t.Fatalf("unexpected events: %+v", f.publisher.events)
	}
}

func TestCancelBlockedWhileOutForDelivery(t *testing.T) {
	t.Parallel()

	f, svc := newFixture(t, true)
	order := f.seedOrder(t, enums.OrderStatusProcessing, 1)

	err := svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, CustomerID: order.CustomerID})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelRejectsShippedOrder(t *testing.T) {
	t.Parallel()

	f, svc := newFixture(t, false)
	order := f.seedOrder(t, enums.OrderStatusShipped, 1)

	err := svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, CustomerID: order.CustomerID})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	t.Parallel()

	f, svc := newFixture(t, false)
	order := f.seedOrder(t, enums.OrderStatusCancelled, 0)

	if err := svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, CustomerID: order.CustomerID}); err != nil {
		t.Fatalf("cancel already-cancelled order: %v", err)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("no event expected on replay, got %+v", f.publisher.events)
	}
}

func TestMarkDeliveredSetsTimestamp(t *testing.T) {
	t.Parallel()

	f, svc := newFixture(t, false)
	order := f.seedOrder(t, enums.OrderStatusShipped, 1)

	if err := svc.MarkDelivered(context.Background(), order.ID); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	var reloaded models.Order
	if err := f.db.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusDelivered || reloaded.DeliveredAt == nil {
		t.Fatalf("unexpected state: status=%s delivered_at=%v", reloaded.Status, reloaded.DeliveredAt)
	}

	var items []models.OrderItem
	if err := f.db.Find(&items, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load items: %v", err)
	}
	for _, item := range items {
		if item.Status != enums.OrderItemStatusDelivered {
			t.Fatalf("item status = %s", item.Status)
		}
	}

	if len(f.publisher.events) != 1 || f.publisher.events[0].EventType != enums.EventOrderDelivered {
		t.Fatalf("unexpected events: %+v", f.publisher.events)
	}
}

func TestUpdateStatusRespectsTransitionTable(t *testing.T) {
	t.Parallel()

	f, svc := newFixture(t, false)
	order := f.seedOrder(t, enums.OrderStatusPending, 1)

	err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusShipped,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	if err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusProcessing,
	}); err != nil {
		t.Fatalf("processing transition: %v", err)
	}

	var reloaded models.Order
	if err := f.db.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusProcessing {
		t.Fatalf("status = %s", reloaded.Status)
	}
}
