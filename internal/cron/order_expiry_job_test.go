package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/internal/orders"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
)

type expiryTxRunner struct {
	db *gorm.DB
}

func (r expiryTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type expiryCapturingEmitter struct {
	events []outbox.DomainEvent
}

func (e *expiryCapturingEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	e.events = append(e.events, event)
	return nil
}

type expiryFixture struct {
	db      *gorm.DB
	emitter *expiryCapturingEmitter
	job     *orderExpiryJob
}

func newExpiryFixture(t *testing.T) *expiryFixture {
	t.Helper()
	dsn := "file:order_expiry_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.Product{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	emitter := &expiryCapturingEmitter{}
	jobIface, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		DB:     expiryTxRunner{db: db},
		Orders: orders.NewRepository(db),
		Outbox: emitter,
		TTL:    2,
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	job, ok := jobIface.(*orderExpiryJob)
	if !ok {
		t.Fatalf("unexpected job type %T", jobIface)
	}
	return &expiryFixture{db: db, emitter: emitter, job: job}
}

func (f *expiryFixture) seedOrder(t *testing.T, createdAgo time.Duration, status enums.OrderStatus, paid bool) (models.Order, uuid.UUID) {
	t.Helper()
	product := models.Product{
		ID:            uuid.New(),
		SellerID:      uuid.New(),
		Name:          "widget",
		Price:         decimal.RequireFromString("100.00"),
		StockQuantity: 0,
		IsActive:      true,
	}
	if err := f.db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	order := models.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-20260831-" + uuid.NewString()[:6],
		CustomerID:    uuid.New(),
		TotalAmount:   decimal.RequireFromString("200.00"),
		Status:        status,
		PaymentStatus: paid,
		PaymentMethod: enums.PaymentMethodCard,
		Currency:      enums.CurrencyINR,
	}
	if err := f.db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	createdAt := time.Now().UTC().Add(-createdAgo)
	if err := f.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		UpdateColumn("created_at", createdAt).Error; err != nil {
		t.Fatalf("backdate order: %v", err)
	}
	item := models.OrderItem{
		ID:          uuid.New(),
		OrderID:     order.ID,
		ProductID:   product.ID,
		SellerID:    product.SellerID,
		ProductName: product.Name,
		UnitPrice:   product.Price,
		Quantity:    2,
		Status:      enums.OrderItemStatusPending,
	}
	if err := f.db.Create(&item).Error; err != nil {
		t.Fatalf("seed order item: %v", err)
	}
	return order, product.ID
}

func TestOrderExpiryJobCancelsStaleUnpaidOrders(t *testing.T) {
	t.Parallel()

	f := newExpiryFixture(t)
	order, productID := f.seedOrder(t, 3*24*time.Hour, enums.OrderStatusPending, false)

	if err := f.job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	var reloaded models.Order
	if err := f.db.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusCancelled {
		t.Fatalf("status = %s", reloaded.Status)
	}

	var item models.OrderItem
	if err := f.db.First(&item, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}
	if item.Status != enums.OrderItemStatusCancelled {
		t.Fatalf("item status = %s", item.Status)
	}

	var product models.Product
	if err := f.db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if product.StockQuantity != 2 {
		t.Fatalf("stock = %d, want released quantity", product.StockQuantity)
	}

	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType != enums.EventOrderCancelled {
		t.Fatalf("events: %+v", f.emitter.events)
	}
}

func TestOrderExpiryJobLeavesFreshAndPaidOrdersAlone(t *testing.T) {
	t.Parallel()

	f := newExpiryFixture(t)
	fresh, _ := f.seedOrder(t, 6*time.Hour, enums.OrderStatusPending, false)
	paid, _ := f.seedOrder(t, 5*24*time.Hour, enums.OrderStatusPending, true)
	processing, _ := f.seedOrder(t, 5*24*time.Hour, enums.OrderStatusProcessing, true)

	if err := f.job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, id := range []uuid.UUID{fresh.ID, paid.ID, processing.ID} {
		var reloaded models.Order
		if err := f.db.First(&reloaded, "id = ?", id).Error; err != nil {
			t.Fatalf("reload order: %v", err)
		}
		if reloaded.Status == enums.OrderStatusCancelled {
			t.Fatalf("order %s should not be cancelled", id)
		}
	}
	if len(f.emitter.events) != 0 {
		t.Fatalf("events: %+v", f.emitter.events)
	}
}
