package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/vendorahq/vendora-backend/internal/cart"
	"github.com/vendorahq/vendora-backend/internal/coupons"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/vendorahq/vendora-backend/pkg/razorpay"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

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

type stubGateway struct {
	orderIDs  []string
	created   int
	createErr error
	validSig  string
}

func (g *stubGateway) CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string, notes map[string]interface{}) (*razorpay.Order, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	id := fmt.Sprintf("order_stub_%d", g.created)
	if g.created < len(g.orderIDs) {
		id = g.orderIDs[g.created]
	}
	g.created++
	return &razorpay.Order{ID: id, Amount: razorpay.ToMinorUnits(amount), Currency: "INR"}, nil
}

func (g *stubGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return signature == g.validSig
}

type paymentsFixture struct {
	db        *gorm.DB
	svc       Service
	gateway   *stubGateway
	publisher *capturingPublisher
}

func newFixture(t *testing.T) *paymentsFixture {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Order{}, &models.Transaction{},
		&models.Cart{}, &models.CartItem{}, &models.Coupon{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	gw := &stubGateway{validSig: "good-signature"}
	publisher := &capturingPublisher{}
	svc, err := NewService(
		logger.New(logger.Options{ServiceName: "test"}),
		testTxRunner{db: db},
		NewRepository(db),
		cart.NewRepository(db),
		coupons.NewRepository(db),
		gw,
		publisher,
	)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return &paymentsFixture{db: db, svc: svc, gateway: gw, publisher: publisher}
}

func (f *paymentsFixture) seedOrder(t *testing.T, status enums.OrderStatus, paid bool) models.Order {
	t.Helper()
	order := models.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-20260831-" + uuid.NewString()[:6],
		CustomerID:    uuid.New(),
		TotalAmount:   decimal.RequireFromString("750.00"),
		Status:        status,
		PaymentStatus: paid,
		PaymentMethod: enums.PaymentMethodCard,
		Currency:      enums.CurrencyINR,
	}
	if err := f.db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestCreateIntentPersistsPendingTransaction(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	order := f.seedOrder(t, enums.OrderStatusPending, false)

	intent, err := f.svc.CreateIntent(context.Background(), order.ID, order.CustomerID)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.GatewayOrderID == "" {
		t.Fatal("missing gateway order id")
	}
	if !intent.Amount.Equal(order.TotalAmount) {
		t.Fatalf("amount = %s", intent.Amount)
	}

	var txn models.Transaction
	if err := f.db.First(&txn, "payment_id = ?", intent.GatewayOrderID).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.Status != enums.TransactionStatusPending || txn.OrderID != order.ID {
		t.Fatalf("unexpected transaction: %+v", txn)
	}
}

func TestCreateIntentRejectsCancelledAndForeignOrders(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cancelled := f.seedOrder(t, enums.OrderStatusCancelled, false)

	_, err := f.svc.CreateIntent(context.Background(), cancelled.ID, cancelled.CustomerID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	open := f.seedOrder(t, enums.OrderStatusPending, false)
	_, err = f.svc.CreateIntent(context.Background(), open.ID, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateIntentAlreadyPaid(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	order := f.seedOrder(t, enums.OrderStatusProcessing, true)

	_, err := f.svc.CreateIntent(context.Background(), order.ID, order.CustomerID)
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
	if f.gateway.created != 0 {
		t.Fatal("no gateway order should be created for a paid order")
	}
}

func TestVerifyPaymentFlipsStateOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderStatusPending, false)
	intent, err := f.svc.CreateIntent(ctx, order.ID, order.CustomerID)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	record := models.Cart{ID: uuid.New(), CustomerID: order.CustomerID}
	if err := f.db.Create(&record).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	item := models.CartItem{ID: uuid.New(), CartID: record.ID, ProductID: uuid.New(), Quantity: 1}
	if err := f.db.Create(&item).Error; err != nil {
		t.Fatalf("seed cart item: %v", err)
	}

	input := VerifyPaymentInput{
		GatewayOrderID:   intent.GatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        "good-signature",
		RawPayload:       json.RawMessage(`{"id":"pay_123"}`),
	}
	if err := f.svc.VerifyPayment(ctx, input); err != nil {
		t.Fatalf("verify: %v", err)
	}

	var reloaded models.Order
	if err := f.db.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if !reloaded.PaymentStatus || reloaded.Status != enums.OrderStatusProcessing {
		t.Fatalf("unexpected order state: %+v", reloaded)
	}

	var txn models.Transaction
	if err := f.db.First(&txn, "payment_id = ?", intent.GatewayOrderID).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.Status != enums.TransactionStatusSuccess || len(txn.GatewayResponse) == 0 {
		t.Fatalf("unexpected transaction: %+v", txn)
	}

	var itemCount int64
	if err := f.db.Model(&models.CartItem{}).Where("cart_id = ?", record.ID).Count(&itemCount).Error; err != nil {
		t.Fatalf("count cart items: %v", err)
	}
	if itemCount != 0 {
		t.Fatal("cart should be cleared after payment")
	}

	// Replay must be a clean no-op.
	if err := f.svc.VerifyPayment(ctx, input); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].EventType != enums.EventPaymentReceived {
		t.Fatalf("unexpected events: %+v", f.publisher.events)
	}
}

func TestVerifyPaymentRejectsBadSignature(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderStatusPending, false)
	intent, err := f.svc.CreateIntent(ctx, order.ID, order.CustomerID)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	err = f.svc.VerifyPayment(ctx, VerifyPaymentInput{
		GatewayOrderID:   intent.GatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        "forged",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	var txn models.Transaction
	if err := f.db.First(&txn, "payment_id = ?", intent.GatewayOrderID).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.Status != enums.TransactionStatusPending {
		t.Fatal("bad signature must not mutate state")
	}
}

func TestVerifyPaymentUnknownTransaction(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	err := f.svc.VerifyPayment(context.Background(), VerifyPaymentInput{
		GatewayOrderID:   "order_never_created",
		GatewayPaymentID: "pay_123",
		Signature:        "good-signature",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVerifyPaymentRefusesCancelledOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderStatusPending, false)
	intent, err := f.svc.CreateIntent(ctx, order.ID, order.CustomerID)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	if err := f.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("status", enums.OrderStatusCancelled).Error; err != nil {
		t.Fatalf("cancel order: %v", err)
	}

	err = f.svc.VerifyPayment(ctx, VerifyPaymentInput{
		GatewayOrderID:   intent.GatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        "good-signature",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

// lateCancelRepo flips the order to cancelled at the moment settlement
// asks for the locked row, modeling a cancellation that committed just
// before the lock was granted.
type lateCancelRepo struct {
	Repository
	tx *gorm.DB
}

func (r *lateCancelRepo) WithTx(tx *gorm.DB) Repository {
	return &lateCancelRepo{Repository: r.Repository.WithTx(tx), tx: tx}
}

func (r *lateCancelRepo) FindOrderByIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if r.tx != nil {
		err := r.tx.Model(&models.Order{}).
			Where("id = ?", orderID).
			Update("status", enums.OrderStatusCancelled).Error
		if err != nil {
			return nil, err
		}
	}
	return r.Repository.FindOrderByIDForUpdate(ctx, orderID)
}

func TestVerifyPaymentObservesCancelUnderLock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderStatusPending, false)
	intent, err := f.svc.CreateIntent(ctx, order.ID, order.CustomerID)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	publisher := &capturingPublisher{}
	racing, err := NewService(
		logger.New(logger.Options{ServiceName: "test"}),
		testTxRunner{db: f.db},
		&lateCancelRepo{Repository: NewRepository(f.db)},
		cart.NewRepository(f.db),
		coupons.NewRepository(f.db),
		f.gateway,
		publisher,
	)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	err = racing.VerifyPayment(ctx, VerifyPaymentInput{
		GatewayOrderID:   intent.GatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        "good-signature",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	var reloaded models.Order
	if err := f.db.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.PaymentStatus {
		t.Fatal("cancelled order must not be marked paid")
	}
	if len(publisher.events) != 0 {
		t.Fatalf("no payment event may be emitted: %+v", publisher.events)
	}
}

func TestVerifyPaymentCorrectsCODOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderStatusPending, false)
	if err := f.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("payment_method", enums.PaymentMethodCOD).Error; err != nil {
		t.Fatalf("set cod: %v", err)
	}

	intent, err := f.svc.CreateIntent(ctx, order.ID, order.CustomerID)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	err = f.svc.VerifyPayment(ctx, VerifyPaymentInput{
		GatewayOrderID:   intent.GatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        "good-signature",
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	var reloaded models.Order
	if err := f.db.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.PaymentMethod != enums.PaymentMethodCard {
		t.Fatalf("payment method = %s, want card", reloaded.PaymentMethod)
	}
}
