package payouts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/internal/wallet"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type capturingEmitter struct {
	events []outbox.DomainEvent
	seen   map[string]bool
}

func newCapturingEmitter() *capturingEmitter {
	return &capturingEmitter{seen: map[string]bool{}}
}

func (e *capturingEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	e.events = append(e.events, event)
	e.seen[string(event.EventType)+event.AggregateID.String()] = true
	return nil
}

func (e *capturingEmitter) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if e.seen[string(event.EventType)+event.AggregateID.String()] {
		return nil
	}
	return e.Emit(ctx, tx, event)
}

func (e *capturingEmitter) count(eventType enums.OutboxEventType) int {
	var n int
	for _, event := range e.events {
		if event.EventType == eventType {
			n++
		}
	}
	return n
}

type payoutsFixture struct {
	db         *gorm.DB
	repo       Repository
	wallet     wallet.Service
	emitter    *capturingEmitter
	platformID uuid.UUID
}

func newFixture(t *testing.T) *payoutsFixture {
	t.Helper()
	dsn := "file:payouts_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Order{}, &models.OrderItem{}, &models.SellerProfile{},
		&models.Payout{}, &models.Wallet{}, &models.WalletEntry{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	walletSvc, err := wallet.NewService(wallet.NewRepository(db))
	if err != nil {
		t.Fatalf("wallet service: %v", err)
	}
	return &payoutsFixture{
		db:         db,
		repo:       NewRepository(db),
		wallet:     walletSvc,
		emitter:    newCapturingEmitter(),
		platformID: uuid.New(),
	}
}

func (f *payoutsFixture) service(t *testing.T, minimum string) *Service {
	t.Helper()
	svc, err := NewService(Params{
		Logger:            logger.New(logger.Options{ServiceName: "test"}),
		Tx:                testTxRunner{db: f.db},
		Repo:              f.repo,
		Wallet:            f.wallet,
		Outbox:            f.emitter,
		CommissionRate:    decimal.RequireFromString("0.10"),
		MinimumAmount:     decimal.RequireFromString(minimum),
		DelayDays:         7,
		PlatformAccountID: f.platformID,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

type sellerLine struct {
	sellerID  uuid.UUID
	unitPrice string
	quantity  int
}

func (f *payoutsFixture) seedDeliveredOrder(t *testing.T, deliveredAgo time.Duration, lines ...sellerLine) models.Order {
	t.Helper()
	deliveredAt := time.Now().UTC().Add(-deliveredAgo)
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(decimal.RequireFromString(line.unitPrice).Mul(decimal.NewFromInt(int64(line.quantity))))
	}
	order := models.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-20260831-" + uuid.NewString()[:6],
		CustomerID:    uuid.New(),
		TotalAmount:   total,
		Status:        enums.OrderStatusDelivered,
		PaymentStatus: true,
		PaymentMethod: enums.PaymentMethodCard,
		Currency:      enums.CurrencyINR,
		DeliveredAt:   &deliveredAt,
	}
	if err := f.db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	for _, line := range lines {
		item := models.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   uuid.New(),
			SellerID:    line.sellerID,
			ProductName: "widget",
			UnitPrice:   decimal.RequireFromString(line.unitPrice),
			Quantity:    line.quantity,
			Status:      enums.OrderItemStatusDelivered,
		}
		if err := f.db.Create(&item).Error; err != nil {
			t.Fatalf("seed order item: %v", err)
		}
	}
	return order
}

func (f *payoutsFixture) seedSeller(t *testing.T, approved, withBank bool) uuid.UUID {
	t.Helper()
	sellerID := uuid.New()
	profile := models.SellerProfile{
		UserID:       sellerID,
		BusinessName: "Acme Traders",
		IsApproved:   approved,
	}
	if withBank {
		holder, account, ifsc, bank := "Acme Traders", "0011223344", "HDFC0001234", "HDFC Bank"
		profile.AccountHolderName = &holder
		profile.AccountNumber = &account
		profile.IFSCCode = &ifsc
		profile.BankName = &bank
	}
	if err := f.db.Create(&profile).Error; err != nil {
		t.Fatalf("seed seller: %v", err)
	}
	return sellerID
}

func TestRunCreatesApprovedPayoutWithExactSplit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := f.service(t, "100.00")
	ctx := context.Background()

	seller := f.seedSeller(t, true, true)
	order := f.seedDeliveredOrder(t, 8*24*time.Hour, sellerLine{seller, "499.99", 3})

	report, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.PayoutsCreated != 1 || report.Failed != 0 {
		t.Fatalf("report: %+v", report)
	}

	var payout models.Payout
	if err := f.db.First(&payout, "seller_id = ? AND order_id = ?", seller, order.ID).Error; err != nil {
		t.Fatalf("load payout: %v", err)
	}
	if payout.Status != enums.PayoutStatusApproved {
		t.Fatalf("status = %s", payout.Status)
	}

	gross := decimal.RequireFromString("1499.97")
	if !payout.Amount.Add(payout.CommissionAmount).Equal(gross) {
		t.Fatalf("net %s + commission %s != gross %s", payout.Amount, payout.CommissionAmount, gross)
	}
	if !payout.CommissionAmount.Equal(decimal.RequireFromString("150.00")) {
		t.Fatalf("commission = %s", payout.CommissionAmount)
	}
	if payout.BankDetailsSnapshot == nil || *payout.BankDetailsSnapshot != "Acme Traders|HDFC0001234|HDFC Bank" {
		t.Fatalf("snapshot = %v", payout.BankDetailsSnapshot)
	}

	sellerBalance, err := f.wallet.Balance(ctx, seller)
	if err != nil {
		t.Fatalf("seller balance: %v", err)
	}
	if !sellerBalance.Equal(payout.Amount) {
		t.Fatalf("seller balance = %s", sellerBalance)
	}
	platformBalance, err := f.wallet.Balance(ctx, f.platformID)
	if err != nil {
		t.Fatalf("platform balance: %v", err)
	}
	if !platformBalance.Equal(payout.CommissionAmount) {
		t.Fatalf("platform balance = %s", platformBalance)
	}
	if f.emitter.count(enums.EventPayoutApproved) != 1 {
		t.Fatalf("events: %+v", f.emitter.events)
	}
}

func TestRunIsIdempotentAcrossReruns(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := f.service(t, "100.00")
	ctx := context.Background()

	seller := f.seedSeller(t, true, true)
	f.seedDeliveredOrder(t, 8*24*time.Hour, sellerLine{seller, "2000.00", 1})

	for i := 0; i < 3; i++ {
		if _, err := svc.Run(ctx); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	var count int64
	if err := f.db.Model(&models.Payout{}).Count(&count).Error; err != nil {
		t.Fatalf("count payouts: %v", err)
	}
	if count != 1 {
		t.Fatalf("payout rows = %d", count)
	}
	sellerBalance, err := f.wallet.Balance(ctx, seller)
	if err != nil {
		t.Fatalf("seller balance: %v", err)
	}
	if !sellerBalance.Equal(decimal.RequireFromString("1800.00")) {
		t.Fatalf("seller balance = %s", sellerBalance)
	}
}

func TestRunSplitsMultiSellerOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := f.service(t, "100.00")
	ctx := context.Background()

	sellerA := f.seedSeller(t, true, true)
	sellerB := f.seedSeller(t, true, true)
	order := f.seedDeliveredOrder(t, 8*24*time.Hour,
		sellerLine{sellerA, "1000.00", 1},
		sellerLine{sellerB, "300.00", 2},
		sellerLine{sellerA, "500.00", 1},
	)

	report, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.PayoutsCreated != 2 {
		t.Fatalf("report: %+v", report)
	}

	var payoutA models.Payout
	if err := f.db.First(&payoutA, "seller_id = ? AND order_id = ?", sellerA, order.ID).Error; err != nil {
		t.Fatalf("load payout A: %v", err)
	}
	if !payoutA.Amount.Equal(decimal.RequireFromString("1350.00")) {
		t.Fatalf("seller A net = %s", payoutA.Amount)
	}
	var payoutB models.Payout
	if err := f.db.First(&payoutB, "seller_id = ? AND order_id = ?", sellerB, order.ID).Error; err != nil {
		t.Fatalf("load payout B: %v", err)
	}
	if !payoutB.Amount.Equal(decimal.RequireFromString("540.00")) {
		t.Fatalf("seller B net = %s", payoutB.Amount)
	}
}

func TestRunSkipsBelowMinimumWithSingleNotice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := f.service(t, "500.00")
	ctx := context.Background()

	seller := f.seedSeller(t, true, true)
	f.seedDeliveredOrder(t, 8*24*time.Hour, sellerLine{seller, "100.00", 2})

	for i := 0; i < 2; i++ {
		report, err := svc.Run(ctx)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if report.PayoutsCreated != 0 || report.Skipped != 1 {
			t.Fatalf("report %d: %+v", i, report)
		}
	}

	if f.emitter.count(enums.EventPayoutSkipped) != 1 {
		t.Fatalf("skip events = %d", f.emitter.count(enums.EventPayoutSkipped))
	}
	var count int64
	if err := f.db.Model(&models.Payout{}).Count(&count).Error; err != nil {
		t.Fatalf("count payouts: %v", err)
	}
	if count != 0 {
		t.Fatal("below-minimum earnings must not create a payout")
	}
}

func TestRunFlagsSellerWithoutBankDetails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := f.service(t, "100.00")
	ctx := context.Background()

	seller := f.seedSeller(t, true, false)
	f.seedDeliveredOrder(t, 8*24*time.Hour, sellerLine{seller, "900.00", 1})

	report, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.PayoutsCreated != 0 || report.Skipped != 1 {
		t.Fatalf("report: %+v", report)
	}

	var profile models.SellerProfile
	if err := f.db.First(&profile, "user_id = ?", seller).Error; err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if !profile.NeedsAdminReview {
		t.Fatal("seller should be flagged for admin review")
	}
	if f.emitter.count(enums.EventPayoutSkipped) != 1 {
		t.Fatalf("skip events = %d", f.emitter.count(enums.EventPayoutSkipped))
	}
}

func TestRunIgnoresUnapprovedAndRecentOrders(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := f.service(t, "100.00")
	ctx := context.Background()

	unapproved := f.seedSeller(t, false, true)
	f.seedDeliveredOrder(t, 8*24*time.Hour, sellerLine{unapproved, "1000.00", 1})

	fresh := f.seedSeller(t, true, true)
	f.seedDeliveredOrder(t, 2*24*time.Hour, sellerLine{fresh, "1000.00", 1})

	report, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.OrdersScanned != 1 {
		t.Fatalf("orders scanned = %d", report.OrdersScanned)
	}
	var count int64
	if err := f.db.Model(&models.Payout{}).Count(&count).Error; err != nil {
		t.Fatalf("count payouts: %v", err)
	}
	if count != 0 {
		t.Fatal("no payout should be created")
	}
}
