package notifications

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorahq/vendora-backend/pkg/enums"
	"github.com/vendorahq/vendora-backend/pkg/outbox/payloads"
)

func mustMarshal(t *testing.T, payload any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func TestBuildNotificationsFansOutOrderCreated(t *testing.T) {
	t.Parallel()

	adminID := uuid.New()
	consumer := &Consumer{adminUserID: adminID}

	customerID := uuid.New()
	sellerA, sellerB := uuid.New(), uuid.New()
	data := mustMarshal(t, payloads.OrderCreatedEvent{
		OrderID:       uuid.New(),
		OrderNumber:   "ORD-20260831-AB12CD",
		CustomerID:    customerID,
		SellerIDs:     []uuid.UUID{sellerA, sellerB},
		TotalAmount:   decimal.RequireFromString("500.00"),
		PaymentMethod: enums.PaymentMethodCOD,
	})

	rows, err := consumer.buildNotifications(enums.EventOrderCreated, data)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0].UserID != customerID || rows[0].Type != enums.NotificationTypeSuccess {
		t.Fatalf("customer row: %+v", rows[0])
	}
	recipients := map[uuid.UUID]bool{rows[1].UserID: true, rows[2].UserID: true}
	if !recipients[sellerA] || !recipients[sellerB] {
		t.Fatalf("seller rows: %+v", rows[1:])
	}
}

func TestBuildNotificationsRefundFailedAlertsAdmin(t *testing.T) {
	t.Parallel()

	adminID := uuid.New()
	consumer := &Consumer{adminUserID: adminID}

	customerID := uuid.New()
	data := mustMarshal(t, payloads.RefundFailedEvent{
		RefundRequestID: uuid.New(),
		OrderID:         uuid.New(),
		CustomerID:      customerID,
		AttemptCount:    3,
		Error:           "gateway unavailable",
	})

	rows, err := consumer.buildNotifications(enums.EventRefundFailed, data)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0].UserID != customerID || rows[1].UserID != adminID {
		t.Fatalf("recipients: %+v", rows)
	}
	if rows[1].Type != enums.NotificationTypeError {
		t.Fatalf("admin row type = %s", rows[1].Type)
	}
}

func TestBuildNotificationsSkipsAdminAlertWithoutAdmin(t *testing.T) {
	t.Parallel()

	consumer := &Consumer{}
	data := mustMarshal(t, payloads.PayoutFailedAdminAlertEvent{
		SellerID:    uuid.New(),
		OrderID:     uuid.New(),
		FailedCount: 1,
		Reason:      "wallet locked",
	})

	rows, err := consumer.buildNotifications(enums.EventPayoutFailedAdminAlert, data)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %d", len(rows))
	}
}

func TestBuildNotificationsIgnoresUnknownEvents(t *testing.T) {
	t.Parallel()

	consumer := &Consumer{}
	rows, err := consumer.buildNotifications(enums.OutboxEventType("something_else"), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if rows != nil {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestBuildNotificationsRefundSucceededMessage(t *testing.T) {
	t.Parallel()

	consumer := &Consumer{}
	customerID := uuid.New()
	data := mustMarshal(t, payloads.RefundSucceededEvent{
		RefundRequestID: uuid.New(),
		OrderID:         uuid.New(),
		CustomerID:      customerID,
		Amount:          decimal.RequireFromString("450.00"),
		ProcessedAt:     time.Now().UTC(),
	})

	rows, err := consumer.buildNotifications(enums.EventRefundSucceeded, data)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(rows) != 1 || rows[0].UserID != customerID {
		t.Fatalf("rows: %+v", rows)
	}
	if rows[0].Message != "Your refund of 450.00 has been credited." {
		t.Fatalf("message = %q", rows[0].Message)
	}
}
