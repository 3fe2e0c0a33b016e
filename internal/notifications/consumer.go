package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/vendorahq/vendora-backend/pkg/outbox/idempotency"
	"github.com/vendorahq/vendora-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

const lifecycleNotificationConsumer = "lifecycle-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer materializes order, payment, payout and refund events into
// in-app notification rows. It is best-effort relative to the money
// flows: an unroutable event is acked and dropped, never retried forever.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
	adminUserID  uuid.UUID
}

// NewConsumer builds a lifecycle notification consumer. adminUserID may be
// nil, in which case admin-facing alerts are logged and skipped.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger, adminUserID uuid.UUID) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
		adminUserID:  adminUserID,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, lifecycleNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	rows, err := c.buildNotifications(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	if len(rows) == 0 {
		return processResult{ack: true}
	}

	for i := range rows {
		if err := c.repo.Create(ctx, &rows[i]); err != nil {
			c.logg.Error(logCtx, "notification write failed", err)
			_ = c.idempotency.Delete(ctx, lifecycleNotificationConsumer, eventID)
			return processResult{nack: true}
		}
	}
	c.logg.Info(logCtx, "notifications created")
	return processResult{ack: true}
}

// buildNotifications routes one event to its recipients. Events with no
// route produce nothing, which is deliberate: new event types must not
// wedge the subscription.
func (c *Consumer) buildNotifications(eventType enums.OutboxEventType, data json.RawMessage) ([]models.Notification, error) {
	switch eventType {
	case enums.EventOrderCreated:
		var payload payloads.OrderCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		link := "/orders/" + payload.OrderID.String()
		rows := []models.Notification{newNotification(
			payload.CustomerID, enums.NotificationTypeSuccess,
			"Order placed",
			fmt.Sprintf("Your order %s has been placed.", payload.OrderNumber),
			link,
		)}
		for _, sellerID := range payload.SellerIDs {
			rows = append(rows, newNotification(
				sellerID, enums.NotificationTypeInfo,
				"New order received",
				fmt.Sprintf("Order %s includes items from your store.", payload.OrderNumber),
				"/seller"+link,
			))
		}
		return rows, nil

	case enums.EventOrderCancelled:
		var payload payloads.OrderCancelledEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		message := fmt.Sprintf("Your order %s has been cancelled.", payload.OrderNumber)
		if payload.Reason != "" {
			message = fmt.Sprintf("Your order %s has been cancelled: %s", payload.OrderNumber, payload.Reason)
		}
		return []models.Notification{newNotification(
			payload.CustomerID, enums.NotificationTypeWarning,
			"Order cancelled", message,
			"/orders/"+payload.OrderID.String(),
		)}, nil

	case enums.EventOrderDelivered:
		var payload payloads.OrderDeliveredEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return []models.Notification{newNotification(
			payload.CustomerID, enums.NotificationTypeSuccess,
			"Order delivered",
			fmt.Sprintf("Your order %s has been delivered.", payload.OrderNumber),
			"/orders/"+payload.OrderID.String(),
		)}, nil

	case enums.EventPaymentReceived:
		var payload payloads.PaymentReceivedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return []models.Notification{newNotification(
			payload.CustomerID, enums.NotificationTypeSuccess,
			"Payment received",
			fmt.Sprintf("Payment of %s received for order %s.", payload.Amount.StringFixed(2), payload.OrderNumber),
			"/orders/"+payload.OrderID.String(),
		)}, nil

	case enums.EventPayoutApproved:
		var payload payloads.PayoutApprovedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return []models.Notification{newNotification(
			payload.SellerID, enums.NotificationTypeSuccess,
			"Payout approved",
			fmt.Sprintf("A payout of %s has been approved for order %s.", payload.Net.StringFixed(2), payload.OrderID),
			"/seller/payouts/"+payload.PayoutID.String(),
		)}, nil

	case enums.EventPayoutSkipped:
		var payload payloads.PayoutSkippedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return []models.Notification{newNotification(
			payload.SellerID, enums.NotificationTypeWarning,
			"Payout on hold",
			fmt.Sprintf("Earnings of %s for order %s were not paid out: %s", payload.Net.StringFixed(2), payload.OrderID, payload.Reason),
			"/seller/payouts",
		)}, nil

	case enums.EventPayoutFailedAdminAlert:
		var payload payloads.PayoutFailedAdminAlertEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if c.adminUserID == uuid.Nil {
			return nil, nil
		}
		return []models.Notification{newNotification(
			c.adminUserID, enums.NotificationTypeError,
			"Payout failure needs attention",
			fmt.Sprintf("Payout for seller %s on order %s failed: %s", payload.SellerID, payload.OrderID, payload.Reason),
			"/admin/payouts",
		)}, nil

	case enums.EventRefundRequested:
		var payload payloads.RefundRequestedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return []models.Notification{newNotification(
			payload.CustomerID, enums.NotificationTypeInfo,
			"Refund requested",
			fmt.Sprintf("Your refund of %s is being processed.", payload.Amount.StringFixed(2)),
			"/orders/"+payload.OrderID.String(),
		)}, nil

	case enums.EventRefundSucceeded:
		var payload payloads.RefundSucceededEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return []models.Notification{newNotification(
			payload.CustomerID, enums.NotificationTypeSuccess,
			"Refund completed",
			fmt.Sprintf("Your refund of %s has been credited.", payload.Amount.StringFixed(2)),
			"/orders/"+payload.OrderID.String(),
		)}, nil

	case enums.EventRefundFailed:
		var payload payloads.RefundFailedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		rows := []models.Notification{newNotification(
			payload.CustomerID, enums.NotificationTypeError,
			"Refund delayed",
			"Your refund could not be processed automatically. Our team is looking into it.",
			"/orders/"+payload.OrderID.String(),
		)}
		if c.adminUserID != uuid.Nil {
			rows = append(rows, newNotification(
				c.adminUserID, enums.NotificationTypeError,
				"Refund needs manual intervention",
				fmt.Sprintf("Refund %s failed after %d attempts: %s", payload.RefundRequestID, payload.AttemptCount, payload.Error),
				"/admin/refunds/"+payload.RefundRequestID.String(),
			))
		}
		return rows, nil

	default:
		return nil, nil
	}
}

func newNotification(userID uuid.UUID, kind enums.NotificationType, title, message, link string) models.Notification {
	return models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Message:   message,
		TargetURL: &link,
	}
}
