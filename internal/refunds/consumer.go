package refunds

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/vendorahq/vendora-backend/pkg/outbox/idempotency"
	"github.com/vendorahq/vendora-backend/pkg/outbox/payloads"
)

const refundProcessorConsumer = "refund-processor"

type refundProcessor interface {
	Process(ctx context.Context, refundRequestID uuid.UUID) error
}

// Consumer drains refund.requested events and hands each one to the
// Processor. Unlike the notification consumer this one is part of the
// money path: a processing failure nacks the message so the broker
// redelivers it, and the Processor's own attempt counter decides when
// to give up for good.
type Consumer struct {
	processor    refundProcessor
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

func NewConsumer(processor refundProcessor, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if processor == nil {
		return nil, fmt.Errorf("refund processor required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("refunds subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		processor:    processor,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
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

	if eventType != enums.EventRefundRequested {
		// The refunds topic should only carry refund.requested, but a
		// misrouted event must not wedge the subscription.
		c.logg.Info(logCtx, "ignoring unexpected event type")
		return processResult{ack: true}
	}

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

	var payload payloads.RefundRequestedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	if payload.RefundRequestID == uuid.Nil {
		c.logg.Warn(logCtx, "payload missing refund request id")
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, refundProcessorConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.processor.Process(ctx, payload.RefundRequestID); err != nil {
		c.logg.Error(logCtx, "refund processing failed", err)
		_ = c.idempotency.Delete(ctx, refundProcessorConsumer, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithField(logCtx, "refund_request_id", payload.RefundRequestID.String()), "refund request processed")
	return processResult{ack: true}
}
