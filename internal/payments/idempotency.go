package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vendorahq/vendora-backend/pkg/redis"
)

// WebhookGuard deduplicates gateway webhook deliveries by event id. Razorpay
// redelivers until it sees a 2xx, so replays are routine rather than rare.
type WebhookGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

// NewWebhookGuard builds a Redis-backed webhook dedupe guard.
func NewWebhookGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*WebhookGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &WebhookGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports whether the event was already handled, marking it as
// handled otherwise.
func (g *WebhookGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete releases the mark so a failed delivery can be retried.
func (g *WebhookGuard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	return g.store.Del(ctx, key)
}
