package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vendorahq/vendora-backend/api/responses"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/metrics"
)

const razorpayProvider = "razorpay"

type RazorpayWebhookService interface {
	SettleCaptured(ctx context.Context, gatewayOrderID, gatewayPaymentID string, raw json.RawMessage) error
}

type EventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type SignatureVerifier interface {
	VerifyWebhookSignature(body []byte, signature string) bool
}

type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// RazorpayWebhook settles captured payments reported by the gateway.
// Deliveries are retried by Razorpay until a 2xx, so processing is
// deduplicated by the gateway event id before any state changes.
func RazorpayWebhook(svc RazorpayWebhookService, verifier SignatureVerifier, guard EventGuard, wm *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		started := time.Now()
		defer func() { wm.ObserveDuration(razorpayProvider, time.Since(started)) }()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "razorpay client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get("X-Razorpay-Signature")
		if signature == "" {
			wm.IncOutcome(razorpayProvider, "invalid")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "razorpay signature missing"))
			return
		}
		if !verifier.VerifyWebhookSignature(payload, signature) {
			wm.IncOutcome(razorpayProvider, "invalid")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid webhook signature"))
			return
		}

		eventID := r.Header.Get("X-Razorpay-Event-Id")
		if eventID == "" {
			wm.IncOutcome(razorpayProvider, "invalid")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "razorpay event id missing"))
			return
		}

		var event razorpayEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			wm.IncOutcome(razorpayProvider, "invalid")
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		// Only captures move money; other events are acknowledged so the
		// gateway stops redelivering them.
		if event.Event != "payment.captured" {
			wm.IncOutcome(razorpayProvider, "ignored")
			responses.WriteSuccess(w, nil)
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			wm.IncOutcome(razorpayProvider, "duplicate")
			responses.WriteSuccess(w, nil)
			return
		}

		entity := event.Payload.Payment.Entity
		if err := svc.SettleCaptured(ctx, entity.OrderID, entity.ID, payload); err != nil {
			_ = guard.Delete(ctx, eventID)
			wm.IncOutcome(razorpayProvider, "failed")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		wm.IncOutcome(razorpayProvider, "processed")
		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("razorpay event %s processed", eventID))
		}
		responses.WriteSuccess(w, nil)
	}
}
