package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/storefront-fulfillment/api/responses"
	stripewebhook "github.com/angelmondragon/storefront-fulfillment/internal/webhooks/stripe"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/metrics"
)

const (
	signatureHeader = "Stripe-Signature"
	maxBodyBytes    = int64(1 << 16)
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeClient interface {
	SigningSecret() string
}

type ackResponse struct {
	Received         bool `json:"received"`
	AlreadyProcessed bool `json:"alreadyProcessed,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// StripeWebhook verifies, deduplicates and dispatches Stripe events. Internal
// fulfillment failures are absorbed by the service; only unexpected errors reach
// the provider as a 500, and those events are forgotten so a redelivery retries.
func StripeWebhook(
	svc StripeWebhookService,
	client stripeClient,
	dedup stripewebhook.Deduplicator,
	recorder *metrics.WebhookMetrics,
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()
		defer func() { recorder.ObserveDuration(time.Since(start)) }()

		if svc == nil || client == nil || dedup == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook not wired"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			fail(ctx, logg, recorder, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get(signatureHeader)
		if sigHeader == "" {
			recorder.IncEvent(metrics.OutcomeInvalidSignature)
			responses.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "No signature"})
			return
		}

		event, err := webhook.ConstructEventWithOptions(payload, sigHeader, client.SigningSecret(), webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "stripe signature verification failed")
			}
			recorder.IncEvent(metrics.OutcomeInvalidSignature)
			responses.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid signature"})
			return
		}
		if logg != nil {
			ctx = logg.WithEventID(ctx, event.ID)
			ctx = logg.WithField(ctx, "event_type", string(event.Type))
		}

		alreadyProcessed, err := dedup.CheckAndMark(ctx, event.ID)
		if err != nil {
			fail(ctx, logg, recorder, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check event idempotency"))
			return
		}
		if alreadyProcessed {
			if logg != nil {
				logg.Info(ctx, "stripe event already processed")
			}
			recorder.IncEvent(metrics.OutcomeDuplicate)
			responses.WriteJSON(w, http.StatusOK, ackResponse{Received: true, AlreadyProcessed: true})
			return
		}

		if err := dispatch(ctx, svc, &event); err != nil {
			if ferr := dedup.Forget(context.WithoutCancel(ctx), event.ID); ferr != nil && logg != nil {
				logg.Error(ctx, "forget stripe event", ferr)
			}
			fail(ctx, logg, recorder, w, err)
			return
		}

		if stripewebhook.Fulfills(event.Type) {
			recorder.IncEvent(metrics.OutcomeProcessed)
		} else {
			recorder.IncEvent(metrics.OutcomeIgnored)
		}
		if logg != nil {
			logg.Info(ctx, "stripe event processed")
		}
		responses.WriteJSON(w, http.StatusOK, ackResponse{Received: true})
	}
}

func dispatch(ctx context.Context, svc StripeWebhookService, event *stripe.Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("panic: %v", rec))
		}
	}()
	return svc.HandleEvent(ctx, event)
}

func fail(ctx context.Context, logg *logger.Logger, recorder *metrics.WebhookMetrics, w http.ResponseWriter, err error) {
	recorder.IncEvent(metrics.OutcomeFailed)
	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
		logg.Error(ctx, "stripe webhook failed", err)
	}
	responses.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "Webhook handler failed"})
}
