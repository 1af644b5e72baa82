package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/ScreenShow/internal/pkg/billing"
)

type EventHandler interface {
	HandleEvent(ctx context.Context, ev *billing.Event) (billing.Outcome, error)
}

type OutcomeRecorder interface {
	WebhookOutcome(ctx context.Context, outcome string)
}

// WebhookController serves /stripe-webhook.
type WebhookController struct {
	verifier billing.EventVerifier
	events   EventHandler
	outcomes OutcomeRecorder
}

func NewWebhookController(verifier billing.EventVerifier, events EventHandler) *WebhookController {
	return &WebhookController{verifier: verifier, events: events}
}

// WithRecorder counts handled events by outcome.
func (h *WebhookController) WithRecorder(rec OutcomeRecorder) *WebhookController {
	h.outcomes = rec
	return h
}

// HandleStripeWebhook verifies the signature over the raw body before
// anything is stored. Processing failures answer 500 so Stripe redelivers.
func (h *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)

	ev, err := h.verifier.ConstructEvent(payload, c.Get("Stripe-Signature"))
	if err != nil {
		log.Warn().Err(err).Msg("rejected stripe webhook")
		return jsonError(c, fiber.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	outcome, err := h.events.HandleEvent(ctx, ev)
	if err != nil {
		log.Error().Err(err).Str("event_id", ev.ID).Str("event_type", ev.Type).Msg("stripe webhook processing failed")
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "webhook processing failed")
	}

	if h.outcomes != nil {
		h.outcomes.WebhookOutcome(ctx, string(outcome))
	}
	log.Info().Str("event_id", ev.ID).Str("event_type", ev.Type).Str("outcome", string(outcome)).Msg("stripe webhook handled")
	return c.Status(fiber.StatusOK).SendString("ok")
}
