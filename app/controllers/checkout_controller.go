package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/ScreenShow/internal/pkg/billing"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/usercontext"
)

type CheckoutStarter interface {
	Start(ctx context.Context, in billing.CheckoutInput) (string, error)
}

// CheckoutController serves /create-checkout.
type CheckoutController struct {
	checkout CheckoutStarter
}

func NewCheckoutController(checkout CheckoutStarter) *CheckoutController {
	return &CheckoutController{checkout: checkout}
}

type createCheckoutRequest struct {
	PriceKey   string `json:"priceKey" validate:"required"`
	SuccessURL string `json:"successUrl" validate:"omitempty,url"`
	CancelURL  string `json:"cancelUrl" validate:"omitempty,url"`
}

type createCheckoutResponse struct {
	URL string `json:"url"`
}

func (h *CheckoutController) HandleCreateCheckout(c *fiber.Ctx) error {
	acc := usercontext.GetAccountContext(c)
	if !acc.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	var req createCheckoutRequest
	if err := decodeBody(c, &req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	url, err := h.checkout.Start(ctx, billing.CheckoutInput{
		AccountID:  acc.AccountID,
		Email:      acc.Email,
		PriceKey:   req.PriceKey,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		var upErr *billing.UpstreamError
		switch {
		case errors.Is(err, billing.ErrUnknownPriceKey):
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "unknown price key")
		case errors.Is(err, billing.ErrPriceNotConfigured):
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "price is not available")
		case errors.As(err, &upErr):
			log.Error().Err(err).Str("account_id", acc.AccountID).Msg("stripe checkout failed")
			return jsonError(c, fiber.StatusInternalServerError, "upstream_error", "payment provider request failed")
		default:
			log.Error().Err(err).Str("account_id", acc.AccountID).Msg("checkout failed")
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "failed to create checkout")
		}
	}

	return c.Status(fiber.StatusOK).JSON(createCheckoutResponse{URL: url})
}
