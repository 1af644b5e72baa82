package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/ScreenShow/internal/pkg/credentials"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/usercontext"
)

const requestTimeout = 15 * time.Second

type SecretIssuer interface {
	Issue(ctx context.Context, accountID string, force bool) (*credentials.IssueResult, error)
}

type SecretVerifier interface {
	Verify(ctx context.Context, email, secret string) (*credentials.Verification, error)
}

type VerifyRecorder interface {
	VerifyResult(ctx context.Context, result string)
}

// SecretController serves /generate-secret and /verify-secret.
type SecretController struct {
	issuer   SecretIssuer
	verifier SecretVerifier
	results  VerifyRecorder
}

func NewSecretController(issuer SecretIssuer, verifier SecretVerifier) *SecretController {
	return &SecretController{issuer: issuer, verifier: verifier}
}

// WithRecorder counts verification results.
func (h *SecretController) WithRecorder(rec VerifyRecorder) *SecretController {
	h.results = rec
	return h
}

type generateSecretRequest struct {
	Force bool `json:"force"`
}

type generateSecretResponse struct {
	Created bool   `json:"created"`
	Secret  string `json:"secret,omitempty"`
	Preview string `json:"preview"`
}

type verifySecretRequest struct {
	Email  string `json:"email" validate:"required,max=320"`
	Secret string `json:"secret" validate:"required,max=256"`
}

type verifySecretResponse struct {
	Valid            bool       `json:"valid"`
	Reason           string     `json:"reason,omitempty"`
	UserID           string     `json:"userId,omitempty"`
	Plan             string     `json:"plan,omitempty"`
	Status           string     `json:"status,omitempty"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	EffectivePlan    string     `json:"effective_plan,omitempty"`
}

// HandleGenerateSecret issues a secret for the authenticated caller. A body
// that is not valid JSON is treated as {"force": false}.
func (h *SecretController) HandleGenerateSecret(c *fiber.Ctx) error {
	acc := usercontext.GetAccountContext(c)
	if !acc.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	var req generateSecretRequest
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			req = generateSecretRequest{}
		}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	res, err := h.issuer.Issue(ctx, acc.AccountID, req.Force)
	if err != nil {
		if errors.Is(err, credentials.ErrPlanRequired) {
			return jsonError(c, fiber.StatusForbidden, "plan_required", "an active paid plan is required to generate a secret")
		}
		log.Error().Err(err).Str("account_id", acc.AccountID).Msg("secret issuance failed")
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "failed to generate secret")
	}

	return c.Status(fiber.StatusOK).JSON(generateSecretResponse{
		Created: res.Created,
		Secret:  res.Secret,
		Preview: res.Preview,
	})
}

// HandleVerifySecret checks an email/secret pair. Any well-formed request is
// answered with 200; validity is reported in the body.
func (h *SecretController) HandleVerifySecret(c *fiber.Ctx) error {
	var req verifySecretRequest
	if err := decodeBody(c, &req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	v, err := h.verifier.Verify(ctx, req.Email, req.Secret)
	if err != nil {
		log.Error().Err(err).Msg("secret verification failed")
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "failed to verify secret")
	}

	h.record(ctx, v)

	if !v.Valid {
		return c.Status(fiber.StatusOK).JSON(verifySecretResponse{Valid: false, Reason: v.Reason})
	}
	return c.Status(fiber.StatusOK).JSON(verifySecretResponse{
		Valid:            true,
		UserID:           v.AccountID,
		Plan:             v.Plan,
		Status:           v.Status,
		CurrentPeriodEnd: v.CurrentPeriodEnd,
		EffectivePlan:    v.EffectivePlan,
	})
}

func (h *SecretController) record(ctx context.Context, v *credentials.Verification) {
	if h.results == nil {
		return
	}
	result := v.Reason
	if v.Valid {
		result = "valid"
	}
	h.results.VerifyResult(ctx, result)
}
