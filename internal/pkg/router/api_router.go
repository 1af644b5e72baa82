package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/ScreenShow/app/controllers"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/identity"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/middleware"
)

// Dependencies carries everything the routers need. LimiterStorage may be
// nil to keep limiter state in memory.
type Dependencies struct {
	Identity identity.Provider
	Secrets  *controllers.SecretController
	Checkout *controllers.CheckoutController
	Webhook  *controllers.WebhookController
	Health   *controllers.HealthController

	AllowOrigins     string
	LimiterStorage   fiber.Storage
	VerifyRateLimit  int
	VerifyRateWindow time.Duration
}

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	origins := h.deps.AllowOrigins
	if origins == "" {
		origins = "*"
	}
	api := app.Group("", cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Authorization, Content-Type, Stripe-Signature",
	}))

	requireIdentity := middleware.RequireIdentity(h.deps.Identity)

	api.Post("/generate-secret", requireIdentity, h.deps.Secrets.HandleGenerateSecret)
	api.Post("/verify-secret", h.verifyLimiter(), h.deps.Secrets.HandleVerifySecret)
	api.Post("/create-checkout", requireIdentity, h.deps.Checkout.HandleCreateCheckout)
	api.Post("/stripe-webhook", h.deps.Webhook.HandleStripeWebhook)
}

// verifyLimiter throttles secret guessing per client address.
func (h ApiRouter) verifyLimiter() fiber.Handler {
	max := h.deps.VerifyRateLimit
	if max <= 0 {
		max = 30
	}
	window := h.deps.VerifyRateWindow
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   window,
		KeyGenerator: func(c *fiber.Ctx) string { return "verify:" + middleware.ClientIP(c) },
		LimitReached: func(c *fiber.Ctx) error {
			log.Warn().Str("ip", middleware.ClientIP(c)).Msg("verify-secret rate limit reached")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "too_many_requests",
				"message": "rate limit exceeded",
			})
		},
		Storage: h.deps.LimiterStorage,
	})
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}

// SystemRouter serves operational endpoints.
type SystemRouter struct {
	deps Dependencies
}

func (h SystemRouter) InstallRouter(app *fiber.App) {
	if h.deps.Health != nil {
		app.Get("/healthz", h.deps.Health.HandleHealthz)
	}
}

func NewSystemRouter(deps Dependencies) *SystemRouter {
	return &SystemRouter{deps: deps}
}
