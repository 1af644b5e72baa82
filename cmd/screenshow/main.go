package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/ScreenShow/app/controllers"
	"github.com/ManuelReschke/ScreenShow/app/repository"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/billing"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/cache"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/credentials"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/database"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/digest"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/env"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/identity"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/logging"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/router"
)

func main() {
	app, err := NewApplication()
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func NewApplication() (*fiber.App, error) {
	envFile, loaded := env.SetupEnvFile()
	logging.Setup(env.GetEnv("LOG_LEVEL", "info"), env.IsDev())
	if loaded {
		log.Info().Str("file", envFile).Msg("loaded env file")
	}

	// The pepper is checked first so a misconfigured instance never serves.
	engine, err := digest.New(env.GetEnv("SECRET_PEPPER", ""))
	if err != nil {
		return nil, err
	}

	if err := database.SetupDatabase(); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	idp, err := identity.NewFirebaseProvider(ctx, identity.FirebaseConfig{
		ProjectID:       env.GetEnv("FIREBASE_PROJECT_ID", ""),
		CredentialsFile: env.GetEnv("FIREBASE_CREDENTIALS", ""),
	})
	if err != nil {
		return nil, fmt.Errorf("identity provider: %w", err)
	}

	stripeProcessor := billing.NewStripeProcessor(
		env.GetEnv("STRIPE_SECRET_KEY", ""),
		env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		nil,
	)
	billingRepo := billing.NewRepository(database.GetDB())
	billingSvc := billing.NewService(billingRepo, stripeProcessor)
	checkout := billing.NewCheckoutService(billingRepo, stripeProcessor, billing.CheckoutConfig{
		Prices:        billing.PriceTableFromEnv(),
		PublicBaseURL: env.GetEnv("PUBLIC_DOMAIN", billing.DefaultPublicBaseURL),
	})

	credRepo := repository.GetGlobalFactory().GetCredentialRepository()
	issuer := credentials.NewIssuer(credRepo, engine, billingSvc, nil)
	verifier := credentials.NewVerifier(idp, credRepo, engine, billingSvc)

	secrets := controllers.NewSecretController(issuer, verifier)
	webhooks := controllers.NewWebhookController(stripeProcessor, billingSvc)

	deps := router.Dependencies{
		Identity: idp,
		Secrets:  secrets,
		Checkout: controllers.NewCheckoutController(checkout),
		Webhook:  webhooks,
		Health: controllers.NewHealthController(
			controllers.HealthCheck{Name: "database", Check: database.Ping},
			controllers.HealthCheck{Name: "cache", Check: cache.Ping},
		),
		AllowOrigins:     env.GetEnv("CORS_ALLOW_ORIGINS", "*"),
		VerifyRateLimit:  env.GetEnvInt("VERIFY_RATE_LIMIT", 30),
		VerifyRateWindow: time.Minute,
	}
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()
	if err := cache.Ping(pingCtx); err == nil {
		deps.LimiterStorage = cache.LimiterStorage()
		counters := counter.New(cache.GetClient())
		secrets.WithRecorder(counters)
		webhooks.WithRecorder(counters)
	} else {
		log.Warn().Err(err).Msg("rate limiter falls back to in-memory storage")
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "screenshow",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), requestid.New(), logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		Output: os.Stdout,
	}))

	// SWAGGER / OPENAPI
	if docs, ok := findDocs(); ok {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: docs,
			Path:     "v1",
			Title:    "ScreenShow API",
		}))
	} else {
		log.Warn().Msg("openapi document not found, /docs/api/v1 disabled")
	}

	// ROUTER
	router.InstallRouter(app, deps)

	return app, nil
}

// findDocs locates the OpenAPI document from the repo root or cmd/screenshow.
func findDocs() (string, bool) {
	for _, base := range []string{"./", "../../", "../../../"} {
		p := base + "public/docs/v1/openapi.yml"
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}
