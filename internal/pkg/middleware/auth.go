package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/ScreenShow/internal/pkg/identity"
	"github.com/ManuelReschke/ScreenShow/internal/pkg/usercontext"
)

// RequireIdentity verifies the Authorization bearer token with the identity
// provider and stores the caller in the account context. Missing or invalid
// tokens are answered with JSON 401.
func RequireIdentity(provider identity.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := identity.BearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return unauthorized(c, "missing bearer token")
		}

		acc, err := provider.Authenticate(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, identity.ErrUnauthenticated) {
				return unauthorized(c, "invalid identity token")
			}
			log.Error().Err(err).Str("path", c.Path()).Msg("identity provider unavailable")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "internal_server_error",
				"message": "identity verification failed",
			})
		}

		usercontext.Set(c, usercontext.AccountContext{
			AccountID:  acc.ID,
			Email:      acc.Email,
			IsLoggedIn: true,
		})
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "unauthorized",
		"message": msg,
	})
}
