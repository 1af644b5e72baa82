package usercontext

import "github.com/gofiber/fiber/v2"

// AccountContext represents the authenticated caller of a request
type AccountContext struct {
	AccountID  string `json:"account_id"`
	Email      string `json:"email"`
	IsLoggedIn bool   `json:"is_logged_in"`
}

// Set stores the account context on the fiber context
func Set(c *fiber.Ctx, acc AccountContext) {
	c.Locals(KeyAccountContext, acc)
}

// GetAccountContext retrieves the account context from fiber context
// Returns an anonymous context if none is set
func GetAccountContext(c *fiber.Ctx) AccountContext {
	if acc, ok := c.Locals(KeyAccountContext).(AccountContext); ok {
		return acc
	}
	return AccountContext{}
}
