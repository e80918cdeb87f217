package middleware

import (
	"copro-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// RequireAuth ensures a user is in the session. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := CurrentUser(c); !ok {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// CurrentUser returns the session user, if any.
func CurrentUser(c *fiber.Ctx) (*SessionUser, bool) {
	u, ok := c.Locals(userLocal).(*SessionUser)
	return u, ok && u != nil
}

// WithUser puts u in Locals as if it came from the session. Used by tests
// and by callers that authenticate by other means.
func WithUser(u SessionUser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(userLocal, &u)
		return c.Next()
	}
}
