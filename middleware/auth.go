package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the verified identity set by the Gateway.
// The lobby trusts these headers completely: credential checks happen
// upstream, never here.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		username := c.Get("X-Username")

		if userID == "" || username == "" {
			log.Printf("[USER_CTX] missing identity headers on %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing user identity — request must come through gateway with auth context",
			})
		}

		c.Locals("user_id", userID)
		c.Locals("username", username)

		return c.Next()
	}
}
