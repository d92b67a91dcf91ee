package middleware

import (
	"log"
	"strings"

	"igaming-lobby-system/services"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware validates the `token` query param via the auth service.
// EventSource clients cannot set headers, so the stream endpoint carries its
// token in the query string instead of the gateway identity headers.
//
// Usage:
//
//	app.Get("/lobby/events", middleware.SSEAuthMiddleware(authClient), lobbyService.StreamLobbyEventsSSE)
func SSEAuthMiddleware(authClient *services.AuthServiceClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))

		if accessToken == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token in query",
			})
		}

		resp, err := authClient.ValidateToken(accessToken)
		if err != nil {
			log.Printf("[SSEAuth] validation failed for %s: %v", c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals("user_id", resp.UserID)
		c.Locals("username", resp.Username)

		return c.Next()
	}
}
