package handlers

import (
	"errors"

	"igaming-lobby-system/middleware"
	"igaming-lobby-system/services"

	"github.com/gofiber/fiber/v2"
)

// SelectNumberRequest is the body of POST /lobby/select.
type SelectNumberRequest struct {
	LuckyNumber int `json:"luckyNumber"`
}

func SetupLobbyRoutes(app *fiber.App, lobbyService *services.LobbyService, userService *services.UserService, authClient *services.AuthServiceClient) {
	// SSE stream authenticates via query token (EventSource cannot send
	// headers), so it is registered ahead of the header-auth group.
	app.Get("/lobby/events", middleware.SSEAuthMiddleware(authClient), lobbyService.StreamLobbyEventsSSE)

	secured := app.Group("/lobby", middleware.UserContextMiddleware())

	secured.Post("/join", func(c *fiber.Ctx) error {
		username := c.Locals("username").(string)

		resp, err := lobbyService.Join(username)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(resp)
	})

	secured.Post("/select", func(c *fiber.Ctx) error {
		username := c.Locals("username").(string)

		var req SelectNumberRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Please select a lucky number"})
		}

		resp, err := lobbyService.SelectNumber(username, req.LuckyNumber)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(resp)
	})

	secured.Get("/active", func(c *fiber.Ctx) error {
		username := c.Locals("username").(string)

		resp := lobbyService.GetCurrentRound(username)
		if resp == nil {
			// No round yet: empty view, not an error.
			return c.JSON(fiber.Map{"lobby": fiber.Map{}})
		}
		return c.JSON(fiber.Map{"lobby": resp})
	})

	secured.Get("/leaderboard", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 10)

		leaderboard, err := userService.Leaderboard(limit)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"leaderboard": leaderboard})
	})
}

// statusForError maps the service error taxonomy onto HTTP statuses. The
// services never know about transport codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrPlayerNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrPersistence):
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusBadRequest
	}
}
