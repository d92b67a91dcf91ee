package handlers

import (
	"igaming-lobby-system/middleware"
	"igaming-lobby-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupUserRoutes(app *fiber.App, userService *services.UserService) {
	secured := app.Group("/user", middleware.UserContextMiddleware())

	secured.Get("/me", func(c *fiber.Ctx) error {
		username := c.Locals("username").(string)

		points, err := userService.GetUserPoints(username)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(fiber.Map{
			"username": username,
			"games": fiber.Map{
				"won":   points.GamesWon,
				"lost":  points.GamesPlayed - points.GamesWon,
				"total": points.GamesPlayed,
			},
		})
	})

	secured.Get("/stats", func(c *fiber.Ctx) error {
		username := c.Locals("username").(string)

		stats, err := userService.GetUserStats(username)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(stats)
	})

	secured.Get("/points/history", func(c *fiber.Ctx) error {
		username := c.Locals("username").(string)

		history, err := userService.GetPointHistory(username)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"history": history})
	})
}
