package handlers

import (
	"github.com/elearnhq/elearn-api/database"
	"github.com/gofiber/fiber/v2"
)

// HandleCheckHealth reports whether the API and its database are up
func HandleCheckHealth(store database.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := store.HealthCheck(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
