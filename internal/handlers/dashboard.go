package handlers

import (
	"github.com/gofiber/fiber/v2"

	"content-panel/internal/services/monitor"
)

type DashboardHandler struct {
	Monitor *monitor.Service
}

func (h *DashboardHandler) GetDashboard(c *fiber.Ctx) error {
	snap, err := h.Monitor.Snapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to collect stats",
		})
	}

	return c.JSON(fiber.Map{
		"stats": snap,
	})
}

func (h *DashboardHandler) GetStats(c *fiber.Ctx) error {
	snap, err := h.Monitor.Snapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to collect stats",
		})
	}
	return c.JSON(snap)
}
