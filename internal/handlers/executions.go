package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"content-panel/internal/store"
)

type ExecutionHandler struct {
	Store *store.Store
}

// ListForSchedule returns the execution history of one schedule. The
// schedule lookup is owner-scoped so users cannot read each other's runs.
func (h *ExecutionHandler) ListForSchedule(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ID",
		})
	}

	if _, err := h.Store.GetScheduleForUser(uint(id), userID(c)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Schedule not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	execs, err := h.Store.ListExecutions(uint(id))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(execs)
}

func (h *ExecutionHandler) Get(c *fiber.Ctx) error {
	exec, err := h.Store.GetExecution(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Execution not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if _, err := h.Store.GetScheduleForUser(exec.ScheduleID, userID(c)); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Execution not found",
		})
	}
	return c.JSON(exec)
}
