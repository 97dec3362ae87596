package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"content-panel/internal/store"
)

type DraftHandler struct {
	Store *store.Store
}

func (h *DraftHandler) List(c *fiber.Ctx) error {
	drafts, err := h.Store.ListDrafts(userID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(drafts)
}

func (h *DraftHandler) Get(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ID",
		})
	}

	draft, err := h.Store.GetDraft(uint(id), userID(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Draft not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(draft)
}
