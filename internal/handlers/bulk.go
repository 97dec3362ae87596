package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"content-panel/internal/models"
	"content-panel/internal/services/bulk"
	"content-panel/internal/store"
)

type BulkHandler struct {
	Queue *bulk.Queue
	Store *store.Store
}

// Submit accepts the operation and returns its ID immediately; progress is
// polled via Get.
func (h *BulkHandler) Submit(c *fiber.Ctx) error {
	type Request struct {
		SiteID     uint            `json:"site_id"`
		Kind       string          `json:"kind"`
		TargetType string          `json:"target_type"`
		TargetIDs  []int64         `json:"target_ids"`
		Payload    json.RawMessage `json:"payload"`
	}

	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.SiteID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "site_id is required",
		})
	}

	id, err := h.Queue.Submit(bulk.SubmitRequest{
		UserID:     userID(c),
		SiteID:     req.SiteID,
		Kind:       models.BulkOperationKind(req.Kind),
		TargetType: req.TargetType,
		TargetIDs:  req.TargetIDs,
		Payload:    req.Payload,
	})
	if err != nil {
		if errors.Is(err, bulk.ErrQueueFull) {
			// The record exists and stays pending; tell the caller to retry
			// polling rather than resubmitting.
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":        "Engine is saturated, operation queued as pending",
				"operation_id": id,
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logActivity(h.Store.DB(), c, "bulk.submit", id)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"operation_id": id})
}

func (h *BulkHandler) List(c *fiber.Ctx) error {
	ops, err := h.Store.ListBulkOperations(userID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(ops)
}

func (h *BulkHandler) Get(c *fiber.Ctx) error {
	op, err := h.Queue.Status(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Operation not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if op.UserID != userID(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Operation not found",
		})
	}
	return c.JSON(op)
}

func (h *BulkHandler) Cancel(c *fiber.Ctx) error {
	err := h.Queue.Cancel(c.Params("id"), userID(c))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Operation not found",
			})
		case errors.Is(err, store.ErrTerminal):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Operation already finished",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	logActivity(h.Store.DB(), c, "bulk.cancel", c.Params("id"))
	return c.JSON(fiber.Map{"success": true})
}
