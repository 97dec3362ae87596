package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"content-panel/internal/models"
	"content-panel/internal/store"
)

type PostHandler struct {
	Store *store.Store
}

// Create schedules one post for future publication. The due time arrives
// with the author's timezone and is normalized to UTC for storage; the zone
// name is kept for display.
func (h *PostHandler) Create(c *fiber.Ctx) error {
	type Request struct {
		SiteID        uint     `json:"site_id"`
		DraftID       *uint    `json:"draft_id"`
		Title         string   `json:"title"`
		Body          string   `json:"body"`
		Excerpt       string   `json:"excerpt"`
		Categories    []string `json:"categories"`
		Tags          []string `json:"tags"`
		FeaturedImage string   `json:"featured_image"`
		DueAt         string   `json:"due_at"`   // RFC3339
		Timezone      string   `json:"timezone"` // author display zone
	}

	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Title == "" || req.SiteID == 0 || req.DueAt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title, site_id and due_at are required",
		})
	}

	dueAt, err := time.Parse(time.RFC3339, req.DueAt)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "due_at must be RFC3339",
		})
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown timezone " + req.Timezone,
		})
	}

	post := models.ScheduledPost{
		UserID:         userID(c),
		SiteID:         req.SiteID,
		DraftID:        req.DraftID,
		Title:          req.Title,
		Body:           req.Body,
		Excerpt:        req.Excerpt,
		Categories:     req.Categories,
		Tags:           req.Tags,
		FeaturedImage:  req.FeaturedImage,
		DueAt:          dueAt.UTC(),
		AuthorTimezone: req.Timezone,
		Status:         models.PostStatusPending,
	}
	if err := h.Store.CreateScheduledPost(&post); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logActivity(h.Store.DB(), c, "post.schedule", post.Title)
	return c.JSON(post)
}

func (h *PostHandler) List(c *fiber.Ctx) error {
	posts, err := h.Store.ListScheduledPosts(userID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(posts)
}

func (h *PostHandler) Get(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ID",
		})
	}

	post, err := h.Store.GetScheduledPost(uint(id), userID(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Post not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(post)
}

// Cancel only works while the post is still pending; a claimed or terminal
// post is past the point of no return.
func (h *PostHandler) Cancel(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ID",
		})
	}

	if err := h.Store.CancelScheduledPost(uint(id), userID(c)); err != nil {
		if errors.Is(err, store.ErrNotClaimed) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Post is no longer pending",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logActivity(h.Store.DB(), c, "post.cancel", c.Params("id"))
	return c.JSON(fiber.Map{"success": true})
}

func (h *PostHandler) Reschedule(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ID",
		})
	}

	type Request struct {
		DueAt string `json:"due_at"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	dueAt, err := time.Parse(time.RFC3339, req.DueAt)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "due_at must be RFC3339",
		})
	}

	if err := h.Store.ReschedulePost(uint(id), userID(c), dueAt); err != nil {
		if errors.Is(err, store.ErrNotClaimed) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Post is no longer pending",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logActivity(h.Store.DB(), c, "post.reschedule", c.Params("id"))
	return c.JSON(fiber.Map{"success": true})
}
