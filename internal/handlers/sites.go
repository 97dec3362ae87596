package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"content-panel/internal/models"
)

type SiteHandler struct {
	DB *gorm.DB
}

func (h *SiteHandler) List(c *fiber.Ctx) error {
	var sites []models.Site
	if err := h.DB.Where("user_id = ?", userID(c)).Order("created_at desc").Find(&sites).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(sites)
}

func (h *SiteHandler) Create(c *fiber.Ctx) error {
	type Request struct {
		Name                string `json:"name"`
		BaseURL             string `json:"base_url"`
		APIUsername         string `json:"api_username"`
		APIToken            string `json:"api_token"`
		DefaultPublishState string `json:"default_publish_state"`
	}

	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Name == "" || req.BaseURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name and base_url are required",
		})
	}
	if req.DefaultPublishState == "" {
		req.DefaultPublishState = "draft"
	}

	site := models.Site{
		UserID:              userID(c),
		Name:                req.Name,
		BaseURL:             req.BaseURL,
		APIUsername:         req.APIUsername,
		APIToken:            req.APIToken,
		DefaultPublishState: req.DefaultPublishState,
	}
	if err := h.DB.Create(&site).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logActivity(h.DB, c, "site.create", site.Name)
	return c.JSON(site)
}

func (h *SiteHandler) Get(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ID",
		})
	}

	var site models.Site
	if err := h.DB.First(&site, "id = ? AND user_id = ?", id, userID(c)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Site not found",
		})
	}
	return c.JSON(site)
}

func (h *SiteHandler) Delete(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ID",
		})
	}

	res := h.DB.Where("id = ? AND user_id = ?", id, userID(c)).Delete(&models.Site{})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": res.Error.Error(),
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Site not found",
		})
	}

	logActivity(h.DB, c, "site.delete", c.Params("id"))
	return c.JSON(fiber.Map{"success": true})
}
