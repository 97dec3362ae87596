package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"content-panel/internal/models"
	"content-panel/internal/store"
)

// logActivity records an audit row for a mutating request. Audit failures
// are swallowed: the action itself already happened.
func logActivity(db *gorm.DB, c *fiber.Ctx, action, details string) {
	userID, _ := c.Locals("userID").(uint)
	db.Create(&models.ActivityLog{
		UserID:  userID,
		Action:  action,
		Details: details,
		IP:      c.IP(),
	})
}

func userID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// ActivityHandler exposes the audit trail. Listing is admin-only; the rows
// cover every account.
type ActivityHandler struct {
	Store *store.Store
}

func (h *ActivityHandler) List(c *fiber.Ctx) error {
	var logs []models.ActivityLog
	if err := h.Store.DB().Order("created_at desc").Limit(200).Find(&logs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(logs)
}
