package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pquerna/otp/totp"

	"content-panel/internal/middleware"
	"content-panel/internal/models"
	"content-panel/internal/store"
)

const totpIssuer = "Content Panel"

type AuthHandler struct {
	Store *store.Store
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

type loginResponse struct {
	Token       string       `json:"token,omitempty"`
	User        *userProfile `json:"user,omitempty"`
	Requires2FA bool         `json:"requires_2fa,omitempty"`
}

// userProfile is the account shape returned to the console; secrets and the
// password hash never leave the server.
type userProfile struct {
	ID               uint   `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	DisplayName      string `json:"display_name"`
	Role             string `json:"role"`
	Timezone         string `json:"timezone"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
}

func profileOf(user *models.User) *userProfile {
	return &userProfile{
		ID:               user.ID,
		Username:         user.Username,
		Email:            user.Email,
		DisplayName:      user.DisplayName,
		Role:             user.Role,
		Timezone:         user.Timezone,
		TwoFactorEnabled: user.TwoFactorEnabled,
	}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user, err := h.Store.UserByUsername(req.Username)
	if err != nil || !user.CheckPassword(req.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	if user.TwoFactorEnabled {
		if req.TOTPCode == "" {
			return c.JSON(loginResponse{Requires2FA: true})
		}
		if !totp.Validate(req.TOTPCode, user.TwoFactorSecret) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid 2FA code",
			})
		}
	}

	token, err := middleware.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     "token",
		Value:    token,
		HTTPOnly: true,
		Secure:   false, // behind TLS termination in production
		MaxAge:   86400,
		Path:     "/",
	})

	logActivity(h.Store.DB(), c, "auth.login", user.Username)
	return c.JSON(loginResponse{Token: token, User: profileOf(user)})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "token",
		Value:    "",
		HTTPOnly: true,
		MaxAge:   -1,
		Path:     "/",
	})
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	user, ok := h.currentUser(c)
	if !ok {
		return nil
	}
	return c.JSON(profileOf(user))
}

type updateProfileRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`
}

// UpdateProfile changes the account's own display fields. The timezone set
// here becomes the default for schedules created without an explicit one.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	user, ok := h.currentUser(c)
	if !ok {
		return nil
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unknown timezone",
			})
		}
		user.Timezone = req.Timezone
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.DisplayName != "" {
		user.DisplayName = req.DisplayName
	}

	if err := h.Store.SaveUser(user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logActivity(h.Store.DB(), c, "auth.profile_update", user.Username)
	return c.JSON(profileOf(user))
}

type setup2FAResponse struct {
	Secret string `json:"secret"`
	QRCode string `json:"qr_code"`
}

func (h *AuthHandler) Setup2FA(c *fiber.Ctx) error {
	user, ok := h.currentUser(c)
	if !ok {
		return nil
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Username,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate 2FA secret",
		})
	}

	// Stored but not yet enabled; Verify2FA flips the flag once the user
	// proves they hold the secret.
	user.TwoFactorSecret = key.Secret()
	if err := h.Store.SaveUser(user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save 2FA secret",
		})
	}

	return c.JSON(setup2FAResponse{Secret: key.Secret(), QRCode: key.URL()})
}

type verify2FARequest struct {
	Code string `json:"code"`
}

func (h *AuthHandler) Verify2FA(c *fiber.Ctx) error {
	user, ok := h.currentUser(c)
	if !ok {
		return nil
	}

	var req verify2FARequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if user.TwoFactorSecret == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "2FA not set up",
		})
	}
	if !totp.Validate(req.Code, user.TwoFactorSecret) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid 2FA code",
		})
	}

	user.TwoFactorEnabled = true
	if err := h.Store.SaveUser(user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to enable 2FA",
		})
	}

	logActivity(h.Store.DB(), c, "auth.2fa_enable", user.Username)
	return c.JSON(fiber.Map{"message": "2FA enabled successfully"})
}

func (h *AuthHandler) Disable2FA(c *fiber.Ctx) error {
	user, ok := h.currentUser(c)
	if !ok {
		return nil
	}

	user.TwoFactorEnabled = false
	user.TwoFactorSecret = ""
	if err := h.Store.SaveUser(user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to disable 2FA",
		})
	}

	logActivity(h.Store.DB(), c, "auth.2fa_disable", user.Username)
	return c.JSON(fiber.Map{"message": "2FA disabled successfully"})
}

// currentUser loads the authenticated account and writes the error response
// itself when it fails.
func (h *AuthHandler) currentUser(c *fiber.Ctx) (*models.User, bool) {
	user, err := h.Store.UserByID(userID(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		} else {
			c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return nil, false
	}
	return user, true
}
