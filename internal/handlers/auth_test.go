package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"content-panel/internal/config"
	"content-panel/internal/database"
	"content-panel/internal/models"
	"content-panel/internal/services/scheduler"
	"content-panel/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	st := store.New(db)
	user := &models.User{Username: "casey", Email: "casey@example.com", Role: models.RoleEditor}
	require.NoError(t, user.SetPassword("secret"))
	require.NoError(t, st.DB().Create(user).Error)
	require.NoError(t, st.DB().Create(&models.Site{
		UserID: 1, Name: "blog", BaseURL: "https://blog.example",
	}).Error)
	return st
}

// newTestApp wires the handlers behind a middleware stub that plays the
// role of the JWT layer.
func newTestApp(st *store.Store, reg *scheduler.Registry) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(1))
		return c.Next()
	})
	authH := &AuthHandler{Store: st}
	schedH := &ScheduleHandler{Store: st, Registry: reg}
	app.Put("/api/auth/profile", authH.UpdateProfile)
	app.Post("/api/schedules", schedH.Create)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func TestProfileTimezoneBecomesScheduleDefault(t *testing.T) {
	_, err := config.Load("does-not-exist.yaml")
	require.NoError(t, err)

	st := newTestStore(t)
	reg := scheduler.NewRegistry(st, nil, zerolog.Nop())
	app := newTestApp(st, reg)

	resp := doJSON(t, app, http.MethodPut, "/api/auth/profile", map[string]string{
		"timezone":     "Europe/Berlin",
		"display_name": "Casey",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var profile userProfile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&profile))
	assert.Equal(t, "Europe/Berlin", profile.Timezone)
	assert.Equal(t, "Casey", profile.DisplayName)

	// A schedule created without an explicit timezone inherits the
	// account's zone instead of the engine default.
	resp = doJSON(t, app, http.MethodPost, "/api/schedules", map[string]interface{}{
		"site_id":     1,
		"name":        "daily news",
		"kind":        "daily",
		"time_of_day": "06:00",
		"topic":       "go",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sched models.AutomationSchedule
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sched))
	assert.Equal(t, "Europe/Berlin", sched.Timezone)
}

func TestUpdateProfileRejectsUnknownTimezone(t *testing.T) {
	_, err := config.Load("does-not-exist.yaml")
	require.NoError(t, err)

	st := newTestStore(t)
	app := newTestApp(st, scheduler.NewRegistry(st, nil, zerolog.Nop()))

	resp := doJSON(t, app, http.MethodPut, "/api/auth/profile", map[string]string{
		"timezone": "Mars/Olympus_Mons",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
