package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"content-panel/internal/config"
	"content-panel/internal/models"
	"content-panel/internal/services/scheduler"
	"content-panel/internal/store"
)

func defaultTimezone() string {
	if tz := config.AppConfig.Engine.DefaultTimezone; tz != "" {
		return tz
	}
	return "UTC"
}

type ScheduleHandler struct {
	Store    *store.Store
	Registry *scheduler.Registry
	Runner   scheduler.Runner
}

// callerTimezone prefers the account's configured zone over the engine
// default for schedules submitted without an explicit one.
func (h *ScheduleHandler) callerTimezone(c *fiber.Ctx) string {
	if user, err := h.Store.UserByID(userID(c)); err == nil && user.Timezone != "" {
		return user.Timezone
	}
	return defaultTimezone()
}

type scheduleRequest struct {
	SiteID         uint   `json:"site_id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Kind           string `json:"kind"`
	TimeOfDay      string `json:"time_of_day"`
	Weekday        int    `json:"weekday"`
	CronExpr       string `json:"cron_expr"`
	Timezone       string `json:"timezone"`
	RunAt          string `json:"run_at"` // RFC3339, one-shot only
	FeedURL        string `json:"feed_url"`
	Topic          string `json:"topic"`
	MaxItemsPerRun int    `json:"max_items_per_run"`
	AutoPublish    bool   `json:"auto_publish"`
	PublishState   string `json:"publish_state"`
}

func (r *scheduleRequest) apply(sched *models.AutomationSchedule, defaultTZ string) error {
	if r.Name == "" || r.SiteID == 0 {
		return errors.New("name and site_id are required")
	}
	if r.FeedURL == "" && r.Topic == "" {
		return errors.New("either feed_url or topic is required")
	}
	if r.Timezone == "" {
		r.Timezone = defaultTZ
	}

	sched.SiteID = r.SiteID
	sched.Name = r.Name
	sched.Description = r.Description
	sched.Kind = models.ScheduleKind(r.Kind)
	sched.TimeOfDay = r.TimeOfDay
	sched.Weekday = r.Weekday
	sched.CronExpr = r.CronExpr
	sched.Timezone = r.Timezone
	sched.FeedURL = r.FeedURL
	sched.Topic = r.Topic
	sched.MaxItemsPerRun = r.MaxItemsPerRun
	sched.AutoPublish = r.AutoPublish
	sched.PublishState = r.PublishState

	if r.RunAt != "" {
		runAt, err := time.Parse(time.RFC3339, r.RunAt)
		if err != nil {
			return errors.New("run_at must be RFC3339")
		}
		utc := runAt.UTC()
		sched.RunAt = &utc
	}

	// Reject malformed recurrence here so it never reaches the store or
	// the registry.
	return scheduler.Validate(sched)
}

func (h *ScheduleHandler) Create(c *fiber.Ctx) error {
	var req scheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	sched := models.AutomationSchedule{
		UserID:   userID(c),
		IsActive: true,
	}
	if err := req.apply(&sched, h.callerTimezone(c)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	nextRun, err := scheduler.NextRun(&sched, time.Now())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	sched.NextRunAt = nextRun

	if err := h.Store.CreateSchedule(&sched); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err := h.Registry.Register(&sched); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logActivity(h.Store.DB(), c, "schedule.create", sched.Name)
	return c.JSON(sched)
}

func (h *ScheduleHandler) List(c *fiber.Ctx) error {
	scheds, err := h.Store.ListSchedules(userID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(scheds)
}

func (h *ScheduleHandler) Get(c *fiber.Ctx) error {
	sched, ok := h.load(c)
	if !ok {
		return nil
	}
	return c.JSON(sched)
}

// Update re-synchronizes the registry: the schedule's old timer is always
// replaced (or removed when paused), so a stale timer never coexists with
// the new recurrence.
func (h *ScheduleHandler) Update(c *fiber.Ctx) error {
	sched, ok := h.load(c)
	if !ok {
		return nil
	}

	var req scheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := req.apply(sched, h.callerTimezone(c)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	nextRun, err := scheduler.NextRun(sched, time.Now())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if sched.IsActive {
		sched.NextRunAt = nextRun
	}

	if err := h.Store.SaveSchedule(sched); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.Registry.Unregister(sched.ID)
	if sched.IsActive {
		if err := h.Registry.Register(sched); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	logActivity(h.Store.DB(), c, "schedule.update", sched.Name)
	return c.JSON(sched)
}

func (h *ScheduleHandler) Delete(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ID",
		})
	}

	// Remove the timer first so nothing fires against a vanishing record.
	h.Registry.Unregister(uint(id))

	if err := h.Store.DeleteSchedule(uint(id), userID(c)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Schedule not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logActivity(h.Store.DB(), c, "schedule.delete", c.Params("id"))
	return c.JSON(fiber.Map{"success": true})
}

// Pause unregisters the timer; an execution already running finishes.
func (h *ScheduleHandler) Pause(c *fiber.Ctx) error {
	sched, ok := h.load(c)
	if !ok {
		return nil
	}

	if err := h.Store.SetScheduleActive(sched.ID, false, nil); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	h.Registry.Unregister(sched.ID)

	logActivity(h.Store.DB(), c, "schedule.pause", sched.Name)
	return c.JSON(fiber.Map{"success": true})
}

func (h *ScheduleHandler) Resume(c *fiber.Ctx) error {
	sched, ok := h.load(c)
	if !ok {
		return nil
	}

	// A resumed one-shot whose time already passed fires immediately on
	// registration, matching create-in-the-past behavior.
	nextRun, err := scheduler.NextRun(sched, time.Now())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err := h.Store.SetScheduleActive(sched.ID, true, nextRun); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	sched.IsActive = true
	if err := h.Registry.Register(sched); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logActivity(h.Store.DB(), c, "schedule.resume", sched.Name)
	return c.JSON(fiber.Map{"success": true})
}

// RunNow fires the pipeline through the same path a timer uses, so manual
// runs show up in execution history identically.
func (h *ScheduleHandler) RunNow(c *fiber.Ctx) error {
	sched, ok := h.load(c)
	if !ok {
		return nil
	}

	exec, err := h.Runner.Run(c.Context(), sched)
	if err != nil {
		if errors.Is(err, store.ErrExecutionRunning) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Schedule already has a running execution",
			})
		}
		status := fiber.StatusInternalServerError
		body := fiber.Map{"error": err.Error()}
		if exec != nil {
			body["execution"] = exec
		}
		return c.Status(status).JSON(body)
	}

	logActivity(h.Store.DB(), c, "schedule.run_now", sched.Name)
	return c.JSON(exec)
}

// load fetches the schedule scoped to the caller and writes the error
// response itself when it fails.
func (h *ScheduleHandler) load(c *fiber.Ctx) (*models.AutomationSchedule, bool) {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ID",
		})
		return nil, false
	}

	sched, err := h.Store.GetScheduleForUser(uint(id), userID(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Schedule not found",
			})
		} else {
			c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return nil, false
	}
	return sched, true
}
