package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"content-panel/internal/collab/remote"
	"content-panel/internal/config"
	"content-panel/internal/database"
	"content-panel/internal/handlers"
	"content-panel/internal/middleware"
	"content-panel/internal/models"
	"content-panel/internal/services/bulk"
	"content-panel/internal/services/monitor"
	"content-panel/internal/services/pipeline"
	"content-panel/internal/services/scheduler"
	"content-panel/internal/services/sweeper"
	ws "content-panel/internal/services/websocket"
	"content-panel/internal/store"
)

func main() {
	// Load .env file if exists
	godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log.Level)

	if _, err := database.Connect(cfg.Database.Path); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(database.DB); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	createDefaultAdmin(cfg, log)

	st := store.New(database.DB)

	// Root context for all background services; a signal cancels it and the
	// services drain before the process exits.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timeout := cfg.Engine.CollaboratorTimeout
	generator := remote.NewAIClient(cfg.Providers.ContentAPIURL, cfg.Providers.ContentAPIKey, cfg.Providers.ContentModel, timeout)
	imageClient := remote.NewImageClient(cfg.Providers.ImageAPIURL, cfg.Providers.ImageAPIKey, timeout)
	publisher := remote.NewWPPublisher(timeout)
	feeds := remote.NewFeedClient(timeout)

	pipe := pipeline.New(
		pipeline.Config{CallTimeout: timeout},
		st, generator, generator, imageClient, publisher, feeds, log,
	)

	registry := scheduler.NewRegistry(st, pipe, log)
	registry.Start(ctx)
	if err := registry.ReconcileAll(); err != nil {
		log.Error().Err(err).Msg("schedule reconcile failed")
	}
	defer registry.Stop()

	sweep := sweeper.New(sweeper.Config{
		Interval:    cfg.Engine.SweepInterval,
		MaxAttempts: cfg.Engine.MaxPublishAttempts,
		CallTimeout: timeout,
	}, st, publisher, log)
	go sweep.Start(ctx)

	queue := bulk.NewQueue(bulk.Config{
		Workers:     cfg.Engine.BulkWorkers,
		QueueSize:   cfg.Engine.BulkQueueSize,
		ItemDelay:   cfg.Engine.BulkItemDelay,
		CallTimeout: timeout,
	}, st, publisher, log)
	if err := queue.Start(ctx); err != nil {
		log.Error().Err(err).Msg("bulk queue recovery failed")
	}
	defer queue.Wait()

	mon := monitor.NewService(st, registry)
	hub := ws.NewHub(mon)
	go hub.Run(ctx)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: false,
	}))

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	setupRoutes(app, st, registry, pipe, queue, mon, hub)

	// Serve in the background so the signal context drives shutdown.
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info().Str("addr", addr).Msg("content panel listening")
		if err := app.Listen(addr); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}

func setupRoutes(app *fiber.App, st *store.Store, registry *scheduler.Registry,
	pipe *pipeline.Pipeline, queue *bulk.Queue, mon *monitor.Service, hub *ws.Hub) {

	authH := &handlers.AuthHandler{Store: st}
	dashboardH := &handlers.DashboardHandler{Monitor: mon}
	siteH := &handlers.SiteHandler{DB: st.DB()}
	postH := &handlers.PostHandler{Store: st}
	bulkH := &handlers.BulkHandler{Queue: queue, Store: st}
	scheduleH := &handlers.ScheduleHandler{Store: st, Registry: registry, Runner: pipe}
	executionH := &handlers.ExecutionHandler{Store: st}
	draftH := &handlers.DraftHandler{Store: st}
	activityH := &handlers.ActivityHandler{Store: st}

	// API routes - Public
	api := app.Group("/api")
	api.Post("/auth/login", authH.Login)

	// API routes - Protected
	protected := api.Group("/", middleware.AuthRequired())
	protected.Post("/auth/logout", authH.Logout)
	protected.Get("/auth/profile", authH.Profile)
	protected.Put("/auth/profile", authH.UpdateProfile)
	protected.Post("/auth/2fa/setup", authH.Setup2FA)
	protected.Post("/auth/2fa/verify", authH.Verify2FA)
	protected.Post("/auth/2fa/disable", authH.Disable2FA)

	// Dashboard API
	protected.Get("/dashboard", dashboardH.GetDashboard)
	protected.Get("/engine/stats", dashboardH.GetStats)

	// Sites API
	protected.Get("/sites", siteH.List)
	protected.Post("/sites", siteH.Create)
	protected.Get("/sites/:id", siteH.Get)
	protected.Delete("/sites/:id", siteH.Delete)

	// Scheduled posts API
	protected.Get("/posts", postH.List)
	protected.Post("/posts", postH.Create)
	protected.Get("/posts/:id", postH.Get)
	protected.Post("/posts/:id/cancel", postH.Cancel)
	protected.Post("/posts/:id/reschedule", postH.Reschedule)

	// Bulk operations API
	protected.Get("/bulk", bulkH.List)
	protected.Post("/bulk", bulkH.Submit)
	protected.Get("/bulk/:id", bulkH.Get)
	protected.Post("/bulk/:id/cancel", bulkH.Cancel)

	// Automation schedules API
	protected.Get("/schedules", scheduleH.List)
	protected.Post("/schedules", scheduleH.Create)
	protected.Get("/schedules/:id", scheduleH.Get)
	protected.Put("/schedules/:id", scheduleH.Update)
	protected.Delete("/schedules/:id", scheduleH.Delete)
	protected.Post("/schedules/:id/pause", scheduleH.Pause)
	protected.Post("/schedules/:id/resume", scheduleH.Resume)
	protected.Post("/schedules/:id/run", scheduleH.RunNow)
	protected.Get("/schedules/:id/executions", executionH.ListForSchedule)

	// Executions and drafts API
	protected.Get("/executions/:id", executionH.Get)
	protected.Get("/drafts", draftH.List)
	protected.Get("/drafts/:id", draftH.Get)

	// Audit trail, admin only
	protected.Get("/activity", middleware.AdminRequired(), activityH.List)

	// WebSocket stats stream
	app.Get("/ws/stats", websocket.New(hub.Handle))
}

func createDefaultAdmin(cfg *config.Config, log zerolog.Logger) {
	var count int64
	database.DB.Model(&models.User{}).Count(&count)
	if count > 0 {
		return
	}

	admin := models.User{
		Username: cfg.Admin.Username,
		Email:    cfg.Admin.Email,
		Role:     models.RoleAdmin,
	}
	admin.SetPassword(cfg.Admin.Password)

	if err := database.DB.Create(&admin).Error; err != nil {
		log.Error().Err(err).Msg("failed to create default admin")
	} else {
		log.Info().Str("username", cfg.Admin.Username).Msg("default admin user created")
	}
}
