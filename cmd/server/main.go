// Package main provides the entry point for the docrelay server
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/reviewdeck/docrelay/internal/api"
	"github.com/reviewdeck/docrelay/internal/cache"
	"github.com/reviewdeck/docrelay/internal/config"
	"github.com/reviewdeck/docrelay/internal/events"
	"github.com/reviewdeck/docrelay/internal/fetcher"
	"github.com/reviewdeck/docrelay/internal/relay"
	"github.com/reviewdeck/docrelay/internal/remote"
	"github.com/reviewdeck/docrelay/internal/viewer"
	"github.com/reviewdeck/docrelay/pkg/logging"
	"github.com/reviewdeck/docrelay/pkg/pdfinfo"
)

func main() {
	logConfig := logging.DefaultLogConfig()
	logConfig.Level = getEnv("LOG_LEVEL", "info")
	logConfig.Format = getEnv("LOG_FORMAT", "json")
	if err := logging.SetupLogger(logConfig); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Settings store with its persisted record
	settingsPath := getEnv("DOCRELAY_SETTINGS_PATH", "./data/settings.json")
	store := config.NewStore(settingsPath)

	// Document cache with periodic sweep
	documentCache := cache.New(cache.DefaultTTL)
	documentCache.Start(ctx, cache.DefaultSweepInterval)

	// Remote client and fetch coordinator
	client := remote.NewClient(remote.DefaultClientConfig())
	metrics := fetcher.NewMetricsCollector()
	coordinator := fetcher.NewCoordinator(store, documentCache, client, metrics)

	// Presentation surface
	manager := viewer.NewManager(coordinator, pdfinfo.NewDecoder())

	// Host integration events: open-document requests land in the viewer
	bus := events.NewBus(64)
	defer bus.Close()
	bus.Subscribe([]events.EventType{events.EventOpenDocument}, func(ctx context.Context, event *events.Event) error {
		_, err := manager.Open(ctx, event.DocumentID, event.Page, event.DisplayName)
		return err
	})
	bus.Subscribe([]events.EventType{events.EventListDocuments}, func(ctx context.Context, event *events.Event) error {
		busLogger := logging.GetLogger("events")
		busLogger.Debug().Int("open_tabs", len(manager.ListDocuments())).Msg("Document list requested")
		return nil
	})

	// Disabling the integration tears down the open tabs
	store.Subscribe(func(s config.Settings) {
		if s.Enabled {
			return
		}
		for _, snap := range manager.List() {
			_ = manager.Close(snap.DocumentID)
		}
	})

	// Relay dispatcher behind the HTTP boundary
	dispatcher := relay.NewDispatcher(store, coordinator, client, manager)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:               "docrelay API",
		DisableStartupMessage: false,
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

	// Middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${error}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "UTC",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: getEnv("CORS_ORIGINS", "*"),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	h := api.NewHandlers(dispatcher, store, documentCache, metrics, bus)
	setupRoutes(app, h)

	// Viewer surface on its own listener
	viewerAPI := viewer.NewAPI(manager, &viewer.APIConfig{
		Host:       getEnv("VIEWER_HOST", "localhost"),
		Port:       getEnvInt("VIEWER_PORT", 8081),
		BasePath:   "/viewer/v1",
		EnableCORS: true,
	})
	go func() {
		if err := viewerAPI.Start(); err != nil {
			log.Fatalf("Failed to start viewer API: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		stop()
		if err := app.Shutdown(); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	port := getEnv("PORT", "8080")
	log.Printf("Starting docrelay server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupRoutes configures all API routes
func setupRoutes(app *fiber.App, h *api.Handlers) {
	app.Get("/health", h.Health)

	v1 := app.Group("/api/v1")

	// The relay boundary: one endpoint, typed request envelopes
	v1.Post("/relay", h.Relay)

	// Config surface
	conf := v1.Group("/config")
	conf.Get("/", h.GetConfig)
	conf.Put("/", h.SetConfig)
	conf.Post("/test", h.TestConnection)

	// REST alias for document fetch
	v1.Post("/documents/:id/fetch", h.FetchDocument)

	// Host integration event ingress
	v1.Post("/events/open", h.OpenEvent)
	v1.Post("/events/list", h.ListEvent)

	// Counters
	v1.Get("/stats", h.Stats)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "docrelay",
			"version": "0.1.0",
		})
	})
}

// getEnv retrieves an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			return n
		}
	}
	return defaultValue
}
