package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/video-transcript/internal/app"
	"github.com/codebuildervaibhav/video-transcript/internal/cleanup"
	"github.com/codebuildervaibhav/video-transcript/internal/config"
	"github.com/codebuildervaibhav/video-transcript/internal/handlers"
	"github.com/codebuildervaibhav/video-transcript/internal/logging"
)

const version = "1.0.0"

func main() {
	if err := run("config/config.yaml"); err != nil {
		os.Exit(1)
	}
}

// run returns only after every deferred shutdown step has finished.
func run(configPath string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fallbackLog := logging.New("info", "json")
		fallbackLog.Error().Err(err).Msg("Failed to load config")
		return err
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return err
	}

	log.Info().Msg("Initializing components...")

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	components, err := app.New(initCtx, cfg, log)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize components")
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close job registry")
		}
	}()

	// Cleanup scheduler
	cleanupScheduler := cleanup.NewScheduler(
		cfg.Storage.ScratchDir,
		components.Registry,
		cfg.Cleanup.IntervalMinutes,
		cfg.Cleanup.MaxAgeHours,
		log.With().Str("component", "cleanup").Logger(),
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	server := newServer(components, log)

	addr := cfg.Addr()
	log.Info().
		Str("addr", addr).
		Str("fallback_policy", cfg.Fallback.Policy).
		Strs("endpoints", []string{
			"GET /video-info/:video_id",
			"GET /ws/video-info/:video_id",
			"GET /jobs",
			"GET /jobs/:name",
			"GET /health",
		}).
		Msg("Server starting")

	// Graceful shutdown
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigint)
	go func() {
		if _, ok := <-sigint; !ok {
			return
		}
		log.Info().Msg("Shutting down gracefully...")
		if err := server.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	if err := server.Listen(addr); err != nil {
		log.Error().Err(err).Msg("Server failed")
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}

func newServer(components *app.App, log zerolog.Logger) *fiber.App {
	server := fiber.New(fiber.Config{
		AppName:               "video-transcript",
		DisableStartupMessage: true,
	})

	// Middleware
	server.Use(recover.New())
	server.Use(logger.New())
	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	videoInfoHandler := handlers.NewVideoInfoHandler(components.Service, log)
	streamHandler := handlers.NewStreamHandler(components.Service, log)
	jobsHandler := handlers.NewJobsHandler(components.Registry, log)

	server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": version,
		})
	})

	server.Get("/video-info/:video_id", videoInfoHandler.Handle)
	server.Get("/jobs", jobsHandler.List)
	server.Get("/jobs/:name", jobsHandler.Get)

	// WebSocket route
	server.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	server.Get("/ws/video-info/:video_id", websocket.New(streamHandler.Handle))

	return server
}
