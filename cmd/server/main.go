package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pedrowpmiguel/fitconnect-sub000/internal/config"
	"github.com/pedrowpmiguel/fitconnect-sub000/internal/database"
	"github.com/pedrowpmiguel/fitconnect-sub000/internal/logging"
	"github.com/pedrowpmiguel/fitconnect-sub000/internal/routes"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := logging.New("info")
		bootLogger.Fatal().Err(err).Msg("Failed to load config")
	}

	logger := logging.New(cfg.LogLevel)

	if cfg.DBUrl == "" {
		logger.Fatal().Msg("DB_URL is required")
	}
	db, err := database.Connect(cfg.DBUrl)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	app := fiber.New()

	app.Use(cors.New())
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	routes.RegisterRoutes(app, cfg, db, logger)

	logger.Info().Str("port", cfg.Port).Msg("Server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("Server failed to start")
	}
}
