package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/pedrowpmiguel/fitconnect-sub000/internal/config"
	"github.com/pedrowpmiguel/fitconnect-sub000/internal/handlers"
	"github.com/pedrowpmiguel/fitconnect-sub000/internal/middleware"
	"github.com/pedrowpmiguel/fitconnect-sub000/internal/repository"
	"github.com/pedrowpmiguel/fitconnect-sub000/internal/services"
	chatws "github.com/pedrowpmiguel/fitconnect-sub000/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, logger zerolog.Logger) {
	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	workoutRepo := repository.NewWorkoutLogRepository(db)

	hub := chatws.NewHub(logger)
	go hub.Run()

	messageService := services.NewMessageService(messageRepo, userRepo, workoutRepo)
	workoutService := services.NewWorkoutService(workoutRepo, userRepo)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	messageHandler := handlers.NewMessageHandler(messageService, hub, hub, cfg.JWTSecret)
	workoutHandler := handlers.NewWorkoutHandler(workoutService, hub)

	auth := app.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	messages := app.Group("/messages", middleware.AuthRequired(cfg.JWTSecret))
	messages.Post("", messageHandler.SendMessage)
	messages.Post("/alert/workout-missed", messageHandler.SendWorkoutMissedAlert)
	messages.Get("/conversation/:otherUserId", messageHandler.GetConversation)
	messages.Get("/conversations", messageHandler.GetConversations)
	messages.Get("/unread-count", messageHandler.GetUnreadCount)
	messages.Get("/contact", messageHandler.GetContact)
	messages.Put("/:id/read", messageHandler.MarkRead)

	workouts := app.Group("/workout-logs", middleware.AuthRequired(cfg.JWTSecret))
	workouts.Post("", workoutHandler.CreateLog)
	workouts.Get("", workoutHandler.ListLogs)
	workouts.Put("/:id/status", workoutHandler.UpdateStatus)

	app.Use("/ws", messageHandler.WebSocketAuth)
	app.Get("/ws", websocket.New(messageHandler.HandleWebSocket))
}
