package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pedrowpmiguel/fitconnect-sub000/internal/models"
	"github.com/pedrowpmiguel/fitconnect-sub000/internal/services"
)

type workoutApplicationService interface {
	CreateLog(ctx context.Context, actorID int64, role string, clientID int64, title string, scheduledFor time.Time, notes *string) (*models.WorkoutLog, error)
	ListLogs(ctx context.Context, actorID int64, role string) ([]models.WorkoutLog, error)
	UpdateStatus(ctx context.Context, actorID int64, role string, logID int64, status string, reason string) (*services.MissedWorkout, error)
}

type missedPusher interface {
	PushWorkoutMissed(missed *services.MissedWorkout)
}

type WorkoutHandler struct {
	service workoutApplicationService
	pusher  missedPusher
}

type createLogRequest struct {
	ClientID     int64     `json:"clientId"`
	Title        string    `json:"title"`
	ScheduledFor time.Time `json:"scheduledFor"`
	Notes        *string   `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func NewWorkoutHandler(service workoutApplicationService, pusher missedPusher) *WorkoutHandler {
	return &WorkoutHandler{service: service, pusher: pusher}
}

func (h *WorkoutHandler) CreateLog(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	var req createLogRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	log, err := h.service.CreateLog(c.Context(), actorID, role, req.ClientID, req.Title, req.ScheduledFor, req.Notes)
	if err != nil {
		return mapMessageError(c, err)
	}

	return respondCreated(c, fiber.Map{"workoutLog": log})
}

func (h *WorkoutHandler) ListLogs(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	logs, err := h.service.ListLogs(c.Context(), actorID, role)
	if err != nil {
		return mapMessageError(c, err)
	}

	return respondOK(c, fiber.Map{"workoutLogs": logs})
}

func (h *WorkoutHandler) UpdateStatus(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	logID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || logID <= 0 {
		return respondError(c, fiber.StatusBadRequest, "Invalid workout log id")
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	missed, err := h.service.UpdateStatus(c.Context(), actorID, role, logID, req.Status, req.Reason)
	if err != nil {
		return mapMessageError(c, err)
	}

	if missed != nil {
		h.pusher.PushWorkoutMissed(missed)
	}

	return respondOK(c, fiber.Map{"id": logID, "status": req.Status})
}
