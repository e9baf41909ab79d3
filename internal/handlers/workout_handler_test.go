package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pedrowpmiguel/fitconnect-sub000/internal/models"
	"github.com/pedrowpmiguel/fitconnect-sub000/internal/services"
)

type stubWorkoutService struct {
	createResult *models.WorkoutLog
	createErr    error
	logs         []models.WorkoutLog
	missed       *services.MissedWorkout
	updateErr    error

	lastActorID int64
	lastRole    string
	lastLogID   int64
	lastStatus  string
	lastReason  string
}

func (s *stubWorkoutService) CreateLog(_ context.Context, actorID int64, role string, clientID int64, title string, scheduledFor time.Time, notes *string) (*models.WorkoutLog, error) {
	s.lastActorID = actorID
	s.lastRole = role
	return s.createResult, s.createErr
}

func (s *stubWorkoutService) ListLogs(_ context.Context, actorID int64, role string) ([]models.WorkoutLog, error) {
	s.lastActorID = actorID
	s.lastRole = role
	return s.logs, nil
}

func (s *stubWorkoutService) UpdateStatus(_ context.Context, actorID int64, role string, logID int64, status string, reason string) (*services.MissedWorkout, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastLogID = logID
	s.lastStatus = status
	s.lastReason = reason
	return s.missed, s.updateErr
}

type stubMissedPusher struct {
	missed []*services.MissedWorkout
}

func (p *stubMissedPusher) PushWorkoutMissed(missed *services.MissedWorkout) {
	p.missed = append(p.missed, missed)
}

func newWorkoutApp(service workoutApplicationService, pusher missedPusher, role, userID string) *fiber.App {
	handler := NewWorkoutHandler(service, pusher)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Post("/workout-logs", handler.CreateLog)
	app.Get("/workout-logs", handler.ListLogs)
	app.Put("/workout-logs/:id/status", handler.UpdateStatus)
	return app
}

func TestUpdateStatusMissedPushesAlert(t *testing.T) {
	service := &stubWorkoutService{
		missed: &services.MissedWorkout{
			Log:        &models.WorkoutLog{ID: 33, ClientID: 123, Status: models.WorkoutStatusMissed},
			ClientName: "Ana",
			Reason:     "sem tempo",
		},
	}
	pusher := &stubMissedPusher{}
	app := newWorkoutApp(service, pusher, "client", "123")

	req := httptest.NewRequest(http.MethodPut, "/workout-logs/33/status", strings.NewReader(`{"status":"missed","reason":"sem tempo"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastLogID != 33 || service.lastStatus != "missed" || service.lastReason != "sem tempo" {
		t.Fatalf("unexpected forwarded args: %+v", service)
	}
	if len(pusher.missed) != 1 || pusher.missed[0].ClientName != "Ana" {
		t.Fatalf("expected one missed-workout push, got %+v", pusher.missed)
	}
}

func TestUpdateStatusCompletedDoesNotPush(t *testing.T) {
	service := &stubWorkoutService{}
	pusher := &stubMissedPusher{}
	app := newWorkoutApp(service, pusher, "client", "123")

	req := httptest.NewRequest(http.MethodPut, "/workout-logs/33/status", strings.NewReader(`{"status":"completed"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(pusher.missed) != 0 {
		t.Fatalf("did not expect a push for completed status, got %+v", pusher.missed)
	}
}

func TestUpdateStatusForbiddenForTrainer(t *testing.T) {
	service := &stubWorkoutService{updateErr: services.ErrForbidden}
	app := newWorkoutApp(service, &stubMissedPusher{}, "trainer", "9")

	req := httptest.NewRequest(http.MethodPut, "/workout-logs/33/status", strings.NewReader(`{"status":"missed"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestCreateLogReturnsCreated(t *testing.T) {
	service := &stubWorkoutService{
		createResult: &models.WorkoutLog{ID: 1, ClientID: 123, TrainerID: 9, Title: "Leg day"},
	}
	app := newWorkoutApp(service, &stubMissedPusher{}, "trainer", "9")

	req := httptest.NewRequest(
		http.MethodPost,
		"/workout-logs",
		strings.NewReader(`{"clientId":123,"title":"Leg day","scheduledFor":"2026-09-02T10:00:00Z"}`),
	)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastActorID != 9 || service.lastRole != "trainer" {
		t.Fatalf("unexpected actor: id=%d role=%q", service.lastActorID, service.lastRole)
	}
}
